package schwab

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrNotAuthorized is wrapped by errors returned for requests that were
	// rejected with 401/403, and by requests attempted before any token
	// exchange has happened.
	ErrNotAuthorized = errors.New("schwab: not authorized")

	// ErrNoRefreshToken is returned when the access token is expired and the
	// client holds no refresh token to renew it with.
	ErrNoRefreshToken = errors.New("schwab: no refresh token")
)

// maxErrorBodyPreview caps how much of a raw error body is rendered into an
// error string.
const maxErrorBodyPreview = 500

// RequestError wraps a transport-level failure: DNS, dial, TLS, context
// cancellation, or a failed body read. The HTTP exchange never produced a
// usable response.
type RequestError struct {
	Op  string
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("schwab: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// APIError is returned when the API answered with a non-2xx status, or when
// the token endpoint rejected a grant inside a 2xx payload. Context holds
// whatever could be pulled out of the error body.
type APIError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       []byte
	Context    ErrorContext
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("schwab: %s %s: %s", e.Method, e.URL, e.Status)
	if summary := e.Context.Summary(); summary != "" {
		msg += ": " + summary
	}
	return msg
}

// Unwrap lets callers match authorization failures with
// errors.Is(err, ErrNotAuthorized).
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrNotAuthorized
	}
	return nil
}

// ErrorContext holds fields extracted from a Schwab error body, for
// diagnostics only. Schwab error payloads come in several shapes: the OAuth
// shape ({"error", "error_description"}), the trader shape ({"errors":[...]})
// and the market data shape ({"message", "errors":[...]}). On top of that,
// error_description frequently embeds the upstream response it is reporting
// on, as a status line followed by a JSON object that has been string-quoted
// and backslash-escaped a varying number of times.
type ErrorContext struct {
	// Code and Description are the outer OAuth-style error fields.
	Code        string
	Description string

	// Message and Details come from the trader / market data shapes.
	Message string
	Details []string

	// Embedded* fields are parsed out of Description when it carries an
	// upstream response ("400 Bad Request: {\"error\":...}").
	EmbeddedStatusCode  int
	EmbeddedStatusText  string
	EmbeddedCode        string
	EmbeddedDescription string

	// Raw is the body as received, for when nothing else parsed.
	Raw string
}

// ParseErrorContext extracts what it can from a provider error body. Any
// input, including non-JSON garbage, yields a usable context and never an
// error.
func ParseErrorContext(body []byte) ErrorContext {
	ctx := ErrorContext{Raw: strings.TrimSpace(string(body))}
	if ctx.Raw == "" {
		return ctx
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(ctx.Raw), &decoded); err != nil {
		return ctx
	}

	ctx.Code = stringField(decoded, "error")
	ctx.Description = stringField(decoded, "error_description")
	ctx.Message = stringField(decoded, "message")
	ctx.Details = errorDetails(decoded["errors"])

	// "error" itself is sometimes a human sentence rather than an OAuth code
	// ({"error": "Symbol not found"}); leave it in Code either way, Summary
	// picks the most specific field.

	if ctx.Description != "" {
		ctx.parseEmbedded(ctx.Description)
	}
	return ctx
}

// parseEmbedded splits a description of the form
// "500 Internal Server Error: <payload>" into the embedded status and, when
// the payload can be unwrapped into a JSON object, the inner error fields.
func (c *ErrorContext) parseEmbedded(description string) {
	statusCode, statusText, remainder, ok := splitStatusLine(description)
	if !ok {
		return
	}
	c.EmbeddedStatusCode = statusCode
	c.EmbeddedStatusText = statusText

	code, desc, ok := unwrapErrorObject(remainder)
	if !ok {
		return
	}
	c.EmbeddedCode = code
	c.EmbeddedDescription = desc
}

// splitStatusLine matches a leading "NNN Status Text" pair, optionally
// followed by ": rest". The code has to look like an HTTP status to avoid
// eating descriptions that merely start with a number.
func splitStatusLine(s string) (code int, text string, remainder string, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[3] != ' ' {
		return 0, "", "", false
	}
	parsed, err := strconv.Atoi(s[:3])
	if err != nil || parsed < 100 || parsed > 599 {
		return 0, "", "", false
	}
	rest := s[4:]
	if idx := strings.Index(rest, ":"); idx >= 0 {
		return parsed, strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+1:]), true
	}
	return parsed, strings.TrimSpace(rest), "", true
}

// unwrapErrorObject tries to read an {"error", "error_description"} object
// out of a fragment that may be quoted and/or escaped one or more times.
func unwrapErrorObject(s string) (code, desc string, ok bool) {
	s = strings.TrimSpace(s)
	for attempt := 0; attempt < 3; attempt++ {
		if s == "" {
			return "", "", false
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			code = stringField(obj, "error")
			desc = stringField(obj, "error_description")
			if code == "" && desc == "" {
				desc = stringField(obj, "message")
			}
			return code, desc, code != "" || desc != ""
		}
		// A JSON string holding JSON: "{\"error\":...}".
		if strings.HasPrefix(s, `"`) {
			var unquoted string
			if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
				s = strings.TrimSpace(unquoted)
				continue
			}
			s = strings.TrimSpace(strings.Trim(s, `"`))
		}
		// Escaped quotes without the wrapping quote pair: {\"error\":...}.
		if strings.Contains(s, `\"`) {
			s = strings.ReplaceAll(s, `\"`, `"`)
			continue
		}
		return "", "", false
	}
	return "", "", false
}

// errorDetails digests the "errors" array, whose elements are either plain
// strings or {id, status, title, detail} objects.
func errorDetails(value any) []string {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	details := make([]string, 0, len(items))
	for _, item := range items {
		switch typed := item.(type) {
		case string:
			if trimmed := strings.TrimSpace(typed); trimmed != "" {
				details = append(details, trimmed)
			}
		case map[string]any:
			title := stringField(typed, "title")
			detail := stringField(typed, "detail")
			switch {
			case title != "" && detail != "":
				details = append(details, title+": "+detail)
			case detail != "":
				details = append(details, detail)
			case title != "":
				details = append(details, title)
			}
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// Summary returns the most specific description found, falling back to a
// truncated raw body.
func (c ErrorContext) Summary() string {
	switch {
	case c.EmbeddedDescription != "":
		return c.EmbeddedDescription
	case c.Description != "":
		return c.Description
	case c.Message != "" && len(c.Details) > 0:
		return c.Message + ": " + strings.Join(c.Details, "; ")
	case c.Message != "":
		return c.Message
	case len(c.Details) > 0:
		return strings.Join(c.Details, "; ")
	case c.Code != "":
		return c.Code
	}
	return truncate(c.Raw, maxErrorBodyPreview)
}

// rawOnly reports whether nothing structured was extracted, so Raw is all
// there is.
func (c ErrorContext) rawOnly() bool {
	return c.Code == "" && c.Description == "" && c.Message == "" && len(c.Details) == 0
}

func stringField(m map[string]any, key string) string {
	value, ok := m[key]
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
