package schwab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultRequestTimeout = 30 * time.Second

	// maxResponseBodyBytes bounds how much of an API response is read into
	// memory. Price history for small intervals can run to a few megabytes;
	// anything beyond this is not a payload this API produces.
	maxResponseBodyBytes = 32 << 20
)

// HTTPDoer is the part of *http.Client the library needs. Tests and callers
// with custom transports can inject their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries everything needed to construct a Client. APIKey, APISecret,
// and CallbackURL come from the app registration on developer.schwab.com and
// are required; the rest is optional.
type Config struct {
	// APIKey is the app key (OAuth client ID).
	APIKey string
	// APISecret is the app secret (OAuth client secret).
	APISecret string
	// CallbackURL must match the callback registered with the app, including
	// scheme and port.
	CallbackURL string

	// HTTPClient overrides the HTTP client used for every call. Defaults to
	// an *http.Client with Timeout.
	HTTPClient HTTPDoer
	// Timeout applies to the default HTTP client only. Defaults to 30s.
	Timeout time.Duration
	// Logger receives request/token lifecycle events. Defaults to a no-op
	// logger.
	Logger *zerolog.Logger
	// TokenStore persists tokens across processes. When set, the stored
	// token is loaded during construction and every exchanged or refreshed
	// token is written back. A nil store keeps tokens in memory only.
	TokenStore TokenStore

	// Base URL overrides, for tests. Zero values select the production
	// endpoints.
	AuthBaseURL       string
	TraderBaseURL     string
	MarketDataBaseURL string
}

// Client talks to the Schwab Trader and Market Data APIs. It is safe for
// concurrent use; token refresh is serialized internally.
type Client struct {
	apiKey      string
	apiSecret   string
	callbackURL string

	httpClient HTTPDoer
	logger     zerolog.Logger
	store      TokenStore

	authBase   string
	traderBase string
	marketBase string

	mu    sync.Mutex
	token *Token
}

// NewClient validates cfg and builds a Client. When cfg.TokenStore holds a
// previously saved token it is loaded; a store without a token is not an
// error, the client just starts unauthorized.
func NewClient(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = strings.TrimSpace(cfg.APISecret)
	cfg.CallbackURL = strings.TrimSpace(cfg.CallbackURL)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("schwab: api key is required")
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("schwab: api secret is required")
	}
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("schwab: callback url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &Client{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		callbackURL: cfg.CallbackURL,
		httpClient:  httpClient,
		logger:      logger,
		store:       cfg.TokenStore,
		authBase:    defaultString(cfg.AuthBaseURL, DefaultAuthBaseURL),
		traderBase:  defaultString(cfg.TraderBaseURL, DefaultTraderBaseURL),
		marketBase:  defaultString(cfg.MarketDataBaseURL, DefaultMarketDataBaseURL),
	}

	if c.store != nil {
		token, err := c.store.Load()
		switch {
		case errors.Is(err, ErrNoStoredToken):
			// Nothing saved yet.
		case err != nil:
			return nil, fmt.Errorf("schwab: load stored token: %w", err)
		default:
			c.token = token
			c.logger.Debug().Time("expires_at", token.ExpiresAt).Msg("loaded stored token")
		}
	}

	return c, nil
}

// Token returns a copy of the current token, or nil when the client is not
// authorized.
func (c *Client) Token() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.clone()
}

// SetToken installs a token obtained elsewhere (another process, a manual
// exchange). The token is also written to the configured store.
func (c *Client) SetToken(token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token.clone()
	c.saveTokenLocked()
}

// bearerToken returns a fresh access token, refreshing through the token
// endpoint when the current one is expired or about to expire.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return "", fmt.Errorf("schwab: no token: %w", ErrNotAuthorized)
	}
	if !c.token.Expired(time.Now()) {
		return c.token.AccessToken, nil
	}
	if c.token.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}
	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// request performs one authenticated HTTP exchange and hands back the
// response and its fully read body. Transport failures come back as
// *RequestError, non-2xx statuses as *APIError.
func (c *Client) request(ctx context.Context, method, rawURL string, payload any) (*http.Response, []byte, error) {
	accessToken, err := c.bearerToken(ctx)
	if err != nil {
		return nil, nil, err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("schwab: encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, nil, &RequestError{Op: "build request", URL: rawURL, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &RequestError{Op: "do request", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, nil, &RequestError{Op: "read response", URL: rawURL, Err: err}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errCtx := ParseErrorContext(respBody)
		if errCtx.rawOnly() && errCtx.Raw != "" {
			c.logger.Warn().
				Str("method", method).
				Str("url", rawURL).
				Int("status", resp.StatusCode).
				Str("body", truncate(errCtx.Raw, maxErrorBodyPreview)).
				Msg("unparseable error body")
		}
		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     method,
			URL:        rawURL,
			Body:       respBody,
			Context:    errCtx,
		}
	}
	return resp, respBody, nil
}

// getObject fetches rawURL and decodes an object response.
func (c *Client) getObject(ctx context.Context, rawURL string) (map[string]any, error) {
	_, body, err := c.request(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// getList fetches rawURL and decodes an array response.
func (c *Client) getList(ctx context.Context, rawURL string) ([]any, error) {
	_, body, err := c.request(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

// traderURL joins the trader base URL, a path, and an optional query.
func (c *Client) traderURL(path string, query url.Values) string {
	return joinURL(c.traderBase, path, query)
}

// marketURL joins the market data base URL, a path, and an optional query.
func (c *Client) marketURL(path string, query url.Values) string {
	return joinURL(c.marketBase, path, query)
}

func joinURL(base, path string, query url.Values) string {
	rawURL := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	return rawURL
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Bool returns a pointer to b, for the optional boolean query parameters.
func Bool(b bool) *bool {
	return &b
}
