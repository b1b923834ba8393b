package schwab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxTokenResponseBytes caps the token endpoint response; anything larger is
// not a token payload.
const maxTokenResponseBytes = 1 << 20

// AuthorizeURL builds the URL the account holder has to visit to grant the
// app access. After login and consent Schwab redirects the browser to the
// configured callback URL with a short-lived authorization code in the
// query; feed that full redirect URL to CodeFromRedirectURL.
func (c *Client) AuthorizeURL(state string) string {
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", c.apiKey)
	values.Set("redirect_uri", c.callbackURL)
	if state = strings.TrimSpace(state); state != "" {
		values.Set("state", state)
	}
	return c.authBase + "/authorize?" + values.Encode()
}

// CodeFromRedirectURL pulls the authorization code out of the URL Schwab
// redirected to after consent. The code arrives percent-encoded (it ends in
// %40); the returned value is decoded and ready for ExchangeCode.
func CodeFromRedirectURL(redirectURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(redirectURL))
	if err != nil {
		return "", fmt.Errorf("schwab: parse redirect url: %w", err)
	}
	code := parsed.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("schwab: redirect url carries no code parameter")
	}
	return code, nil
}

// ExchangeCode trades an authorization code for the initial access/refresh
// token pair and installs it on the client (and the token store, when one is
// configured).
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("schwab: authorization code is required")
	}
	// Codes pasted straight out of the address bar are still
	// percent-encoded.
	if decoded, err := url.QueryUnescape(code); err == nil {
		code = decoded
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.callbackURL)

	token, err := c.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = token
	c.saveTokenLocked()
	c.mu.Unlock()

	c.logger.Info().Time("expires_at", token.ExpiresAt).Msg("authorization code exchanged")
	return token.clone(), nil
}

// Refresh forces a refresh-token exchange regardless of the current access
// token's age. Endpoint methods refresh automatically; this is for callers
// that manage token lifetime themselves.
func (c *Client) Refresh(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return c.token.clone(), nil
}

// refreshLocked exchanges the refresh token for a new access token. The
// caller holds c.mu.
func (c *Client) refreshLocked(ctx context.Context) error {
	if c.token == nil || c.token.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.token.RefreshToken)

	token, err := c.requestToken(ctx, form)
	if err != nil {
		return err
	}

	c.token = token
	c.saveTokenLocked()
	c.logger.Info().Time("expires_at", token.ExpiresAt).Msg("access token refreshed")
	return nil
}

// requestToken posts a grant to the token endpoint. Client credentials go in
// an HTTP Basic header, the grant parameters form-encoded in the body. The
// response must carry access_token, refresh_token, and expires_in; a payload
// missing any of them is an error.
func (c *Client) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	tokenURL := c.authBase + "/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &RequestError{Op: "build token request", URL: tokenURL, Err: err}
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "token request", URL: tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, &RequestError{Op: "read token response", URL: tokenURL, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     http.MethodPost,
			URL:        tokenURL,
			Body:       body,
			Context:    ParseErrorContext(body),
		}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("schwab: decode token response: %w", err)
	}
	// The token endpoint sometimes rejects a grant inside a 200 payload.
	if payload.Error != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     http.MethodPost,
			URL:        tokenURL,
			Body:       body,
			Context:    ParseErrorContext(body),
		}
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("schwab: token response missing access_token")
	}
	if payload.RefreshToken == "" {
		return nil, fmt.Errorf("schwab: token response missing refresh_token")
	}
	if payload.ExpiresIn <= 0 {
		return nil, fmt.Errorf("schwab: token response missing expires_in")
	}

	return &Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		Scope:        payload.Scope,
		IDToken:      payload.IDToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

// saveTokenLocked writes the current token through the store. Persistence
// failures are logged rather than returned: the in-memory token is already
// usable, and the caller's exchange did succeed.
func (c *Client) saveTokenLocked() {
	if c.store == nil || c.token == nil {
		return
	}
	if err := c.store.Save(c.token.clone()); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist token")
	}
}
