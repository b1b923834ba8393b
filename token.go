package schwab

import "time"

// expiryMargin is how long before the wall-clock deadline an access token is
// already treated as expired, so a request never goes out with a token that
// dies in flight.
const expiryMargin = 60 * time.Second

// Token holds the credentials returned by the Schwab token endpoint. Access
// tokens are valid for 30 minutes, refresh tokens for 7 days; after that the
// user has to go through the authorization flow again.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is expired or will expire within
// the safety margin.
func (t *Token) Expired(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	return !now.Before(t.ExpiresAt.Add(-expiryMargin))
}

func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

// tokenResponse mirrors the JSON payload of the Schwab token endpoint. Error
// fields are populated instead of the token fields when the exchange is
// rejected.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	IDToken          string `json:"id_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
