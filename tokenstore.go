package schwab

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoStoredToken reports that a TokenStore holds no token yet. NewClient
// treats it as a clean start rather than a failure.
var ErrNoStoredToken = errors.New("schwab: no stored token")

// TokenStore persists tokens across processes so a refresh token survives
// restarts. Load returns ErrNoStoredToken when nothing has been saved yet.
type TokenStore interface {
	Load() (*Token, error)
	Save(token *Token) error
}

var _ TokenStore = (*FileTokenStore)(nil)

// FileTokenStore keeps the token as a JSON file, created with 0600
// permissions since it holds live credentials.
type FileTokenStore struct {
	Path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

func (s *FileTokenStore) Load() (*Token, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoStoredToken
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var token Token
	if err := json.Unmarshal(b, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

func (s *FileTokenStore) Save(token *Token) error {
	b, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(s.Path, b, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
