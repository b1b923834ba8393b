package schwab

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ TokenStore = (*SQLiteTokenStore)(nil)

// SQLiteTokenStore keeps the token in a single-row SQLite table, for setups
// that already carry a database and would rather not scatter token files.
type SQLiteTokenStore struct {
	db *sql.DB
}

// NewSQLiteTokenStore opens (or creates) a SQLite database at dbPath and
// ensures the token table exists.
func NewSQLiteTokenStore(dbPath string) (*SQLiteTokenStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS oauth_token (
		id            INTEGER PRIMARY KEY CHECK (id = 1),
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_type    TEXT NOT NULL DEFAULT '',
		scope         TEXT NOT NULL DEFAULT '',
		id_token      TEXT NOT NULL DEFAULT '',
		expires_at    TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create token table: %w", err)
	}
	return &SQLiteTokenStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteTokenStore) Load() (*Token, error) {
	const query = `SELECT access_token, refresh_token, token_type, scope, id_token, expires_at
		FROM oauth_token WHERE id = 1`
	var token Token
	var expiresAt string
	err := s.db.QueryRow(query).Scan(
		&token.AccessToken,
		&token.RefreshToken,
		&token.TokenType,
		&token.Scope,
		&token.IDToken,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoStoredToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token row: %w", err)
	}
	token.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token expiry: %w", err)
	}
	return &token, nil
}

func (s *SQLiteTokenStore) Save(token *Token) error {
	const upsert = `INSERT INTO oauth_token (id, access_token, refresh_token, token_type, scope, id_token, expires_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			scope         = excluded.scope,
			id_token      = excluded.id_token,
			expires_at    = excluded.expires_at`
	_, err := s.db.Exec(upsert,
		token.AccessToken,
		token.RefreshToken,
		token.TokenType,
		token.Scope,
		token.IDToken,
		token.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save token row: %w", err)
	}
	return nil
}
