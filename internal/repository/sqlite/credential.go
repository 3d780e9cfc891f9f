package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/session"
)

var _ session.Store = (*DB)(nil)

const tokenKey = "token"

func (db *DB) SaveCredential(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		tokenKey, token, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving credential: %w", err)
	}
	return nil
}

// LoadCredential returns apperror.ErrNotFound when nobody is signed in.
func (db *DB) LoadCredential(ctx context.Context) (string, error) {
	var token string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE key = ?`, tokenKey,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &apperror.AppError{Err: apperror.ErrNotFound, Message: "no saved credential"}
		}
		return "", fmt.Errorf("sqlite: loading credential: %w", err)
	}
	return token, nil
}

func (db *DB) DeleteCredential(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, tokenKey); err != nil {
		return fmt.Errorf("sqlite: deleting credential: %w", err)
	}
	return nil
}
