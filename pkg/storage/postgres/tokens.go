package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/songs"
)

// TokenStore implements auth.TokenStore on PostgreSQL.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

const tokenColumns = `id, user_id, token_hash, token_prefix, name, expires_at, last_used_at, created_at, revoked_at, revoked_by, revoke_reason`

// Create inserts the token record and fills in its id.
func (s *TokenStore) Create(ctx context.Context, token *auth.APIToken) error {
	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.TokenPrefix,
		token.Name,
		token.ExpiresAt,
		token.CreatedAt,
	).Scan(&token.ID)
	if err != nil {
		return wrapStoreErr("failed to create token", err)
	}
	return nil
}

// GetByHash loads a token by its SHA256 hash.
func (s *TokenStore) GetByHash(ctx context.Context, hash string) (*auth.APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE token_hash = $1`
	return s.scanToken(s.db.QueryRowContext(ctx, query, hash))
}

// Get loads a token by id.
func (s *TokenStore) Get(ctx context.Context, id int64) (*auth.APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE id = $1`
	return s.scanToken(s.db.QueryRowContext(ctx, query, id))
}

// ListByUser returns all tokens for a user, newest first, revoked ones
// included.
func (s *TokenStore) ListByUser(ctx context.Context, userID int64) ([]*auth.APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapStoreErr("failed to list tokens", err)
	}
	defer rows.Close()

	var out []*auth.APIToken
	for rows.Next() {
		token, err := s.scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to read tokens", err)
	}
	return out, nil
}

// Revoke marks the token revoked. Revoking an already revoked token is
// a no-op.
func (s *TokenStore) Revoke(ctx context.Context, id, revokedBy int64, reason string, at time.Time) error {
	query := `
		UPDATE api_tokens
		SET revoked_at = $1, revoked_by = $2, revoke_reason = $3
		WHERE id = $4 AND revoked_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, at, revokedBy, reason, id); err != nil {
		return wrapStoreErr("failed to revoke token", err)
	}
	return nil
}

// TouchLastUsed records when the token last authenticated a request.
func (s *TokenStore) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, at, id); err != nil {
		return wrapStoreErr("failed to touch token", err)
	}
	return nil
}

// DeleteExpired removes tokens whose expiry has passed.
func (s *TokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= $1`
	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, wrapStoreErr("failed to delete expired tokens", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, wrapStoreErr("failed to read result", err)
	}
	return affected, nil
}

func (s *TokenStore) scanToken(row rowScanner) (*auth.APIToken, error) {
	var token auth.APIToken
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.TokenPrefix,
		&token.Name,
		&token.ExpiresAt,
		&token.LastUsedAt,
		&token.CreatedAt,
		&token.RevokedAt,
		&token.RevokedBy,
		&token.RevokeReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, songs.ErrNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("failed to scan token", err)
	}
	return &token, nil
}
