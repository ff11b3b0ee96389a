package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/chordme/chordme/pkg/config"
)

// Open connects to PostgreSQL, configures the connection pool, and
// verifies the connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the application tables when they do not exist.
// The audit trail manages its own schema in pkg/audit.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name  TEXT NOT NULL DEFAULT '',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS songs (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		artist      TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL DEFAULT '',
		owner_id    BIGINT NOT NULL REFERENCES users(id),
		visibility  TEXT NOT NULL DEFAULT 'private',
		grants      JSONB NOT NULL DEFAULT '{}',
		share_token TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		deleted_at  TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_songs_owner ON songs(owner_id) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_songs_visibility ON songs(visibility) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_songs_share_token ON songs(share_token) WHERE share_token <> '';

	CREATE TABLE IF NOT EXISTS api_tokens (
		id            BIGSERIAL PRIMARY KEY,
		user_id       BIGINT NOT NULL REFERENCES users(id),
		token_hash    TEXT NOT NULL UNIQUE,
		token_prefix  TEXT NOT NULL,
		name          TEXT NOT NULL DEFAULT '',
		expires_at    TIMESTAMPTZ,
		last_used_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		revoked_at    TIMESTAMPTZ,
		revoked_by    BIGINT,
		revoke_reason TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id);
	`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
