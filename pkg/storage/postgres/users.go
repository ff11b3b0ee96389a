package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chordme/chordme/pkg/songs"
)

// UserStore implements songs.UserStore on PostgreSQL.
type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

// Create inserts the user and fills in its id and timestamps. Emails
// are stored lowercased.
func (s *UserStore) Create(ctx context.Context, user *songs.User) error {
	now := s.now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (email, password_hash, display_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s", songs.ErrDuplicate, user.Email)
		}
		return wrapStoreErr("failed to create user", err)
	}
	return nil
}

// isUniqueViolation detects uniqueness constraint failures across the
// postgres and sqlite drivers.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// Get loads a user by id.
func (s *UserStore) Get(ctx context.Context, id int64) (*songs.User, error) {
	query := `
		SELECT id, email, password_hash, display_name, is_active, created_at, updated_at
		FROM users WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail loads a user by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*songs.User, error) {
	query := `
		SELECT id, email, password_hash, display_name, is_active, created_at, updated_at
		FROM users WHERE email = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (s *UserStore) scanUser(row rowScanner) (*songs.User, error) {
	var user songs.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, songs.ErrNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("failed to scan user", err)
	}
	return &user, nil
}
