package songs

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by stores when no live song (or user) has
	// the requested id. Soft-deleted songs are reported as not found.
	ErrNotFound = errors.New("songs: not found")

	// ErrUnavailable is returned when the underlying store cannot be
	// reached. It is never conflated with ErrNotFound: callers must be
	// able to tell infrastructure failure apart from legitimate absence.
	ErrUnavailable = errors.New("songs: store unavailable")

	// ErrOwnerGrant is returned when a mutation would record the owner
	// in the sharing map.
	ErrOwnerGrant = errors.New("songs: owner cannot be granted")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, e.g. registering an email twice.
	ErrDuplicate = errors.New("songs: already exists")
)

// Store is the persistence contract for songs. Update must persist the
// whole record (content, visibility, share token, and sharing map) as a
// single atomic row write; that atomicity is the only consistency
// guarantee grant mutations rely on.
type Store interface {
	Create(ctx context.Context, song *Song) error
	Get(ctx context.Context, id int64) (*Song, error)
	GetByShareToken(ctx context.Context, token string) (*Song, error)
	Update(ctx context.Context, song *Song) error
	SoftDelete(ctx context.Context, id int64) error

	// ListAccessible returns songs the user owns, songs shared with them,
	// and public songs, in that precedence order without duplicates.
	ListAccessible(ctx context.Context, userID int64) ([]*Song, error)

	// ListPublic returns public songs for anonymous browsing.
	ListPublic(ctx context.Context, limit, offset int) ([]*Song, error)
}

// UserStore is the persistence contract for user accounts.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
