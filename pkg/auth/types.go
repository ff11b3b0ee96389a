package auth

import (
	"time"

	"github.com/chordme/chordme/pkg/songs"
)

// APIToken is the stored representation of an API token. The plaintext
// token is never persisted; TokenHash is its SHA256 and TokenPrefix the
// first few characters kept for display.
type APIToken struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	TokenHash    string     `json:"-"`
	TokenPrefix  string     `json:"token_prefix"`
	Name         string     `json:"name"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokedBy    *int64     `json:"revoked_by,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
}

// Revoked reports whether the token has been revoked.
func (t *APIToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token is past its expiry at the given
// instant. Tokens without an expiry never expire.
func (t *APIToken) Expired(at time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(at)
}

// Context holds the authenticated caller for a request.
type Context struct {
	User  *songs.User
	Token *APIToken
}

// UserID returns the authenticated user's ID, or nil when unset.
func (c *Context) UserID() *int64 {
	if c == nil || c.User == nil {
		return nil
	}
	return &c.User.ID
}
