package songs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chordme/chordme/pkg/permissions"
)

// MaxTitleLength bounds song titles at the API boundary.
const MaxTitleLength = 255

// Song represents a chord sheet document owned by exactly one user.
type Song struct {
	ID         int64                  `json:"id"`
	Title      string                 `json:"title"`
	Artist     string                 `json:"artist,omitempty"`
	Content    string                 `json:"content"`
	OwnerID    int64                  `json:"owner_id"`
	Visibility permissions.Visibility `json:"visibility"`

	// Grants maps user id to permission level. The owner is never a key;
	// ownership is implicit and always outranks any explicit grant.
	Grants permissions.SharingMap `json:"grants,omitempty"`

	// ShareToken is set while the song is link-shared and empty otherwise.
	ShareToken string `json:"share_token,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// AuthzState returns the transient authorization view consumed by the
// permission resolver.
func (s *Song) AuthzState() permissions.State {
	return permissions.State{
		OwnerID:    s.OwnerID,
		Visibility: s.Visibility,
		Grants:     s.Grants,
	}
}

// SetGrant records an explicit grant for targetUserID, replacing any prior
// level. The owner can never be granted: ownership is implicit.
func (s *Song) SetGrant(targetUserID int64, level permissions.Level) error {
	if targetUserID == s.OwnerID {
		return fmt.Errorf("%w: user %d owns the song", ErrOwnerGrant, targetUserID)
	}
	if s.Grants == nil {
		s.Grants = permissions.SharingMap{}
	}
	return s.Grants.Set(targetUserID, level)
}

// RemoveGrant drops the explicit grant for targetUserID, if present.
func (s *Song) RemoveGrant(targetUserID int64) {
	s.Grants.Remove(targetUserID)
}

// GrantFor returns the explicit grant recorded for userID, if any.
func (s *Song) GrantFor(userID int64) (permissions.Level, bool) {
	return s.Grants.Get(userID)
}

// Validate checks the song's own invariants before persistence.
func (s *Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("song title is required")
	}
	if len(s.Title) > MaxTitleLength {
		return fmt.Errorf("song title exceeds %d characters", MaxTitleLength)
	}
	if !s.Visibility.Valid() {
		return fmt.Errorf("invalid visibility %q", s.Visibility)
	}
	if _, ok := s.Grants[s.OwnerID]; ok {
		return fmt.Errorf("%w: sharing map contains the owner", ErrOwnerGrant)
	}
	for userID, level := range s.Grants {
		if !level.Valid() {
			return fmt.Errorf("%w: user %d has level %q", permissions.ErrInvalidLevel, userID, level)
		}
	}
	return nil
}

// User represents a registered account. Credential handling beyond the
// opaque hash lives in pkg/auth.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
