package permissions

import "fmt"

// Level represents a permission level on a song.
//
// Levels form a total order: read < edit < admin. A higher level implies
// every capability of the levels below it.
type Level string

const (
	// LevelNone means the user has no access at all. It is never stored
	// in a sharing map; it only appears as a resolver result.
	LevelNone Level = "none"
	// LevelRead allows viewing a song and its metadata.
	LevelRead Level = "read"
	// LevelEdit allows modifying song content. Implies read.
	LevelEdit Level = "edit"
	// LevelAdmin allows managing sharing and deleting the song. Implies edit.
	LevelAdmin Level = "admin"
)

// levelRank maps levels onto the total order used by HasAtLeast.
var levelRank = map[Level]int{
	LevelNone:  0,
	LevelRead:  1,
	LevelEdit:  2,
	LevelAdmin: 3,
}

// Valid reports whether l is one of the three grantable levels.
// LevelNone is a resolver result, not a grantable level.
func (l Level) Valid() bool {
	switch l {
	case LevelRead, LevelEdit, LevelAdmin:
		return true
	}
	return false
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// ParseLevel validates a raw string against the closed level set.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return LevelNone, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// HasAtLeast reports whether the held level satisfies the required level
// under the fixed order read < edit < admin.
func HasAtLeast(have, required Level) bool {
	return levelRank[have] >= levelRank[required]
}

// Visibility controls who can see a song beyond its sharing map.
type Visibility string

const (
	// VisibilityPrivate restricts access to the owner and explicit grants.
	VisibilityPrivate Visibility = "private"
	// VisibilityPublic lets any user (including anonymous callers) read the song.
	VisibilityPublic Visibility = "public"
	// VisibilityLinkShared grants read access to holders of the song's
	// share token. For the resolver it behaves exactly like private;
	// token redemption is a separate path in the songs service.
	VisibilityLinkShared Visibility = "link-shared"
)

// Valid reports whether v is a known visibility value.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityLinkShared:
		return true
	}
	return false
}

// SharingMap holds the explicit grants of one song, keyed by user id.
// Insertion order is irrelevant; there is exactly one level per user.
type SharingMap map[int64]Level

// Set records a grant for userID, overwriting any prior level. Setting
// the same level twice is a no-op (idempotent).
func (m SharingMap) Set(userID int64, level Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	m[userID] = level
	return nil
}

// Remove deletes the grant for userID. Removing an absent grant is a no-op.
func (m SharingMap) Remove(userID int64) {
	delete(m, userID)
}

// Get returns the grant for userID, if any.
func (m SharingMap) Get(userID int64) (Level, bool) {
	level, ok := m[userID]
	return level, ok
}

// Clone returns a deep copy of the map. A nil map clones to an empty one.
func (m SharingMap) Clone() SharingMap {
	out := make(SharingMap, len(m))
	for id, level := range m {
		out[id] = level
	}
	return out
}

// State is the authorization-relevant view of one song. It is a transient
// snapshot loaded per request; it must never be cached across operations.
type State struct {
	OwnerID    int64
	Visibility Visibility
	Grants     SharingMap
}
