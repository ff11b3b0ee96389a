package permissions

// Effective computes the single effective permission level userID holds on
// a song, applying the fixed precedence order:
//
//  1. Owner: always admin, regardless of any stored grant.
//  2. Explicit grant: the level recorded in the sharing map.
//  3. Public visibility: read for everyone, including anonymous callers.
//  4. Otherwise: none.
//
// A nil userID denotes an anonymous caller, who can only reach read via
// public visibility. Link-shared visibility resolves identically to
// private here; share-token redemption happens outside the resolver.
func Effective(state State, userID *int64) Level {
	if userID != nil {
		if *userID == state.OwnerID {
			return LevelAdmin
		}
		if level, ok := state.Grants.Get(*userID); ok {
			return level
		}
	}
	if state.Visibility == VisibilityPublic {
		return LevelRead
	}
	return LevelNone
}
