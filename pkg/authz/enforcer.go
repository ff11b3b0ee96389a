package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chordme/chordme/pkg/audit"
	"github.com/chordme/chordme/pkg/permissions"
	"github.com/chordme/chordme/pkg/songs"
)

// SongStore is the slice of the song store the enforcer needs: one load
// and one atomic per-row update. Satisfied by pkg/storage/postgres.
type SongStore interface {
	Get(ctx context.Context, id int64) (*songs.Song, error)
	Update(ctx context.Context, song *songs.Song) error
}

// Enforcer resolves and enforces song permissions. It is stateless per
// call: every invocation reloads the song, so permission changes take
// effect immediately and no stale state is ever consulted.
type Enforcer struct {
	store SongStore
	audit *audit.Logger
}

// NewEnforcer creates an enforcer. Both dependencies are required; the
// audit logger may wrap a NoopSink but must exist so that every decision
// is offered to the trail.
func NewEnforcer(store SongStore, auditLogger *audit.Logger) (*Enforcer, error) {
	if store == nil {
		return nil, errors.New("song store is required")
	}
	if auditLogger == nil {
		return nil, errors.New("audit logger is required")
	}
	return &Enforcer{store: store, audit: auditLogger}, nil
}

// Authorize loads the song and checks that the caller holds at least the
// required level. userID is nil for anonymous callers, who can only
// reach read on public songs.
//
// Exactly one audit event is emitted per call. Outcomes:
//   - the song and nil error when access is granted
//   - ErrNotFound when the song is missing OR the caller has zero access
//   - ErrForbidden when the caller has partial but insufficient access
//   - ErrStoreUnavailable when the store cannot answer
func (e *Enforcer) Authorize(ctx context.Context, songID int64, userID *int64, required permissions.Level) (*songs.Song, error) {
	if !required.Valid() {
		return nil, fmt.Errorf("%w: %q", permissions.ErrInvalidLevel, required)
	}

	song, err := e.store.Get(ctx, songID)
	if err != nil {
		if errors.Is(err, songs.ErrNotFound) {
			e.audit.LogAccessAttempt(ctx, songID, userID, required, false, map[string]any{
				"reason": "song not found",
			})
			return nil, ErrNotFound
		}
		// Store failure must stay distinguishable from absence.
		e.audit.LogAccessAttempt(ctx, songID, userID, required, false, map[string]any{
			"reason": "store unavailable",
		})
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	effective := permissions.Effective(song.AuthzState(), userID)
	switch {
	case permissions.HasAtLeast(effective, required):
		e.audit.LogAccessAttempt(ctx, songID, userID, required, true, map[string]any{
			"effective": effective.String(),
		})
		return song, nil

	case effective == permissions.LevelNone:
		// Zero access renders the same as a missing song.
		e.audit.LogAccessAttempt(ctx, songID, userID, required, false, map[string]any{
			"effective": effective.String(),
			"reason":    "no access",
		})
		return nil, ErrNotFound

	default:
		e.audit.LogAccessAttempt(ctx, songID, userID, required, false, map[string]any{
			"effective": effective.String(),
			"reason":    "insufficient level",
		})
		return nil, ErrForbidden
	}
}

// Effective resolves the caller's effective permission on an already
// loaded song. Pure passthrough to the resolver for callers that need
// the level itself (e.g. to render capabilities in responses).
func (e *Enforcer) Effective(song *songs.Song, userID *int64) permissions.Level {
	return permissions.Effective(song.AuthzState(), userID)
}

// SetGrant records level for targetUserID on the song, gated on the
// acting user holding admin. Setting the same level twice is idempotent.
func (e *Enforcer) SetGrant(ctx context.Context, songID, actingUserID, targetUserID int64, level permissions.Level) error {
	song, err := e.Authorize(ctx, songID, &actingUserID, permissions.LevelAdmin)
	if err != nil {
		return err
	}

	prior, existed := song.GrantFor(targetUserID)
	if err := song.SetGrant(targetUserID, level); err != nil {
		return err
	}
	if existed && prior == level {
		// Idempotent re-grant; nothing to persist.
		return nil
	}

	if err := e.store.Update(ctx, song); err != nil {
		return translateStoreErr(err)
	}

	action := audit.SharingActionGrantAdded
	details := map[string]any{}
	if existed {
		action = audit.SharingActionGrantChanged
		details["previous_level"] = prior.String()
	}
	e.audit.LogSharingActivity(ctx, action, songID, actingUserID, &targetUserID, level, details)
	return nil
}

// RemoveGrant drops the explicit grant for targetUserID, gated on admin.
// Removing an absent grant is a no-op.
func (e *Enforcer) RemoveGrant(ctx context.Context, songID, actingUserID, targetUserID int64) error {
	song, err := e.Authorize(ctx, songID, &actingUserID, permissions.LevelAdmin)
	if err != nil {
		return err
	}

	prior, existed := song.GrantFor(targetUserID)
	if !existed {
		return nil
	}
	song.RemoveGrant(targetUserID)

	if err := e.store.Update(ctx, song); err != nil {
		return translateStoreErr(err)
	}

	e.audit.LogSharingActivity(ctx, audit.SharingActionGrantRemoved, songID, actingUserID, &targetUserID, prior, nil)
	return nil
}

// SetVisibility changes the song's visibility, gated on admin. Switching
// to link-shared mints a share token; switching away revokes it.
func (e *Enforcer) SetVisibility(ctx context.Context, songID, actingUserID int64, visibility permissions.Visibility) error {
	if !visibility.Valid() {
		return fmt.Errorf("invalid visibility %q", visibility)
	}

	song, err := e.Authorize(ctx, songID, &actingUserID, permissions.LevelAdmin)
	if err != nil {
		return err
	}
	// An unchanged value is a no-op unless the song is link-shared with
	// no token yet; then the mint below must still run so the link works.
	if song.Visibility == visibility &&
		(visibility != permissions.VisibilityLinkShared || song.ShareToken != "") {
		return nil
	}

	previous := song.Visibility
	song.Visibility = visibility
	if visibility == permissions.VisibilityLinkShared {
		if song.ShareToken == "" {
			song.ShareToken = uuid.NewString()
		}
	} else {
		song.ShareToken = ""
	}

	if err := e.store.Update(ctx, song); err != nil {
		return translateStoreErr(err)
	}

	e.audit.LogSharingActivity(ctx, audit.SharingActionVisibilityChanged, songID, actingUserID, nil, "", map[string]any{
		"previous_visibility": string(previous),
		"visibility":          string(visibility),
	})
	return nil
}

// RecordSharedAccess records a successful share-link redemption.
// Redemption does not pass through Authorize, so it gets its audit
// entry here; the trail must cover every read of protected content.
func (e *Enforcer) RecordSharedAccess(ctx context.Context, songID int64, userID *int64) {
	e.audit.LogAccessAttempt(ctx, songID, userID, permissions.LevelRead, true, map[string]any{
		"via": "share_link",
	})
}

// ReportBypassAttempt records an attempt to manipulate permission state
// outside the sanctioned mutation path, e.g. unknown permission fields
// in a payload. Exposed for the HTTP layer.
func (e *Enforcer) ReportBypassAttempt(ctx context.Context, songID int64, userID *int64, attemptedAction string, details map[string]any) {
	e.audit.LogPermissionBypassAttempt(ctx, songID, userID, attemptedAction, details)
}

// translateStoreErr maps store errors to the authz taxonomy. Anything
// that is not a clean absence is treated as a store failure: fail closed
// but never pretend the song does not exist.
func translateStoreErr(err error) error {
	if errors.Is(err, songs.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
