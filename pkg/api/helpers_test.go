package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chordme/chordme/pkg/audit"
	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/permissions"
	"github.com/chordme/chordme/pkg/songs"
)

// memSongStore is an in-memory songs.Store.
type memSongStore struct {
	mu     sync.Mutex
	nextID int64
	songs  map[int64]*songs.Song
	err    error
}

func newMemSongStore() *memSongStore {
	return &memSongStore{songs: map[int64]*songs.Song{}}
}

func (s *memSongStore) Create(ctx context.Context, song *songs.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.nextID++
	song.ID = s.nextID
	song.CreatedAt = time.Now().UTC()
	song.UpdatedAt = song.CreatedAt
	copied := *song
	s.songs[song.ID] = &copied
	return nil
}

func (s *memSongStore) Get(ctx context.Context, id int64) (*songs.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	song, ok := s.songs[id]
	if !ok || song.DeletedAt != nil {
		return nil, fmt.Errorf("%w: song %d", songs.ErrNotFound, id)
	}
	copied := *song
	return &copied, nil
}

func (s *memSongStore) GetByShareToken(ctx context.Context, token string) (*songs.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if token != "" {
		for _, song := range s.songs {
			if song.DeletedAt == nil && song.ShareToken == token {
				copied := *song
				return &copied, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: share token", songs.ErrNotFound)
}

func (s *memSongStore) Update(ctx context.Context, song *songs.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	existing, ok := s.songs[song.ID]
	if !ok || existing.DeletedAt != nil {
		return fmt.Errorf("%w: song %d", songs.ErrNotFound, song.ID)
	}
	song.UpdatedAt = time.Now().UTC()
	copied := *song
	s.songs[song.ID] = &copied
	return nil
}

func (s *memSongStore) SoftDelete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	song, ok := s.songs[id]
	if !ok || song.DeletedAt != nil {
		return fmt.Errorf("%w: song %d", songs.ErrNotFound, id)
	}
	now := time.Now().UTC()
	song.DeletedAt = &now
	return nil
}

func (s *memSongStore) ListAccessible(ctx context.Context, userID int64) ([]*songs.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var owned, shared, public []*songs.Song
	for _, song := range s.songs {
		if song.DeletedAt != nil {
			continue
		}
		copied := *song
		_, granted := song.GrantFor(userID)
		switch {
		case song.OwnerID == userID:
			owned = append(owned, &copied)
		case granted:
			shared = append(shared, &copied)
		case song.Visibility == permissions.VisibilityPublic:
			public = append(public, &copied)
		}
	}
	return append(append(owned, shared...), public...), nil
}

func (s *memSongStore) ListPublic(ctx context.Context, limit, offset int) ([]*songs.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var public []*songs.Song
	for _, song := range s.songs {
		if song.DeletedAt == nil && song.Visibility == permissions.VisibilityPublic {
			copied := *song
			public = append(public, &copied)
		}
	}
	return public, nil
}

// memUserStore is an in-memory songs.UserStore.
type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*songs.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[int64]*songs.User{}}
}

func (s *memUserStore) Create(ctx context.Context, user *songs.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email", songs.ErrDuplicate)
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) Get(ctx context.Context, id int64) (*songs.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", songs.ErrNotFound, id)
	}
	copied := *user
	return &copied, nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*songs.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: email", songs.ErrNotFound)
}

// memTokenStore is an in-memory auth.TokenStore.
type memTokenStore struct {
	mu     sync.Mutex
	nextID int64
	tokens map[int64]*auth.APIToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[int64]*auth.APIToken{}}
}

func (s *memTokenStore) Create(ctx context.Context, token *auth.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	token.ID = s.nextID
	copied := *token
	s.tokens[token.ID] = &copied
	return nil
}

func (s *memTokenStore) GetByHash(ctx context.Context, hash string) (*auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.TokenHash == hash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: token", songs.ErrNotFound)
}

func (s *memTokenStore) Get(ctx context.Context, id int64) (*auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: token %d", songs.ErrNotFound, id)
	}
	copied := *token
	return &copied, nil
}

func (s *memTokenStore) ListByUser(ctx context.Context, userID int64) ([]*auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*auth.APIToken
	for _, token := range s.tokens {
		if token.UserID == userID {
			copied := *token
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (s *memTokenStore) Revoke(ctx context.Context, id, revokedBy int64, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return fmt.Errorf("%w: token %d", songs.ErrNotFound, id)
	}
	if token.RevokedAt == nil {
		token.RevokedAt = &at
		token.RevokedBy = &revokedBy
		token.RevokeReason = reason
	}
	return nil
}

func (s *memTokenStore) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[id]; ok {
		token.LastUsedAt = &at
	}
	return nil
}

func (s *memTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// memSink captures audit events in memory.
type memSink struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (s *memSink) Append(ctx context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) all() []*audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*audit.Event(nil), s.events...)
}

func (s *memSink) last() *audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

// fixture bundles a fully wired test server.
type fixture struct {
	server *Server
	store  *memSongStore
	users  *memUserStore
	tokens *auth.TokenManager
	sink   *memSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemSongStore()
	users := newMemUserStore()
	sink := &memSink{}

	manager, err := auth.NewTokenManager(newMemTokenStore(), users)
	require.NoError(t, err)

	enforcer, err := authz.NewEnforcer(store, audit.NewLogger(sink))
	require.NoError(t, err)

	server, err := NewServer(Deps{
		Songs:    store,
		Users:    users,
		Enforcer: enforcer,
		Tokens:   manager,
	})
	require.NoError(t, err)

	return &fixture{
		server: server,
		store:  store,
		users:  users,
		tokens: manager,
		sink:   sink,
	}
}

// newUser registers a user directly against the stores and returns the
// user plus a bearer token.
func (f *fixture) newUser(t *testing.T, email string) (*songs.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("correct horse battery")
	require.NoError(t, err)
	user := &songs.User{Email: email, PasswordHash: hash, IsActive: true}
	require.NoError(t, f.users.Create(context.Background(), user))

	_, plaintext, err := f.tokens.Create(context.Background(), user.ID, "test", nil)
	require.NoError(t, err)
	return user, plaintext
}

// addSong seeds a song directly into the store.
func (f *fixture) addSong(t *testing.T, song *songs.Song) *songs.Song {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), song))
	return song
}

// do performs a request against the test server. body may be nil or any
// JSON-marshalable value; token "" sends no Authorization header.
func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var _ http.Handler = (*Server)(nil)
