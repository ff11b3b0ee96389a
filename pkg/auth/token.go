package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chordme/chordme/pkg/songs"
)

const (
	// TokenPrefix identifies ChordMe tokens.
	TokenPrefix = "chordme_"
	// TokenLength is the number of random bytes per token.
	TokenLength = 32

	// defaultCacheSize bounds the validated-token cache.
	defaultCacheSize = 1024
)

// ErrInvalidToken covers every validation failure: malformed, unknown,
// revoked, or expired. Callers get one undifferentiated error so that a
// probing client cannot tell which it was.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenStore is the persistence contract for API tokens.
type TokenStore interface {
	Create(ctx context.Context, token *APIToken) error
	GetByHash(ctx context.Context, hash string) (*APIToken, error)
	Get(ctx context.Context, id int64) (*APIToken, error)
	ListByUser(ctx context.Context, userID int64) ([]*APIToken, error)
	Revoke(ctx context.Context, id, revokedBy int64, reason string, at time.Time) error
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenGenerator generates and hashes API tokens.
type TokenGenerator struct{}

// NewTokenGenerator creates a token generator.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// Generate creates a new token. Returns the plaintext token, its SHA256
// hash for storage, and the display prefix.
func (tg *TokenGenerator) Generate() (token, hash, prefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = TokenPrefix + encoded
	hash = tg.Hash(token)

	prefix = TokenPrefix
	if len(encoded) >= 8 {
		prefix = TokenPrefix + encoded[:8]
	}
	return token, hash, prefix, nil
}

// Hash computes the SHA256 hash of a token for lookup.
func (tg *TokenGenerator) Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateFormat checks the token shape without touching storage.
func (tg *TokenGenerator) ValidateFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if encoded == "" {
		return errors.New("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}

// TokenManager manages the API token lifecycle on top of a TokenStore,
// with an LRU cache over validated tokens keyed by token hash.
type TokenManager struct {
	generator *TokenGenerator
	tokens    TokenStore
	users     songs.UserStore
	cache     *lru.Cache[string, *APIToken]
	now       func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(tokens TokenStore, users songs.UserStore) (*TokenManager, error) {
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	if users == nil {
		return nil, errors.New("user store is required")
	}
	cache, err := lru.New[string, *APIToken](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &TokenManager{
		generator: NewTokenGenerator(),
		tokens:    tokens,
		users:     users,
		cache:     cache,
		now:       time.Now,
	}, nil
}

// Create mints a token for userID. The plaintext is returned once and
// never stored.
func (tm *TokenManager) Create(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	plaintext, hash, prefix, err := tm.generator.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := &APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		Name:        name,
		ExpiresAt:   expiresAt,
		CreatedAt:   tm.now().UTC(),
	}
	if err := tm.tokens.Create(ctx, token); err != nil {
		return nil, "", err
	}
	return token, plaintext, nil
}

// Validate resolves a plaintext token to its authenticated caller. All
// failure modes collapse to ErrInvalidToken except store outages, which
// are surfaced as-is so callers can answer 503 rather than 401.
func (tm *TokenManager) Validate(ctx context.Context, plaintext string) (*Context, error) {
	if err := tm.generator.ValidateFormat(plaintext); err != nil {
		return nil, ErrInvalidToken
	}
	hash := tm.generator.Hash(plaintext)

	token, ok := tm.cache.Get(hash)
	if !ok {
		var err error
		token, err = tm.tokens.GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, songs.ErrNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		tm.cache.Add(hash, token)
	}

	if token.Revoked() || token.Expired(tm.now()) {
		tm.cache.Remove(hash)
		return nil, ErrInvalidToken
	}

	user, err := tm.users.Get(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, songs.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	// Best effort; a failed touch does not fail the request.
	_ = tm.tokens.TouchLastUsed(ctx, token.ID, tm.now().UTC())

	return &Context{User: user, Token: token}, nil
}

// Revoke marks a token revoked and evicts it from the cache.
func (tm *TokenManager) Revoke(ctx context.Context, tokenID, revokedBy int64, reason string) error {
	token, err := tm.tokens.Get(ctx, tokenID)
	if err != nil {
		return err
	}
	if err := tm.tokens.Revoke(ctx, tokenID, revokedBy, reason, tm.now().UTC()); err != nil {
		return err
	}
	tm.cache.Remove(token.TokenHash)
	return nil
}

// Get returns a token record by id.
func (tm *TokenManager) Get(ctx context.Context, tokenID int64) (*APIToken, error) {
	return tm.tokens.Get(ctx, tokenID)
}

// ListUserTokens returns all tokens for a user, revoked ones included.
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	return tm.tokens.ListByUser(ctx, userID)
}

// CleanupExpired deletes tokens whose expiry has passed and returns how
// many were removed. The cache self-corrects on next lookup.
func (tm *TokenManager) CleanupExpired(ctx context.Context) (int64, error) {
	return tm.tokens.DeleteExpired(ctx, tm.now().UTC())
}
