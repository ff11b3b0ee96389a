package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/songs"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", "", registerRequest{
		Email:    "Alice@Example.com",
		Password: "correct horse battery",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	user := decodeBody[songs.User](t, rec)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotZero(t, user.ID)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterRejections(t *testing.T) {
	f := newFixture(t)
	f.newUser(t, "taken@example.com")

	tests := []struct {
		name string
		req  registerRequest
		want int
	}{
		{name: "missing email", req: registerRequest{Password: "longenough"}, want: http.StatusBadRequest},
		{name: "not an email", req: registerRequest{Email: "nope", Password: "longenough"}, want: http.StatusBadRequest},
		{name: "short password", req: registerRequest{Email: "a@b.com", Password: "short"}, want: http.StatusBadRequest},
		{name: "duplicate email", req: registerRequest{Email: "taken@example.com", Password: "longenough"}, want: http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/auth/register", "", tc.req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	user, _ := f.newUser(t, "alice@example.com")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[tokenResponse](t, rec)
	assert.Equal(t, user.ID, resp.User.ID)
	require.NotEmpty(t, resp.Token)

	// The minted token authenticates.
	me := f.do(t, http.MethodGet, "/api/v1/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	got := decodeBody[songs.User](t, me)
	assert.Equal(t, user.ID, got.ID)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t)
	f.newUser(t, "alice@example.com")

	hash, err := auth.HashPassword("correct horse battery")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), &songs.User{
		Email:        "dormant@example.com",
		PasswordHash: hash,
		IsActive:     false,
	}))

	wrongPassword := f.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{
		Email:    "alice@example.com",
		Password: "wrong password!!",
	})
	unknownEmail := f.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{
		Email:    "nobody@example.com",
		Password: "correct horse battery",
	})
	inactive := f.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{
		Email:    "dormant@example.com",
		Password: "correct horse battery",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, http.StatusUnauthorized, inactive.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, wrongPassword.Body.String(), inactive.Body.String())
}

func TestTokenLifecycle(t *testing.T) {
	f := newFixture(t)
	_, token := f.newUser(t, "alice@example.com")

	created := f.do(t, http.MethodPost, "/api/v1/auth/tokens", token, createTokenRequest{Name: "ci"})
	require.Equal(t, http.StatusCreated, created.Code)
	resp := decodeBody[tokenResponse](t, created)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "ci", resp.TokenInfo.Name)

	list := f.do(t, http.MethodGet, "/api/v1/auth/tokens", token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	tokens := decodeBody[[]auth.APIToken](t, list)
	assert.Len(t, tokens, 2)

	revoke := f.do(t, http.MethodDelete, "/api/v1/auth/tokens/"+strconv.FormatInt(resp.TokenInfo.ID, 10), token, nil)
	require.Equal(t, http.StatusNoContent, revoke.Code)

	// The revoked token no longer authenticates.
	me := f.do(t, http.MethodGet, "/api/v1/auth/me", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestRevokeForeignTokenIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, aliceToken := f.newUser(t, "alice@example.com")
	_, malloryToken := f.newUser(t, "mallory@example.com")

	// Alice's seeded token has id 1.
	rec := f.do(t, http.MethodDelete, "/api/v1/auth/tokens/1", malloryToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Alice's token still works.
	me := f.do(t, http.MethodGet, "/api/v1/auth/me", aliceToken, nil)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestTokenEndpointsRequireAuth(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{method: http.MethodGet, path: "/api/v1/auth/me"},
		{method: http.MethodGet, path: "/api/v1/auth/tokens"},
		{method: http.MethodPost, path: "/api/v1/auth/tokens", body: createTokenRequest{Name: "x"}},
		{method: http.MethodDelete, path: "/api/v1/auth/tokens/1"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, "", tc.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCreateTokenValidations(t *testing.T) {
	f := newFixture(t)
	_, token := f.newUser(t, "alice@example.com")

	t.Run("name required", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/auth/tokens", token, createTokenRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("expiry must be future", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/auth/tokens", token,
			json.RawMessage(`{"name": "x", "expires_at": "2020-01-01T00:00:00Z"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
