package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONStrict(t *testing.T) {
	type payload struct {
		Level string `json:"level"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"level":"edit"}`))
		var p payload
		require.NoError(t, ParseJSONStrict(r, &p))
		assert.Equal(t, "edit", p.Level)
	})

	t.Run("unknown field is reported by name", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"level":"edit","is_superuser":true}`))
		var p payload
		err := ParseJSONStrict(r, &p)
		require.Error(t, err)

		field, ok := IsUnknownField(err)
		require.True(t, ok)
		assert.Equal(t, "is_superuser", field)
	})

	t.Run("malformed body is not an unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var p payload
		err := ParseJSONStrict(r, &p)
		require.Error(t, err)

		_, ok := IsUnknownField(err)
		assert.False(t, ok)
	})
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/songs/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/songs/abc", nil))
	assert.Error(t, gotErr)
}

func TestParseQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&actor=7&format=csv", nil)

	limit, err := ParseQueryInt(r, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	missing, err := ParseQueryInt(r, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, missing)

	actor, err := ParseQueryInt64(r, "actor", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), actor)

	assert.Equal(t, "csv", ParseQueryString(r, "format", "json"))
	assert.Equal(t, "json", ParseQueryString(r, "missing", "json"))

	_, err = ParseQueryInt(r, "format", 0)
	assert.Error(t, err)
}
