package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// UnknownFieldError reports an unexpected field in a strict JSON payload.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// ParseJSON decodes the request body into dest.
func ParseJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a 400 on failure.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParseJSONStrict decodes the request body into dest, rejecting fields
// the destination does not declare. Unknown fields come back as an
// *UnknownFieldError naming the offending field.
func ParseJSONStrict(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if field, ok := unknownField(err); ok {
			return &UnknownFieldError{Field: field}
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONStrictOrError decodes strict JSON and writes a 400 on failure.
func ParseJSONStrictOrError(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := ParseJSONStrict(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// unknownField extracts the field name from encoding/json's unknown
// field error. The message format is stable across Go releases:
// `json: unknown field "name"`.
func unknownField(err error) (string, bool) {
	const marker = `json: unknown field `
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	field := strings.Trim(msg[idx+len(marker):], `"`)
	return field, true
}

// IsUnknownField reports whether err is an unknown-field rejection and
// returns the field name.
func IsUnknownField(err error) (string, bool) {
	var ufe *UnknownFieldError
	if errors.As(err, &ufe) {
		return ufe.Field, true
	}
	return "", false
}

// ParsePathInt64 extracts and parses an int64 path parameter.
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes a
// 400 on failure.
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// ParsePathString extracts a string path parameter.
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParsePathStringOrError extracts a string path parameter and writes a
// 400 on failure.
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return "", false
	}
	return val, true
}

// ParseQueryInt extracts an integer query parameter with a default.
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryInt64 extracts an int64 query parameter with a default.
func ParseQueryInt64(r *http.Request, key string, defaultVal int64) (int64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter with a default.
func ParseQueryString(r *http.Request, key, defaultVal string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return defaultVal
}
