// Package auth provides account credentials and API token management.
//
// Tokens are opaque strings of the form chordme_<base64url(32 random
// bytes)>. Only the SHA256 hash of a token is ever stored; the plaintext
// is returned exactly once at creation. Validation goes through an LRU
// cache keyed by token hash so that hot tokens do not hit the database
// on every request.
//
// Passwords are hashed with bcrypt. The package never logs or returns
// credential material.
package auth
