// Package middleware provides HTTP middleware for the ChordMe API:
// request identification, bearer-token authentication and Redis-backed
// rate limiting.
//
// Ordering matters: RequestID runs first so every downstream component
// (auth, rate limiting, audit) sees the request id and client IP on the
// context.
package middleware
