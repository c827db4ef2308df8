// Package redis holds the Redis-backed credential cache and the client hooks
// that guard every command with a circuit breaker.
package redis
