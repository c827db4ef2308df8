// Package spotify is the outbound adapter for the Spotify Web API.
//
// Every request goes through one process-wide RateBudget, which is refreshed from the
// X-RateLimit-* headers of each response and makes callers wait when the quota is nearly
// spent. Read methods never return errors to the poller: upstream failures are logged and
// collapse to "no data". Only credential failures surface as errors, so callers can tell an
// unauthenticated user from an idle one.
package spotify
