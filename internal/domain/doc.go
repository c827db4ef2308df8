// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (errors.go, user.go, track.go, mood.go, message.go) hold shared types
// and the contracts between the poller, the registry and the adapters. No implementation code.
package domain
