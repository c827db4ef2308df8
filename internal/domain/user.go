package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the stored record for a Spotify account. Tokens are plaintext here;
// encryption happens at the repository layer.
type User struct {
	ID           uuid.UUID
	SpotifyID    string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetBySpotifyID(ctx context.Context, spotifyID string) (*User, error)
	Upsert(ctx context.Context, spotifyID, displayName, accessToken, refreshToken string, tokenExpiry time.Time) (*User, error)
	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, tokenExpiry time.Time) error
}

// CredentialCache holds short-lived access tokens keyed by user id.
// A miss is reported as ("", false, nil); errors are for infrastructure failures only.
type CredentialCache interface {
	Get(ctx context.Context, userID string) (string, bool, error)
	Set(ctx context.Context, userID, accessToken string, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}

// CredentialSource resolves a usable bearer token for a user.
type CredentialSource interface {
	ValidCredential(ctx context.Context, userID string) (string, error)
}
