package spotify

import (
	"errors"
	"fmt"

	"github.com/dragfer/spot95/internal/domain"
)

// StatusError is an unexpected HTTP status from the Web API.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify %s: status %d", e.Endpoint, e.Status)
}

// TokenRefreshError reports a failed refresh_token grant. Revoked is set when the token
// endpoint rejected the refresh token itself.
type TokenRefreshError struct {
	Revoked bool
	Err     error
}

func (e *TokenRefreshError) Error() string {
	if e.Revoked {
		return fmt.Sprintf("token revoked: %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}

// Is makes every refresh failure match domain.ErrCredentialUnavailable.
func (e *TokenRefreshError) Is(target error) bool {
	return target == domain.ErrCredentialUnavailable
}

// IsRevoked reports whether err carries a revoked refresh token.
func IsRevoked(err error) bool {
	var refreshErr *TokenRefreshError
	return errors.As(err, &refreshErr) && refreshErr.Revoked
}
