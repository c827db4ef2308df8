package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dragfer/spot95/internal/domain"
	"github.com/dragfer/spot95/internal/platform/crypto"
)

const credentialKeyPrefix = "credential:"

// CredentialCache stores access tokens in Redis, encrypted with the same key
// as the users table.
type CredentialCache struct {
	rdb    goredis.Cmdable
	crypto crypto.Service
}

var _ domain.CredentialCache = (*CredentialCache)(nil)

func NewCredentialCache(rdb goredis.Cmdable, cryptoSvc crypto.Service) *CredentialCache {
	return &CredentialCache{rdb: rdb, crypto: cryptoSvc}
}

func credentialKey(userID string) string {
	return credentialKeyPrefix + userID
}

func (c *CredentialCache) Get(ctx context.Context, userID string) (string, bool, error) {
	raw, err := c.rdb.Get(ctx, credentialKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached credential: %w", err)
	}

	token, err := c.crypto.Decrypt(raw)
	if err != nil {
		// Unreadable entries (e.g. after a key rotation) are dropped and
		// treated as a miss.
		slog.Warn("Dropping undecryptable cached credential", "user_id", userID, "error", err)
		_ = c.rdb.Del(ctx, credentialKey(userID)).Err()
		return "", false, nil
	}
	return token, true, nil
}

// Set is a no-op for a non-positive ttl.
func (c *CredentialCache) Set(ctx context.Context, userID, accessToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	encrypted, err := c.crypto.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	if err := c.rdb.Set(ctx, credentialKey(userID), encrypted, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache credential: %w", err)
	}
	return nil
}

func (c *CredentialCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, credentialKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached credential: %w", err)
	}
	return nil
}
