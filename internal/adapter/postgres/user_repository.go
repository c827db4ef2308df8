package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dragfer/spot95/internal/domain"
	"github.com/dragfer/spot95/internal/platform/crypto"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, spotify_id, display_name, access_token, refresh_token, token_expiry, created_at, updated_at`

// UserRepo stores Spotify accounts. Tokens are encrypted before they reach the database.
type UserRepo struct {
	pool   *pgxpool.Pool
	crypto crypto.Service
}

var _ domain.UserRepository = (*UserRepo)(nil)

func NewUserRepo(pool *pgxpool.Pool, cryptoSvc crypto.Service) *UserRepo {
	return &UserRepo{pool: pool, crypto: cryptoSvc}
}

func (r *UserRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.SpotifyID, &user.DisplayName,
		&user.AccessToken, &user.RefreshToken, &user.TokenExpiry,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.AccessToken, err = r.crypto.Decrypt(user.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if user.RefreshToken, err = r.crypto.Decrypt(user.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) encryptTokens(accessToken, refreshToken string) (string, string, error) {
	encAccess, err := r.crypto.Encrypt(accessToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := r.crypto.Encrypt(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return encAccess, encRefresh, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, err
}

func (r *UserRepo) GetBySpotifyID(ctx context.Context, spotifyID string) (*domain.User, error) {
	user, err := r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE spotify_id = $1`, spotifyID))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to get user by Spotify ID: %w", err)
	}
	return user, err
}

// Upsert inserts the account or refreshes its profile and tokens when the Spotify id exists.
func (r *UserRepo) Upsert(ctx context.Context, spotifyID, displayName, accessToken, refreshToken string, tokenExpiry time.Time) (*domain.User, error) {
	encAccess, encRefresh, err := r.encryptTokens(accessToken, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := r.scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (spotify_id, display_name, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (spotify_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = NOW()
		RETURNING `+userColumns,
		spotifyID, displayName, encAccess, encRefresh, tokenExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, tokenExpiry time.Time) error {
	encAccess, encRefresh, err := r.encryptTokens(accessToken, refreshToken)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET access_token = $1, refresh_token = $2, token_expiry = $3, updated_at = NOW()
		WHERE id = $4
	`, encAccess, encRefresh, tokenExpiry, userID)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
