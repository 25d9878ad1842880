package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// RefreshTokenRepository stores opaque refresh tokens with their TTL.
// Consume removes the token atomically, so a refresh token can be
// redeemed exactly once; rotation issues a fresh one.
type RefreshTokenRepository interface {
	Save(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Consume(ctx context.Context, token string) (int64, error)
	Revoke(ctx context.Context, token string) error
}

type refreshTokenRepository struct {
	client *goredis.Client
	prefix string
}

func NewRefreshTokenRepository(client *goredis.Client) RefreshTokenRepository {
	return &refreshTokenRepository{client: client, prefix: "refresh:"}
}

func (r *refreshTokenRepository) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+token, userID, ttl).Err(); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) Consume(ctx context.Context, token string) (int64, error) {
	val, err := r.client.GetDel(ctx, r.prefix+token).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, domain.ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("consuming refresh token: %w", err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidToken
	}

	return userID, nil
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.prefix+token).Err()
}
