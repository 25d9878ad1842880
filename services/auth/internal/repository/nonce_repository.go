package repository

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceRepository tracks issued one-time nonces for the social auth
// state. A nonce is marked once when issued and claimed once on
// callback; a second claim fails, which defeats state replay.
type NonceRepository interface {
	Issue(ctx context.Context, nonce string, ttl time.Duration) error
	Claim(ctx context.Context, nonce string) (bool, error)
}

type nonceRepository struct {
	client *goredis.Client
	prefix string
}

func NewNonceRepository(client *goredis.Client) NonceRepository {
	return &nonceRepository{client: client, prefix: "socialnonce:"}
}

func (r *nonceRepository) Issue(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, r.prefix+nonce, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("issuing nonce: %w", err)
	}
	if !ok {
		return fmt.Errorf("nonce already issued")
	}
	return nil
}

// Claim deletes the nonce and reports whether it existed.
func (r *nonceRepository) Claim(ctx context.Context, nonce string) (bool, error) {
	removed, err := r.client.Del(ctx, r.prefix+nonce).Result()
	if err != nil {
		return false, fmt.Errorf("claiming nonce: %w", err)
	}
	return removed == 1, nil
}
