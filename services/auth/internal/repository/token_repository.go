package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// TokenRepository persists the single-use opaque tokens for password
// reset and email confirmation. Consumption is atomic: the row is
// locked, checked, marked used, and the paired user mutation applied in
// one transaction, so two concurrent consumers of the same token cannot
// both succeed.
type TokenRepository interface {
	CreatePasswordReset(ctx context.Context, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error)
	CreateEmailConfirmation(ctx context.Context, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error)
	ConsumeResetAndSetPassword(ctx context.Context, token, newPasswordHash string) (int64, error)
	ConsumeConfirmationAndActivate(ctx context.Context, token string) (int64, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

func (r *tokenRepository) CreatePasswordReset(ctx context.Context, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error) {
	return r.create(ctx, "password_reset_tokens", userID, token, ttl)
}

func (r *tokenRepository) CreateEmailConfirmation(ctx context.Context, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error) {
	return r.create(ctx, "email_confirmation_tokens", userID, token, ttl)
}

// create inserts a new token and supersedes any outstanding unused ones
// for the same user, so only the most recently issued token works.
func (r *tokenRepository) create(ctx context.Context, table string, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE `+table+` SET superseded = true WHERE user_id = $1 AND used_at IS NULL AND NOT superseded`,
		userID,
	); err != nil {
		return nil, err
	}

	var t domain.OpaqueToken
	err = tx.QueryRow(ctx, `
		INSERT INTO `+table+` (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token, expires_at, used_at, superseded, created_at`,
		userID, token, time.Now().Add(ttl),
	).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.UsedAt, &t.Superseded, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *tokenRepository) ConsumeResetAndSetPassword(ctx context.Context, token, newPasswordHash string) (int64, error) {
	return r.consume(ctx, "password_reset_tokens", token, func(ctx context.Context, tx pgx.Tx, userID int64) error {
		_, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
			userID, newPasswordHash,
		)
		return err
	})
}

func (r *tokenRepository) ConsumeConfirmationAndActivate(ctx context.Context, token string) (int64, error) {
	return r.consume(ctx, "email_confirmation_tokens", token, func(ctx context.Context, tx pgx.Tx, userID int64) error {
		// Confirming an already-active account only consumes the token.
		_, err := tx.Exec(ctx,
			`UPDATE users SET status = 'active', updated_at = now() WHERE id = $1 AND status = 'pending'`,
			userID,
		)
		return err
	})
}

// consume locks the token row, verifies it is usable, marks it used and
// applies the paired mutation. Returns the owning user ID on success.
func (r *tokenRepository) consume(ctx context.Context, table, token string, mutate func(context.Context, pgx.Tx, int64) error) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var t domain.OpaqueToken
	err = tx.QueryRow(ctx,
		`SELECT id, user_id, expires_at, used_at, superseded FROM `+table+` WHERE token = $1 FOR UPDATE`,
		token,
	).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.UsedAt, &t.Superseded)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}

	if t.Used() {
		return 0, domain.ErrTokenAlreadyUsed
	}
	// Superseded tokens behave as expired: a newer token replaced them.
	if t.Superseded || t.Expired(time.Now()) {
		return 0, domain.ErrTokenExpired
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+table+` SET used_at = now() WHERE id = $1`,
		t.ID,
	); err != nil {
		return 0, err
	}

	if err := mutate(ctx, tx, t.UserID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return t.UserID, nil
}

// DeleteExpiredTokens removes rows no longer consumable from both token
// tables. Meant for a periodic janitor, not request paths.
func (r *tokenRepository) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var total int64
	for _, table := range []string{"password_reset_tokens", "email_confirmation_tokens"} {
		result, err := r.pool.Exec(ctx,
			`DELETE FROM `+table+` WHERE expires_at < $1 OR used_at IS NOT NULL OR superseded`,
			before,
		)
		if err != nil {
			return total, err
		}
		total += result.RowsAffected()
	}

	return total, nil
}
