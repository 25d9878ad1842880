package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// SocialIdentityRepository maps external provider identities to users.
type SocialIdentityRepository interface {
	FindByProviderExternalID(ctx context.Context, provider, externalID string) (*domain.SocialIdentity, error)
	Link(ctx context.Context, userID int64, provider, externalID, email string) (*domain.SocialIdentity, error)
	TouchLogin(ctx context.Context, id int64) error
}

type socialIdentityRepository struct {
	pool *pgxpool.Pool
}

func NewSocialIdentityRepository(pool *pgxpool.Pool) SocialIdentityRepository {
	return &socialIdentityRepository{pool: pool}
}

func (r *socialIdentityRepository) FindByProviderExternalID(ctx context.Context, provider, externalID string) (*domain.SocialIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var si domain.SocialIdentity
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, external_id, email, last_login_at, created_at
		FROM social_identities
		WHERE provider = $1 AND external_id = $2`,
		provider, externalID,
	).Scan(&si.ID, &si.UserID, &si.Provider, &si.ExternalID, &si.Email, &si.LastLoginAt, &si.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &si, nil
}

func (r *socialIdentityRepository) Link(ctx context.Context, userID int64, provider, externalID, email string) (*domain.SocialIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var si domain.SocialIdentity
	err := r.pool.QueryRow(ctx, `
		INSERT INTO social_identities (user_id, provider, external_id, email, last_login_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, user_id, provider, external_id, email, last_login_at, created_at`,
		userID, provider, externalID, email,
	).Scan(&si.ID, &si.UserID, &si.Provider, &si.ExternalID, &si.Email, &si.LastLoginAt, &si.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}

	return &si, nil
}

func (r *socialIdentityRepository) TouchLogin(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE social_identities SET last_login_at = now() WHERE id = $1`,
		id,
	)
	return err
}
