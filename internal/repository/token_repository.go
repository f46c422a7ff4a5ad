package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"userhub/api/internal/models"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Insert(ctx context.Context, token models.ActionToken) error {
	const query = `
		INSERT INTO action_tokens (token_hash, user_id, purpose, created_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
	`
	_, err := r.pool.Exec(ctx, query,
		token.TokenHash,
		token.UserID,
		token.Purpose,
		token.ExpiresAt,
	)
	return err
}

// Redeem deletes the token and returns its user id in one statement, so a
// token can never be redeemed twice even under concurrent requests. Expired
// tokens are indistinguishable from unknown ones.
func (r *TokenRepository) Redeem(ctx context.Context, tokenHash []byte, purpose models.TokenPurpose) (string, error) {
	const query = `
		DELETE FROM action_tokens
		WHERE token_hash = $1 AND purpose = $2 AND expires_at > NOW()
		RETURNING user_id
	`
	var userID string
	if err := r.pool.QueryRow(ctx, query, tokenHash, purpose).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		return "", err
	}
	return userID, nil
}

// DeleteForUser drops any outstanding tokens of one purpose, so issuing a
// new token invalidates its predecessors.
func (r *TokenRepository) DeleteForUser(ctx context.Context, userID string, purpose models.TokenPurpose) error {
	const query = `DELETE FROM action_tokens WHERE user_id = $1 AND purpose = $2`
	_, err := r.pool.Exec(ctx, query, userID, purpose)
	return err
}

func (r *TokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM action_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
