package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
)

// RevokedTokenRepository implements persistence.RevokedTokenRepository.
type RevokedTokenRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewRevokedTokenRepository creates a SQLite revoked token repository.
func NewRevokedTokenRepository(pool *ConnectionPool) *RevokedTokenRepository {
	return &RevokedTokenRepository{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

// RevokeToken records a token as logged out. Revoking the same token twice
// keeps the first record.
func (r *RevokedTokenRepository) RevokeToken(ctx context.Context, token persistence.RevokedToken) error {
	if strings.TrimSpace(token.TokenID) == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, `
			INSERT INTO revoked_tokens (token_id, user_id, expires_at, revoked_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (token_id) DO NOTHING`,
			token.TokenID, token.UserID, formatTimestamp(token.ExpiresAt), formatTimestamp(token.RevokedAt),
		)
		return err
	})
}

// IsTokenRevoked reports whether the token ID was revoked.
func (r *RevokedTokenRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int
	if err := r.pool.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM revoked_tokens WHERE token_id = ?`, tokenID); err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

// DeleteExpiredTokens removes records whose token expired on or before reference.
// An expired token fails validation on its own, so its record is no longer needed.
func (r *RevokedTokenRepository) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, formatTimestamp(reference))
		return err
	})
}
