package application

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/timerecording/internal/persistence"
)

// RevokedTokenRepository persists logged out token ids.
type RevokedTokenRepository interface {
	RevokeToken(ctx context.Context, token persistence.RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) error
}

// TokenDenylist answers whether a token id was revoked. Only revocations are
// cached, for the token lifetime. A token not found revoked is looked up again
// on every request so a logout recorded by another instance takes effect
// immediately.
type TokenDenylist struct {
	repo  RevokedTokenRepository
	cache *expirable.LRU[string, bool]
}

// NewTokenDenylist constructs a denylist caching up to size revocations for ttl.
func NewTokenDenylist(repo RevokedTokenRepository, size int, ttl time.Duration) *TokenDenylist {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenDenylist{
		repo:  repo,
		cache: expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

// IsRevoked reports whether tokenID was revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if d == nil {
		return false, nil
	}
	if _, ok := d.cache.Get(tokenID); ok {
		return true, nil
	}
	if d.repo == nil {
		return false, nil
	}
	revoked, err := d.repo.IsTokenRevoked(ctx, tokenID)
	if err != nil {
		return false, err
	}
	if revoked {
		d.cache.Add(tokenID, true)
	}
	return revoked, nil
}

// Revoke records tokenID as revoked until expiresAt and prunes records of
// tokens that expired before now.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID, userID string, expiresAt, now time.Time) error {
	if d == nil {
		return nil
	}
	if d.repo != nil {
		if err := d.repo.RevokeToken(ctx, persistence.RevokedToken{
			TokenID:   tokenID,
			UserID:    userID,
			ExpiresAt: expiresAt,
			RevokedAt: now,
		}); err != nil {
			return err
		}
		if err := d.repo.DeleteExpiredTokens(ctx, now); err != nil {
			return err
		}
	}
	d.cache.Add(tokenID, true)
	return nil
}

// Len reports the number of cached revocations.
func (d *TokenDenylist) Len() int {
	if d == nil {
		return 0
	}
	return d.cache.Len()
}
