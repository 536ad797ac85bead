package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker keeps track of JWTs that were logged out before they expired
type Revoker interface {
	// Revoke marks the token as revoked. It only has to be remembered
	// until the given time, after that the token is expired anyway.
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevoker keeps revoked tokens in process memory. Revocations are lost
// on restart.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

var _ Revoker = &MemoryRevoker{}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// drop entries for tokens that have expired by now
	for id, expiry := range m.revoked {
		if !expiry.After(now) {
			delete(m.revoked, id)
		}
	}
	if until.After(now) {
		m.revoked[tokenID] = until
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.revoked[tokenID]
	return ok && expiry.After(m.now()), nil
}

// RedisKeyPrefix is prepended to the token ID of every revocation key
const RedisKeyPrefix = "satswap:revoked:"

// RedisRevoker stores revoked tokens in Redis, so that every API instance
// sees the same revocations and they survive restarts
type RedisRevoker struct {
	client redis.Cmdable
}

var _ Revoker = RedisRevoker{}

func NewRedisRevoker(client redis.Cmdable) RedisRevoker {
	return RedisRevoker{client: client}
}

func (r RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, RedisKeyPrefix+tokenID, 1, ttl).Err()
}

func (r RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := r.client.Exists(ctx, RedisKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
