package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/redis/go-redis/v9"
)

// VerifiedStore keeps verified flags without expiry. The stored value is the
// first verification time in Unix seconds.
type VerifiedStore struct {
	client redis.UniversalClient
	prefix string
}

func NewVerifiedStore(client redis.UniversalClient) *VerifiedStore {
	return &VerifiedStore{client: client, prefix: "verified:"}
}

func (s *VerifiedStore) MarkVerified(ctx context.Context, k domain.PhoneKey) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	return s.client.SetNX(ctx, s.prefix+string(k), now, 0).Err()
}

func (s *VerifiedStore) IsVerified(ctx context.Context, k domain.PhoneKey) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+string(k)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
