// Package redis backs the OTP ledger and verified flags with Redis so that several
// gateway instances share one view of live codes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/otpcode"
	"github.com/redis/go-redis/v9"
)

// consumeScript compares and deletes in one step. Return values match domain.ConsumeResult.
var consumeScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then return 0 end
if code ~= ARGV[1] then return 1 end
redis.call('DEL', KEYS[1])
return 2
`)

// Ledger stores each record as a hash that Redis expires at the end of its window.
type Ledger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	gen    func() (string, error)
	nowF   func() time.Time
}

func NewLedger(client redis.UniversalClient, ttl time.Duration) *Ledger {
	return &Ledger{
		client: client,
		prefix: "otp:",
		ttl:    ttl,
		gen:    otpcode.New,
		nowF:   time.Now,
	}
}

func (l *Ledger) key(k domain.PhoneKey) string { return l.prefix + string(k) }

// Issue replaces any record for k in a single MULTI/EXEC.
func (l *Ledger) Issue(ctx context.Context, k domain.PhoneKey) (*domain.OTPRecord, error) {
	code, err := l.gen()
	if err != nil {
		return nil, err
	}
	now := l.nowF()
	rec := domain.OTPRecord{Code: code, IssuedAt: now, ExpiresAt: now.Add(l.ttl)}
	key := l.key(k)
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", rec.Code,
			"issued_at", strconv.FormatInt(rec.IssuedAt.UnixMilli(), 10),
			"expires_at", strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis issue: %w", err)
	}
	return &rec, nil
}

func (l *Ledger) Peek(ctx context.Context, k domain.PhoneKey) (*domain.OTPRecord, error) {
	vals, err := l.client.HGetAll(ctx, l.key(k)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis peek: %w", err)
	}
	code, ok := vals["code"]
	if !ok {
		return nil, fmt.Errorf("otp: %w", domain.ErrNotFound)
	}
	rec := domain.OTPRecord{
		Code:      code,
		IssuedAt:  parseMillis(vals["issued_at"]),
		ExpiresAt: parseMillis(vals["expires_at"]),
	}
	if rec.Expired(l.nowF()) {
		l.client.Del(ctx, l.key(k))
		return nil, fmt.Errorf("otp: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

func (l *Ledger) Consume(ctx context.Context, k domain.PhoneKey, code string) (domain.ConsumeResult, error) {
	n, err := consumeScript.Run(ctx, l.client, []string{l.key(k)}, code).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.ConsumeNotFound, fmt.Errorf("redis consume: %w", err)
	}
	switch domain.ConsumeResult(n) {
	case domain.ConsumeSuccess:
		return domain.ConsumeSuccess, nil
	case domain.ConsumeMismatch:
		return domain.ConsumeMismatch, nil
	default:
		return domain.ConsumeNotFound, nil
	}
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
