// Package memory provides process-lifetime stores for OTP records and verified flags.
package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/otpcode"
)

const shardCount = 32

type ledgerShard struct {
	mu      sync.Mutex
	records map[domain.PhoneKey]domain.OTPRecord
}

// Ledger is an in-memory OTP ledger. Records are spread over fixed shards,
// each guarded by its own mutex, so operations on different phones rarely contend.
// Expiry is checked lazily on access; Sweep evicts records nobody looks up again.
type Ledger struct {
	shards [shardCount]*ledgerShard
	ttl    time.Duration
	gen    func() (string, error)
	nowF   func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the ledger's time source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.nowF = now }
}

// WithGenerator overrides the code generator.
func WithGenerator(gen func() (string, error)) LedgerOption {
	return func(l *Ledger) { l.gen = gen }
}

// NewLedger returns an empty ledger whose records are valid for ttl.
func NewLedger(ttl time.Duration, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		ttl:  ttl,
		gen:  otpcode.New,
		nowF: time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &ledgerShard{records: make(map[domain.PhoneKey]domain.OTPRecord)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) shard(key domain.PhoneKey) *ledgerShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// Issue generates a fresh code for key, replacing any live record.
func (l *Ledger) Issue(_ context.Context, key domain.PhoneKey) (*domain.OTPRecord, error) {
	code, err := l.gen()
	if err != nil {
		return nil, err
	}
	now := l.nowF()
	rec := domain.OTPRecord{Code: code, IssuedAt: now, ExpiresAt: now.Add(l.ttl)}

	s := l.shard(key)
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return &rec, nil
}

// Peek returns the live record for key. An expired record is deleted and reported as not found.
func (l *Ledger) Peek(_ context.Context, key domain.PhoneKey) (*domain.OTPRecord, error) {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := l.lookupLocked(s, key)
	if !ok {
		return nil, fmt.Errorf("otp: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

// Consume checks code against the live record for key and deletes the record on a match.
// A mismatch leaves the record in place.
func (l *Ledger) Consume(_ context.Context, key domain.PhoneKey, code string) (domain.ConsumeResult, error) {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := l.lookupLocked(s, key)
	if !ok {
		return domain.ConsumeNotFound, nil
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return domain.ConsumeMismatch, nil
	}
	delete(s.records, key)
	return domain.ConsumeSuccess, nil
}

// lookupLocked must be called with s.mu held.
func (l *Ledger) lookupLocked(s *ledgerShard, key domain.PhoneKey) (domain.OTPRecord, bool) {
	rec, ok := s.records[key]
	if !ok {
		return domain.OTPRecord{}, false
	}
	if rec.Expired(l.nowF()) {
		delete(s.records, key)
		return domain.OTPRecord{}, false
	}
	return rec, true
}

// Len returns the number of stored records, live or stale.
func (l *Ledger) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.records)
		s.mu.Unlock()
	}
	return n
}

// Sweep deletes every expired record and returns how many were removed.
// Shards are locked one at a time.
func (l *Ledger) Sweep() int {
	now := l.nowF()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, rec := range s.records {
			if rec.Expired(now) {
				delete(s.records, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("swept expired otp records", "count", n)
			}
		}
	}
}
