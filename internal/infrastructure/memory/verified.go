package memory

import (
	"context"
	"sync"

	"github.com/lead-otp-gateway/internal/domain"
)

// VerifiedStore keeps verified flags for the lifetime of the process.
// Flags are never removed.
type VerifiedStore struct {
	flags sync.Map // domain.PhoneKey -> struct{}
}

func NewVerifiedStore() *VerifiedStore { return &VerifiedStore{} }

func (s *VerifiedStore) MarkVerified(_ context.Context, key domain.PhoneKey) error {
	s.flags.Store(key, struct{}{})
	return nil
}

func (s *VerifiedStore) IsVerified(_ context.Context, key domain.PhoneKey) (bool, error) {
	_, ok := s.flags.Load(key)
	return ok, nil
}
