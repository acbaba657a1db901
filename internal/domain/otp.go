package domain

import "time"

// PhoneKey is the canonical national-number form of a phone (digits only).
// It is the sole lookup key for OTP records and verified flags.
type PhoneKey string

func (k PhoneKey) String() string { return string(k) }

// OTPRecord is a live one-time code for a PhoneKey. Records are replaced, never updated.
type OTPRecord struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record's validity window has passed at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ConsumeResult is the outcome of a ledger consume.
type ConsumeResult int

const (
	ConsumeNotFound ConsumeResult = iota
	ConsumeMismatch
	ConsumeSuccess
)

func (c ConsumeResult) String() string {
	switch c {
	case ConsumeSuccess:
		return "success"
	case ConsumeMismatch:
		return "mismatch"
	default:
		return "not_found"
	}
}
