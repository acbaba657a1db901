package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a ULID for now.
func New() string { return NewAt(time.Now()) }

// NewAt generates a ULID whose timestamp part is t, so lead IDs sort by creation time.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
