package driverauth

import (
	"sync"
	"time"
)

// otpTTL bounds how long an issued OTP-bootstrap code stays valid.
const otpTTL = 5 * time.Minute

type otpEntry struct {
	hash      string
	expiresAt time.Time
}

// otpRegistry is the in-memory, process-local map of phone -> pending OTP
// (mirrors the dispatch dedup registry's single-writer-per-key convention).
type otpRegistry struct {
	mu      sync.Mutex
	pending map[string]otpEntry
}

func newOTPRegistry() *otpRegistry {
	return &otpRegistry{pending: make(map[string]otpEntry)}
}

func (r *otpRegistry) put(phone, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[phone] = otpEntry{hash: hash, expiresAt: time.Now().Add(otpTTL)}
}

// take returns the pending hash for phone and consumes it; a second call
// for the same phone always misses, making the code one-time-use.
func (r *otpRegistry) take(phone string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[phone]
	delete(r.pending, phone)
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.hash, true
}
