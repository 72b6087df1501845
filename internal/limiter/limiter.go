// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"time"

	"github.com/and161185/passkit/internal/crypto"
)

// Limiter controls login attempts and temporary lockouts per (username, fingerprint).
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, username string, fp []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, fp []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, username string, fp []byte) (bool, time.Duration, error)
}

// Fingerprinter maps client addresses to keyed HMAC-SHA256 digests, so raw
// addresses never reach storage and digests cannot be reversed by enumerating
// the address space without the pepper.
type Fingerprinter struct{ pepper []byte }

// NewFingerprinter copies pepper.
func NewFingerprinter(pepper []byte) *Fingerprinter {
	return &Fingerprinter{pepper: append([]byte(nil), pepper...)}
}

// Fingerprint returns the 32-byte digest of addr.
func (f *Fingerprinter) Fingerprint(addr string) []byte {
	return crypto.ComputeMAC(addr, f.pepper).Tag
}
