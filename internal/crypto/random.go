package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/and161185/passkit/internal/errs"
)

// RandomSource produces cryptographically secure random bytes.
// It is safe for concurrent use.
type RandomSource struct {
	mu sync.Mutex
	r  io.Reader
}

var (
	defaultSource     *RandomSource
	defaultSourceOnce sync.Once
)

// Random returns the process-wide random source backed by crypto/rand.
// It is created on first use and lives until the process exits.
func Random() *RandomSource {
	defaultSourceOnce.Do(func() {
		defaultSource = &RandomSource{r: rand.Reader}
	})
	return defaultSource
}

// NewRandomSource wraps r. Only tests and callers with their own CSPRNG need this.
func NewRandomSource(r io.Reader) *RandomSource {
	return &RandomSource{r: r}
}

// Bytes returns n random bytes. A short read is reported as ErrRandomUnavailable.
func (s *RandomSource) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("random: negative length %d", n)
	}
	b := make([]byte, n)
	s.mu.Lock()
	_, err := io.ReadFull(s.r, b)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrRandomUnavailable, err)
	}
	return b, nil
}

// RandBytes returns n cryptographically secure random bytes from the process-wide source.
func RandBytes(n int) ([]byte, error) {
	return Random().Bytes(n)
}
