package crypto

import (
	"errors"
	"fmt"

	"github.com/and161185/passkit/internal/errs"
	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters.
type Params struct {
	Memory  uint32 // KiB
	Time    uint32 // iterations
	Threads uint8  // lanes
	KeyLen  uint32 // derived hash length, bytes
	SaltLen uint32 // generated salt length, bytes
}

// DefaultParams: 128 MiB, 4 passes, 2 lanes, 64-byte hash, 16-byte salt.
var DefaultParams = Params{
	Memory:  128 * 1024,
	Time:    4,
	Threads: 2,
	KeyLen:  64,
	SaltLen: 16,
}

// Limits caps the cost values accepted from an encoded hash before any
// derivation runs, so a crafted hash cannot request unbounded memory or time.
type Limits struct {
	MaxMemory  uint32 // KiB
	MaxTime    uint32
	MaxThreads uint8
	MaxKeyLen  uint32
	MaxSaltLen uint32
}

// DefaultLimits allows up to 1 GiB of memory and 64 passes.
var DefaultLimits = Limits{
	MaxMemory:  1024 * 1024,
	MaxTime:    64,
	MaxThreads: 64,
	MaxKeyLen:  1024,
	MaxSaltLen: 1024,
}

// Validate checks the structural Argon2 constraints on p.
func (p Params) Validate() error {
	switch {
	case p.Threads < 1:
		return errors.New("parallelism must be >= 1")
	case p.Time < 1:
		return errors.New("time cost must be >= 1")
	case p.Memory < 8*uint32(p.Threads):
		return fmt.Errorf("memory cost %d KiB below 8*parallelism", p.Memory)
	case p.KeyLen < 1:
		return errors.New("hash length must be >= 1")
	case p.SaltLen < 1:
		return errors.New("salt length must be >= 1")
	}
	return nil
}

// Check reports whether p stays within l.
func (l Limits) Check(p Params) error {
	switch {
	case p.Memory > l.MaxMemory:
		return fmt.Errorf("memory cost %d KiB exceeds limit %d KiB", p.Memory, l.MaxMemory)
	case p.Time > l.MaxTime:
		return fmt.Errorf("time cost %d exceeds limit %d", p.Time, l.MaxTime)
	case p.Threads > l.MaxThreads:
		return fmt.Errorf("parallelism %d exceeds limit %d", p.Threads, l.MaxThreads)
	case p.KeyLen > l.MaxKeyLen:
		return fmt.Errorf("hash length %d exceeds limit %d", p.KeyLen, l.MaxKeyLen)
	case p.SaltLen > l.MaxSaltLen:
		return fmt.Errorf("salt length %d exceeds limit %d", p.SaltLen, l.MaxSaltLen)
	}
	return nil
}

// deriveKey runs Argon2id and turns a panic inside the primitive into ErrDerivation.
func deriveKey(password, salt []byte, p Params) (key []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			key = nil
			if cause, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", errs.ErrDerivation, cause)
				return
			}
			err = fmt.Errorf("%w: %v", errs.ErrDerivation, r)
		}
	}()
	key = argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	if uint32(len(key)) != p.KeyLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", errs.ErrDerivation, len(key), p.KeyLen)
	}
	return key, nil
}
