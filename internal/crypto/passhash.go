// Package crypto implements password hashing and verification, message
// authentication, and the random source and comparator they share.
package crypto

import (
	"fmt"

	"github.com/and161185/passkit/internal/errs"
	"golang.org/x/crypto/argon2"
)

// Variant is the only Argon2 variant produced and accepted.
const Variant = "argon2id"

// PasswordHash is an Argon2id hash together with everything needed to recompute it.
type PasswordHash struct {
	Version int
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	Salt    []byte
	Key     []byte
}

// Params returns the cost parameters h was derived with.
func (h *PasswordHash) Params() Params {
	return Params{
		Memory:  h.Memory,
		Time:    h.Time,
		Threads: h.Threads,
		KeyLen:  uint32(len(h.Key)),
		SaltLen: uint32(len(h.Salt)),
	}
}

// Derive computes Argon2id over the UTF-8 bytes of password. The result
// depends only on password, salt and the cost fields of p; p.SaltLen is ignored.
func Derive(password string, salt []byte, p Params) (*PasswordHash, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", errs.ErrDerivation)
	}
	p.SaltLen = uint32(len(salt))
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDerivation, err)
	}
	key, err := deriveKey([]byte(password), salt, p)
	if err != nil {
		return nil, err
	}
	return &PasswordHash{
		Version: argon2.Version,
		Memory:  p.Memory,
		Time:    p.Time,
		Threads: p.Threads,
		Salt:    append([]byte(nil), salt...),
		Key:     key,
	}, nil
}

// GenerateSalt returns size random bytes from the process-wide source.
func GenerateSalt(size int) ([]byte, error) {
	return RandBytes(size)
}

// Hasher hashes and verifies passwords with a fixed set of cost parameters.
type Hasher struct {
	params Params
	limits Limits
	rnd    *RandomSource
}

// Option customizes a Hasher.
type Option func(*Hasher)

// WithLimits replaces DefaultLimits for hashes accepted by Verify.
func WithLimits(l Limits) Option {
	return func(h *Hasher) { h.limits = l }
}

// WithRandomSource replaces the process-wide random source used for salts.
func WithRandomSource(r *RandomSource) Option {
	return func(h *Hasher) { h.rnd = r }
}

// NewHasher builds a Hasher for p. The parameters must be valid and within the
// hasher's own limits, otherwise it would refuse to verify what it produces.
func NewHasher(p Params, opts ...Option) (*Hasher, error) {
	h := &Hasher{params: p, limits: DefaultLimits}
	for _, o := range opts {
		o(h)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("hasher params: %w", err)
	}
	if err := h.limits.Check(p); err != nil {
		return nil, fmt.Errorf("hasher params: %w", err)
	}
	if h.rnd == nil {
		h.rnd = Random()
	}
	return h, nil
}

var defaultHasher = &Hasher{params: DefaultParams, limits: DefaultLimits}

// Params returns the cost parameters used for new hashes.
func (h *Hasher) Params() Params { return h.params }

func (h *Hasher) source() *RandomSource {
	if h.rnd == nil {
		return Random()
	}
	return h.rnd
}

// GenerateSalt returns a fresh salt of the configured length.
func (h *Hasher) GenerateSalt() ([]byte, error) {
	return h.source().Bytes(int(h.params.SaltLen))
}

// Hash derives a hash of password under a freshly generated salt.
func (h *Hasher) Hash(password string) (*PasswordHash, error) {
	salt, err := h.GenerateSalt()
	if err != nil {
		return nil, err
	}
	return h.HashWithSalt(password, salt)
}

// HashWithSalt derives a hash of password under the given salt.
func (h *Hasher) HashWithSalt(password string, salt []byte) (*PasswordHash, error) {
	return Derive(password, salt, h.params)
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// a non-nil error means the verification could not be carried out.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	ph, err := ParseHash(encoded)
	if err != nil {
		return false, err
	}
	p := ph.Params()
	if err := h.limits.Check(p); err != nil {
		return false, fmt.Errorf("%w: %w", errs.ErrInvalidFormat, err)
	}
	candidate, err := deriveKey([]byte(password), ph.Salt, p)
	if err != nil {
		return false, err
	}
	return ConstantTimeEqual(candidate, ph.Key), nil
}

// NeedsRehash reports whether encoded was produced with parameters other than
// the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	ph, err := ParseHash(encoded)
	if err != nil {
		return false, err
	}
	return ph.Version != argon2.Version || ph.Params() != h.params, nil
}

// HashPassword returns the encoded Argon2id hash of password using DefaultParams.
func HashPassword(password string) (string, error) {
	ph, err := defaultHasher.Hash(password)
	if err != nil {
		return "", err
	}
	return ph.Encode(), nil
}

// VerifyPassword verifies password against an encoded hash within DefaultLimits.
func VerifyPassword(password, encoded string) (bool, error) {
	return defaultHasher.Verify(password, encoded)
}

// VerifyWithLimits verifies password against an encoded hash whose costs must
// stay within l. Only the embedded parameters are used.
func VerifyWithLimits(password, encoded string, l Limits) (bool, error) {
	return (&Hasher{params: DefaultParams, limits: l}).Verify(password, encoded)
}
