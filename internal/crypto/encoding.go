package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/and161185/passkit/internal/errs"
	"golang.org/x/crypto/argon2"
)

// Encode renders h in the interchange form
//
//	$argon2id$v=19$m=131072,t=4,p=2$<salt>$<hash>
//
// with unpadded standard base64 for salt and hash.
func (h *PasswordHash) Encode() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		Variant,
		h.Version,
		h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key),
	)
}

// ParseHash parses an encoded Argon2id hash. Every failure wraps errs.ErrInvalidFormat.
//
// Salt and hash may carry '=' padding, but only the exact padding their length
// calls for. Apart from that padding, the input must be the canonical encoding
// of the result, so no two accepted strings describe the same hash differently.
func ParseHash(encoded string) (*PasswordHash, error) {
	if strings.ContainsAny(encoded, "\r\n") {
		return nil, fmt.Errorf("%w: line break in encoded hash", errs.ErrInvalidFormat)
	}
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected 6 '$'-separated fields, got %d", errs.ErrInvalidFormat, len(parts))
	}
	for i, name := range []string{"salt", "hash"} {
		seg, err := unpad(parts[4+i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errs.ErrInvalidFormat, name, err)
		}
		parts[4+i] = seg
	}
	raw := strings.Join(parts, "$")

	p, salt, key, err := argon2id.DecodeHash(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidFormat, err)
	}
	h := &PasswordHash{
		Version: argon2.Version,
		Memory:  p.Memory,
		Time:    p.Iterations,
		Threads: p.Parallelism,
		Salt:    salt,
		Key:     key,
	}
	if err := h.Params().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidFormat, err)
	}
	if h.Encode() != raw {
		return nil, fmt.Errorf("%w: non-canonical encoding", errs.ErrInvalidFormat)
	}
	return h, nil
}

// unpad strips '=' padding from a base64 segment if it is exactly the padding
// standard base64 would emit for it.
func unpad(seg string) (string, error) {
	if !strings.Contains(seg, "=") {
		return seg, nil
	}
	if _, err := base64.StdEncoding.Strict().DecodeString(seg); err != nil {
		return "", err
	}
	return strings.TrimRight(seg, "="), nil
}
