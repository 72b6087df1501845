package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMAC-SHA256 sizes.
const (
	MACKeySize = 32
	MACSize    = sha256.Size
)

// MAC is an HMAC-SHA256 tag and the key it was computed with.
// The key has to be stored or transported by the caller.
type MAC struct {
	Tag []byte
	Key []byte
}

// GenerateMACKey returns size random bytes suitable as an HMAC key.
func GenerateMACKey(size int) ([]byte, error) {
	return RandBytes(size)
}

// NewMAC authenticates input under a freshly generated MACKeySize key.
func NewMAC(input string) (MAC, error) {
	key, err := GenerateMACKey(MACKeySize)
	if err != nil {
		return MAC{}, err
	}
	return ComputeMAC(input, key), nil
}

// ComputeMAC authenticates the UTF-8 bytes of input under key.
func ComputeMAC(input string, key []byte) MAC {
	return ComputeMACBytes([]byte(input), key)
}

// ComputeMACBytes authenticates msg under key.
func ComputeMACBytes(msg, key []byte) MAC {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return MAC{Tag: m.Sum(nil), Key: append([]byte(nil), key...)}
}

// VerifyMAC reports whether tag authenticates input under key.
func VerifyMAC(input string, tag, key []byte) bool {
	return VerifyMACBytes([]byte(input), tag, key)
}

// VerifyMACBytes reports whether tag authenticates msg under key.
func VerifyMACBytes(msg, tag, key []byte) bool {
	return ConstantTimeEqual(ComputeMACBytes(msg, key).Tag, tag)
}
