// Package datasize provides binary data-size units with overflow-checked conversions.
package datasize

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Size is a number of bytes.
type Size uint64

// Binary units.
const (
	Byte Size = 1
	KiB       = 1024 * Byte
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
	TiB       = 1024 * GiB
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("datasize: overflow")

// Mul returns n*unit, failing instead of wrapping around.
func Mul(n uint64, unit Size) (Size, error) {
	hi, lo := bits.Mul64(n, uint64(unit))
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, n, unit)
	}
	return Size(lo), nil
}

// Bytes returns s as a plain byte count.
func (s Size) Bytes() uint64 { return uint64(s) }

// KiBytes truncates s to whole KiB. Fast path: the caller accepts truncation
// and the uint64 result.
func (s Size) KiBytes() uint64 { return uint64(s / KiB) }

// CheckedKiB converts s to whole KiB as a uint32, the unit Argon2 memory costs use.
// It fails if s is not a multiple of 1 KiB or does not fit.
func (s Size) CheckedKiB() (uint32, error) {
	if s%KiB != 0 {
		return 0, fmt.Errorf("datasize: %s is not a whole number of KiB", s)
	}
	k := s.KiBytes()
	if k > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s exceeds %d KiB", ErrOverflow, s, uint64(math.MaxUint32))
	}
	return uint32(k), nil
}

// FromKiB returns k KiB as a Size.
func FromKiB(k uint32) Size { return Size(k) * KiB }

var units = []struct {
	suffix string
	unit   Size
}{
	{"TiB", TiB},
	{"GiB", GiB},
	{"MiB", MiB},
	{"KiB", KiB},
	{"B", Byte},
}

// String renders s in the largest unit that divides it exactly.
func (s Size) String() string {
	if s == 0 {
		return "0B"
	}
	for _, u := range units {
		if s%u.unit == 0 {
			return strconv.FormatUint(uint64(s/u.unit), 10) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(s), 10) + "B"
}

// Parse reads values such as "128MiB", "64 KiB" or "1048576". A bare number is bytes.
func Parse(s string) (Size, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, errors.New("datasize: empty value")
	}
	unit := Byte
	num := in
	for _, u := range units {
		if rest, ok := strings.CutSuffix(in, u.suffix); ok {
			unit, num = u.unit, strings.TrimSpace(rest)
			break
		}
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("datasize: parse %q: %w", s, err)
	}
	return Mul(n, unit)
}

// Set implements flag.Value.
func (s *Size) Set(v string) error {
	p, err := Parse(v)
	if err != nil {
		return err
	}
	*s = p
	return nil
}
