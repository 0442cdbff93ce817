package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a stable 64-bit digest of an analysis input
type Fingerprint uint64

// String renders the fingerprint as fixed-width hex
func (f Fingerprint) String() string {
	s := strconv.FormatUint(uint64(f), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}

// IsZero reports whether the fingerprint was never computed
func (f Fingerprint) IsZero() bool {
	return f == 0
}

// FingerprintBuilder accumulates values into a fingerprint. Every write is
// length- or width-prefixed so that adjacent fields cannot collide.
type FingerprintBuilder struct {
	d   *xxhash.Digest
	buf [8]byte
}

// NewFingerprintBuilder starts an empty fingerprint
func NewFingerprintBuilder() *FingerprintBuilder {
	return &FingerprintBuilder{d: xxhash.New()}
}

// Float adds a float64 by its IEEE-754 bits
func (b *FingerprintBuilder) Float(v float64) *FingerprintBuilder {
	binary.LittleEndian.PutUint64(b.buf[:], math.Float64bits(v))
	_, _ = b.d.Write(b.buf[:])
	return b
}

// Int adds an integer
func (b *FingerprintBuilder) Int(v int64) *FingerprintBuilder {
	binary.LittleEndian.PutUint64(b.buf[:], uint64(v))
	_, _ = b.d.Write(b.buf[:])
	return b
}

// Bool adds a flag as 0 or 1
func (b *FingerprintBuilder) Bool(v bool) *FingerprintBuilder {
	if v {
		return b.Int(1)
	}
	return b.Int(0)
}

// String adds a length-prefixed string
func (b *FingerprintBuilder) String(s string) *FingerprintBuilder {
	b.Int(int64(len(s)))
	_, _ = b.d.WriteString(s)
	return b
}

// Sum returns the fingerprint of everything written so far
func (b *FingerprintBuilder) Sum() Fingerprint {
	return Fingerprint(b.d.Sum64())
}

// ParseFingerprint reverses Fingerprint.String
func ParseFingerprint(s string) (Fingerprint, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}
