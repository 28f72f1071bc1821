// Package parcel builds and parses canonical tax-lot identifiers and
// normalizes the free-text fields (addresses, boroughs, owner names) that
// auxiliary datasets use in place of them.
package parcel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidKey is returned when a borough/block/lot triple cannot form a Key.
var ErrInvalidKey = eris.New("parcel: invalid key")

const (
	keyLen   = 10
	maxBlock = 99999
	maxLot   = 9999
)

// Key is the canonical 10-digit borough+block+lot identifier
// (1 borough digit, 5 block digits, 4 lot digits).
type Key string

// BuildKey constructs a Key from a borough code, block and lot in any
// numeric or zero-padded form ("45", "0045", "45.0").
func BuildKey(borough, block, lot string) (Key, error) {
	b := strings.TrimSpace(borough)
	if b == "" || block == "" || lot == "" {
		return "", eris.Wrapf(ErrInvalidKey, "missing component (borough=%q block=%q lot=%q)", borough, block, lot)
	}
	b = trimFraction(b)
	if len(b) != 1 || b[0] < '0' || b[0] > '9' {
		return "", eris.Wrapf(ErrInvalidKey, "borough %q is not a single digit", borough)
	}

	blk, err := coerceInt(block, maxBlock)
	if err != nil {
		return "", eris.Wrapf(ErrInvalidKey, "block %q: %v", block, err)
	}
	lt, err := coerceInt(lot, maxLot)
	if err != nil {
		return "", eris.Wrapf(ErrInvalidKey, "lot %q: %v", lot, err)
	}

	return Key(fmt.Sprintf("%s%05d%04d", b, blk, lt)), nil
}

// ParseKey recovers a Key from a source that only emits the concatenated
// form. Non-digits are stripped and the first ten digits are kept. ok is
// false when fewer than ten digits remain; callers skip such records.
func ParseKey(raw string) (Key, bool) {
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			sb.WriteByte(c)
		}
	}
	digits := sb.String()
	if len(digits) < keyLen {
		return "", false
	}
	return Key(digits[:keyLen]), true
}

// String returns the 10-character serialized form.
func (k Key) String() string { return string(k) }

// Valid reports whether k is exactly ten digits.
func (k Key) Valid() bool {
	if len(k) != keyLen {
		return false
	}
	for i := 0; i < keyLen; i++ {
		if k[i] < '0' || k[i] > '9' {
			return false
		}
	}
	return true
}

// Borough returns the single borough digit.
func (k Key) Borough() string {
	if !k.Valid() {
		return ""
	}
	return string(k[:1])
}

// Block returns the 5-digit zero-padded block.
func (k Key) Block() string {
	if !k.Valid() {
		return ""
	}
	return string(k[1:6])
}

// Lot returns the 4-digit zero-padded lot.
func (k Key) Lot() string {
	if !k.Valid() {
		return ""
	}
	return string(k[6:])
}

// BlockNumber returns the block as an integer, or 0 for an invalid key.
func (k Key) BlockNumber() int {
	n, err := strconv.Atoi(k.Block())
	if err != nil {
		return 0
	}
	return n
}

// ParseBlock parses a block number in any padding ("123", "00123", "123.0").
func ParseBlock(s string) (int, bool) {
	n, err := coerceInt(s, maxBlock)
	return n, err == nil
}

// trimFraction drops a trailing decimal part such as ".0" or ".00000000".
func trimFraction(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

func coerceInt(s string, limit int) (int, error) {
	s = trimFraction(strings.TrimSpace(s))
	if s == "" {
		return 0, eris.New("empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.New("not numeric")
	}
	if n < 0 || n > limit {
		return 0, eris.Errorf("out of range [0, %d]", limit)
	}
	return n, nil
}
