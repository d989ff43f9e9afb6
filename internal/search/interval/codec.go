// Package interval packs (period, offset) pairs into sortable integer keys
// and computes how much a set of stored intervals overlaps a query range.
//
// A key is period*PeriodWidth + offset. Keys are what the indexing side
// stores in a document's multi-valued numeric field; the scoring side only
// ever decodes them.
package interval

import (
	"errors"
	"fmt"
	"math"
)

// PeriodWidth separates the period index from the offset inside a key.
// Encoder and decoder must agree on it, so it is never duplicated as a literal.
const PeriodWidth int64 = 20088

// ErrOutOfDomain is returned when a (period, offset) pair cannot be encoded.
var ErrOutOfDomain = errors.New("interval: value outside encodable domain")

// Key is a packed (period, offset) pair.
type Key int64

// Encode packs period and offset into a Key. The period must be
// non-negative and the offset must lie in [0, PeriodWidth).
func Encode(period, offset int64) (Key, error) {
	if period < 0 || offset < 0 || offset >= PeriodWidth {
		return 0, fmt.Errorf("%w: period=%d offset=%d", ErrOutOfDomain, period, offset)
	}
	if period > (math.MaxInt64-offset)/PeriodWidth {
		return 0, fmt.Errorf("%w: period %d overflows key", ErrOutOfDomain, period)
	}
	return Key(period*PeriodWidth + offset), nil
}

// MustEncode is like Encode but panics on invalid input.
func MustEncode(period, offset int64) Key {
	k, err := Encode(period, offset)
	if err != nil {
		panic(err)
	}
	return k
}

// Decode unpacks the key. Negative keys are never produced by Encode and
// decode to meaningless pairs.
func (k Key) Decode() (period, offset int64) {
	return k.Period(), k.Offset()
}

// Period is the interval's end, the first half of Decode.
func (k Key) Period() int64 { return int64(k) / PeriodWidth }

// Offset is the interval's start, the second half of Decode.
func (k Key) Offset() int64 { return int64(k) % PeriodWidth }
