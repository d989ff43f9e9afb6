package search

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hasher accumulates a structural hash of a query. Values are written in a
// fixed order so equal queries hash equally.
type Hasher struct {
	d *xxhash.Digest
}

// NewHasher starts a hash for a query of the given kind.
func NewHasher(kind string) *Hasher {
	h := &Hasher{d: xxhash.New()}
	return h.String(kind)
}

func (h *Hasher) String(s string) *Hasher {
	_, _ = h.d.WriteString(s)
	_, _ = h.d.Write([]byte{0})
	return h
}

func (h *Hasher) Uint64(v uint64) *Hasher {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.d.Write(buf[:])
	return h
}

func (h *Hasher) Int64(v int64) *Hasher {
	return h.Uint64(uint64(v))
}

func (h *Hasher) Float64(v float64) *Hasher {
	return h.Uint64(math.Float64bits(v))
}

func (h *Hasher) Sum() uint64 {
	return h.d.Sum64()
}
