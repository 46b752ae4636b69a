package phf

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// bitVector is a fixed-size bit array with O(words) rank queries. Adapted
// from the opencoff-go-bbhash reference implementation's bitvector: same
// word layout and rank-by-scan approach, but built for single-threaded
// construction (no atomics needed once SetKeys owns the bitvector
// exclusively) and using math/bits.OnesCount64 instead of a hand-rolled
// popcount.
type bitVector struct {
	v []uint64
}

func newBitVector(nbits uint64) *bitVector {
	words := (nbits + 63) / 64
	if words == 0 {
		words = 1
	}
	return &bitVector{v: make([]uint64, words)}
}

func (b *bitVector) size() uint64 { return uint64(len(b.v)) * 64 }

func (b *bitVector) set(i uint64) {
	b.v[i/64] |= 1 << (i % 64)
}

func (b *bitVector) isSet(i uint64) bool {
	return (b.v[i/64]>>(i%64))&1 == 1
}

// rank returns the number of set bits strictly before position i.
func (b *bitVector) rank(i uint64) uint64 {
	x := i / 64
	y := i % 64

	var r uint64
	for k := uint64(0); k < x; k++ {
		r += uint64(bits.OnesCount64(b.v[k]))
	}
	if y > 0 {
		r += uint64(bits.OnesCount64(b.v[x] << (64 - y)))
	}
	return r
}

func (b *bitVector) marshalBinary() []byte {
	out := make([]byte, 8+8*len(b.v))
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(b.v)))
	for i, w := range b.v {
		binary.LittleEndian.PutUint64(out[8+8*i:16+8*i], w)
	}
	return out
}

func unmarshalBitVector(data []byte) (*bitVector, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("phf: truncated bitvector length")
	}
	n := binary.LittleEndian.Uint64(data[0:8])
	want := 8 + 8*int(n)
	if len(data) < want {
		return nil, 0, fmt.Errorf("phf: truncated bitvector: want %d bytes, got %d", want, len(data))
	}
	v := make([]uint64, n)
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(data[8+8*i : 16+8*i])
	}
	return &bitVector{v: v}, want, nil
}
