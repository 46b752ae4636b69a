// Package eliasfano implements the Elias-Fano encoding of a monotone
// non-decreasing sequence of unsigned integers: a compact representation
// that still supports O(1)-ish random access. Used by the jar's offset
// table (C4) and, via PrefixSummed, its key->row permutation map.
//
// No package in this module's dependency set implements Elias-Fano or
// succinct rank/select structures in general, so this is built directly on
// math/bits, in the same low-level bit-arithmetic style used elsewhere in
// this codebase for fixed-width index math.
package eliasfano

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// EliasFano holds a monotone non-decreasing sequence of n values, each in
// [0, universe].
type EliasFano struct {
	n          uint64
	universe   uint64
	lowBits    uint8
	low        []uint64 // packed low-bits array, lowBits bits per entry
	high       []uint64 // unary-coded high bits, rank-indexed
	highWords  []uint64 // cumulative popcount per word, for Get's rank step
}

// Builder accumulates a monotone sequence incrementally, then produces an
// EliasFano encoding with Build.
type Builder struct {
	universe uint64
	n        uint64
	lowBits  uint8
	low      []uint64
	high     []uint64
	highBits uint64
	last     uint64
	count    uint64
}

// NewBuilder prepares a builder for n values drawn from [0, universe].
func NewBuilder(universe, n uint64) *Builder {
	lowBits := uint8(0)
	if n > 0 && universe > n {
		lowBits = uint8(bits.Len64(universe / n))
		if lowBits > 0 {
			lowBits--
		}
	}
	highBits := n + (universe >> lowBits) + 2
	return &Builder{
		universe: universe,
		n:        n,
		lowBits:  lowBits,
		low:      make([]uint64, wordsFor(n*uint64(lowBits))),
		high:     make([]uint64, wordsFor(highBits)),
		highBits: highBits,
	}
}

func wordsFor(bitsCount uint64) uint64 {
	return (bitsCount + 63) / 64
}

// Push appends the next value to the sequence. Values must be pushed in
// non-decreasing order.
func (b *Builder) Push(v uint64) error {
	if b.count > 0 && v < b.last {
		return fmt.Errorf("eliasfano: value %d out of order (last %d)", v, b.last)
	}
	if v > b.universe {
		return fmt.Errorf("eliasfano: value %d exceeds universe %d", v, b.universe)
	}

	low := v & ((1 << b.lowBits) - 1)
	setBitsLE(b.low, b.count*uint64(b.lowBits), uint64(b.lowBits), low)

	high := v >> b.lowBits
	pos := high + b.count
	setBit(b.high, pos)

	b.last = v
	b.count++
	return nil
}

// Build finalizes the sequence. Returns an error if fewer than n values
// were pushed.
func (b *Builder) Build() (*EliasFano, error) {
	if b.count != b.n {
		return nil, fmt.Errorf("eliasfano: expected %d values, got %d", b.n, b.count)
	}
	highWords := make([]uint64, len(b.high))
	var pop uint64
	for i, w := range b.high {
		highWords[i] = pop
		pop += uint64(bits.OnesCount64(w))
	}
	return &EliasFano{
		n:         b.n,
		universe:  b.universe,
		lowBits:   b.lowBits,
		low:       b.low,
		high:      b.high,
		highWords: highWords,
	}, nil
}

func setBit(words []uint64, i uint64) {
	words[i/64] |= 1 << (i % 64)
}

func getBit(words []uint64, i uint64) bool {
	return (words[i/64]>>(i%64))&1 == 1
}

// setBitsLE writes nbits bits of v (nbits <= 64) into words, starting at
// bit offset pos, little-endian within the packed array.
func setBitsLE(words []uint64, pos, nbits, v uint64) {
	if nbits == 0 {
		return
	}
	for b := uint64(0); b < nbits; b++ {
		if (v>>b)&1 == 1 {
			setBit(words, pos+b)
		}
	}
}

func getBitsLE(words []uint64, pos, nbits uint64) uint64 {
	var v uint64
	for b := uint64(0); b < nbits; b++ {
		if getBit(words, pos+b) {
			v |= 1 << b
		}
	}
	return v
}

// Len returns the number of encoded values.
func (e *EliasFano) Len() uint64 { return e.n }

// Get returns the i-th value in the sequence.
func (e *EliasFano) Get(i uint64) (uint64, error) {
	if i >= e.n {
		return 0, fmt.Errorf("eliasfano: index %d out of range (len %d)", i, e.n)
	}
	low := getBitsLE(e.low, i*uint64(e.lowBits), uint64(e.lowBits))
	high := e.selectHigh(i)
	return (high << e.lowBits) | low, nil
}

// selectHigh returns the bucket (number of higher-order increments) for the
// i-th entry: the position of the i-th set bit in the unary-coded high
// array, minus i (to undo the unary encoding's padding).
func (e *EliasFano) selectHigh(i uint64) uint64 {
	// Binary search over words using the precomputed prefix popcounts,
	// then scan within the word.
	lo, hi := 0, len(e.highWords)
	for lo < hi {
		mid := (lo + hi) / 2
		if e.highWords[mid] <= i {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	wordIdx := lo - 1
	if wordIdx < 0 {
		wordIdx = 0
	}
	remaining := i - e.highWords[wordIdx]
	w := e.high[wordIdx]
	pos := uint64(wordIdx) * 64
	for {
		tz := bits.TrailingZeros64(w)
		if uint64(tz) >= 64 {
			wordIdx++
			w = e.high[wordIdx]
			pos = uint64(wordIdx) * 64
			continue
		}
		if remaining == 0 {
			return pos + uint64(tz) - i
		}
		w &^= 1 << tz
		remaining--
	}
}

func (e *EliasFano) MarshalBinary() ([]byte, error) {
	var hdr [32]byte
	binary.LittleEndian.PutUint64(hdr[0:8], e.n)
	binary.LittleEndian.PutUint64(hdr[8:16], e.universe)
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(e.lowBits))
	binary.LittleEndian.PutUint64(hdr[24:32], uint64(len(e.high)))

	out := append([]byte(nil), hdr[:]...)
	out = appendWords(out, e.low)
	out = appendWords(out, e.high)
	return out, nil
}

func appendWords(dst []byte, words []uint64) []byte {
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(words)))
	dst = append(dst, countBuf[:]...)
	for _, w := range words {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], w)
		dst = append(dst, b[:]...)
	}
	return dst
}

func readWords(data []byte) ([]uint64, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("eliasfano: truncated word count")
	}
	n := binary.LittleEndian.Uint64(data[0:8])
	want := 8 + 8*int(n)
	if len(data) < want {
		return nil, 0, fmt.Errorf("eliasfano: truncated words: want %d bytes, got %d", want, len(data))
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[8+8*i : 16+8*i])
	}
	return words, want, nil
}

// Load reconstructs a previously marshaled EliasFano sequence.
func Load(data []byte) (*EliasFano, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("eliasfano: truncated header")
	}
	n := binary.LittleEndian.Uint64(data[0:8])
	universe := binary.LittleEndian.Uint64(data[8:16])
	lowBits := uint8(binary.LittleEndian.Uint64(data[16:24]))
	off := 32

	low, consumed, err := readWords(data[off:])
	if err != nil {
		return nil, fmt.Errorf("eliasfano: low bits: %w", err)
	}
	off += consumed

	high, consumed, err := readWords(data[off:])
	if err != nil {
		return nil, fmt.Errorf("eliasfano: high bits: %w", err)
	}

	highWords := make([]uint64, len(high))
	var pop uint64
	for i, w := range high {
		highWords[i] = pop
		pop += uint64(bits.OnesCount64(w))
	}

	return &EliasFano{
		n:         n,
		universe:  universe,
		lowBits:   lowBits,
		low:       low,
		high:      high,
		highWords: highWords,
	}, nil
}
