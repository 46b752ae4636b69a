// Package codec implements the per-column compression variants a jar can
// apply to its values: none, zstd without a dictionary, and zstd with a
// per-column trained dictionary.
package codec

import (
	"fmt"
)

// Kind tags which compression variant a column uses. It is stored verbatim
// in the jar configuration blob, so the numeric values are part of the
// on-disk format and must not be reordered.
type Kind uint8

const (
	KindNone Kind = iota
	KindZstdNoDict
	KindZstdWithDict
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindZstdNoDict:
		return "zstd-no-dict"
	case KindZstdWithDict:
		return "zstd-with-dict"
	default:
		return fmt.Sprintf("codec.Kind(%d)", uint8(k))
	}
}

// ErrNotReady is returned by Compress when a codec that requires
// preparation (dictionary training) has not yet had Prepare called.
// Decompress instead reports that the column has no trained dictionary.
var ErrNotReady = fmt.Errorf("codec: compressor not ready")

// ColumnLenMismatchError is returned by Prepare when the number of sample
// columns passed does not match the codec's configured column count.
type ColumnLenMismatchError struct {
	Expected int
	Got      int
}

func (e *ColumnLenMismatchError) Error() string {
	return fmt.Sprintf("codec: expected %d columns, got %d", e.Expected, e.Got)
}

// checkColumnCount validates samples against the codec's configured column
// count; every Prepare implementation runs it before touching per-column
// state.
func checkColumnCount(numColumns int, samples [][][]byte) error {
	if len(samples) != numColumns {
		return &ColumnLenMismatchError{Expected: numColumns, Got: len(samples)}
	}
	return nil
}

// Codec compresses and decompresses the values of a fixed set of columns.
// A Codec is stateful per column: a with-dictionary codec trains and caches
// one dictionary (and one encoder/decoder pair) per column index.
type Codec interface {
	Kind() Kind

	// Prepare trains whatever per-column state this codec needs from a
	// representative sample of each column's values. samples[c] holds the
	// training values for column c. Every codec rejects samples whose
	// column count differs from its own with a ColumnLenMismatchError;
	// codecs that need no training (None, ZstdNoDict) do nothing else.
	Prepare(samples [][][]byte) error

	// IsReady reports whether Compress/Decompress can be called. Codecs
	// that need no training are always ready.
	IsReady() bool

	// Compress appends the compressed form of v (belonging to column col)
	// to dst and returns the extended slice.
	Compress(dst []byte, col int, v []byte) ([]byte, error)

	// Decompress appends the decompressed form of v (belonging to column
	// col) to dst and returns the extended slice.
	Decompress(dst []byte, col int, v []byte) ([]byte, error)

	// Close releases any resources (pooled encoders/decoders) held by the
	// codec.
	Close() error

	// State returns the trained per-column state (e.g. dictionaries) that
	// must be persisted alongside the jar for Restore to reconstruct an
	// equivalent, ready codec. Codecs with no trained state return nil.
	State() ([]byte, error)
}

// New constructs the Codec for the given kind with zero per-column state.
// Use Prepare to train it before freezing a jar.
func New(kind Kind, numColumns int) (Codec, error) {
	switch kind {
	case KindNone:
		return newNoneCodec(numColumns), nil
	case KindZstdNoDict:
		return newZstdNoDictCodec(numColumns), nil
	case KindZstdWithDict:
		return newZstdWithDictCodec(numColumns), nil
	default:
		return nil, fmt.Errorf("codec: unknown kind %d", uint8(kind))
	}
}

// Restore reconstructs a ready Codec of the given kind from state
// previously produced by Codec.State.
func Restore(kind Kind, numColumns int, state []byte) (Codec, error) {
	switch kind {
	case KindNone:
		return newNoneCodec(numColumns), nil
	case KindZstdNoDict:
		return newZstdNoDictCodec(numColumns), nil
	case KindZstdWithDict:
		return restoreZstdWithDictCodec(numColumns, state)
	default:
		return nil, fmt.Errorf("codec: unknown kind %d", uint8(kind))
	}
}

type noneCodec struct{ numColumns int }

func newNoneCodec(numColumns int) Codec { return noneCodec{numColumns: numColumns} }

func (noneCodec) Kind() Kind { return KindNone }

func (c noneCodec) Prepare(samples [][][]byte) error {
	return checkColumnCount(c.numColumns, samples)
}

func (noneCodec) IsReady() bool { return true }

func (noneCodec) Close() error { return nil }

func (noneCodec) Compress(dst []byte, _ int, v []byte) ([]byte, error) {
	return append(dst, v...), nil
}

func (noneCodec) Decompress(dst []byte, _ int, v []byte) ([]byte, error) {
	return append(dst, v...), nil
}

func (noneCodec) State() ([]byte, error) { return nil, nil }
