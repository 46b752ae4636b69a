package codec

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/mostynb/zstdpool-freelist"
)

// zstdNoDictCodec compresses every column with a shared pool of stateless
// zstd encoders/decoders: one freelist-backed encoder pool and one decoder
// pool, borrowed per call instead of held per column.
type zstdNoDictCodec struct {
	numColumns int
	encoders   *zstdpool.EncoderPool
	decoders   *zstdpool.DecoderPool
}

func newZstdNoDictCodec(numColumns int) Codec {
	return &zstdNoDictCodec{
		numColumns: numColumns,
		encoders:   zstdpool.NewEncoderPool(zstd.WithEncoderLevel(zstd.SpeedBetterCompression)),
		decoders:   zstdpool.NewDecoderPool(),
	}
}

func (c *zstdNoDictCodec) Kind() Kind { return KindZstdNoDict }

func (c *zstdNoDictCodec) Prepare(samples [][][]byte) error {
	return checkColumnCount(c.numColumns, samples)
}

func (c *zstdNoDictCodec) IsReady() bool { return true }

func (c *zstdNoDictCodec) Close() error { return nil }

func (c *zstdNoDictCodec) State() ([]byte, error) { return nil, nil }

func (c *zstdNoDictCodec) Compress(dst []byte, _ int, v []byte) ([]byte, error) {
	enc, err := c.encoders.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: get zstd encoder: %w", err)
	}
	defer c.encoders.Put(enc)
	return enc.EncodeAll(v, dst), nil
}

func (c *zstdNoDictCodec) Decompress(dst []byte, _ int, v []byte) ([]byte, error) {
	dec, err := c.decoders.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: get zstd decoder: %w", err)
	}
	defer c.decoders.Put(dec)
	out, err := dec.DecodeAll(v, dst)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decode: %w", err)
	}
	return out, nil
}

// zstdWithDictCodec trains and caches one compression dictionary (and one
// encoder/decoder pair) per column. Columns differ widely in value shape
// (e.g. fixed-width hashes vs. variable-length blobs), so a shared
// dictionary would dilute the gains a per-column one gives.
type zstdWithDictCodec struct {
	mu    sync.Mutex
	dicts []*columnDict
}

type columnDict struct {
	dict []byte
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newZstdWithDictCodec(numColumns int) Codec {
	return &zstdWithDictCodec{dicts: make([]*columnDict, numColumns)}
}

const maxDictSize = 112 * 1024

func (c *zstdWithDictCodec) Kind() Kind { return KindZstdWithDict }

// Prepare trains one dictionary per column from representative samples.
// samples[col] must hold at least one sample; a column with no samples is
// left without a dictionary, so IsReady stays false and Compress fails for
// that column.
func (c *zstdWithDictCodec) Prepare(samples [][][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkColumnCount(len(c.dicts), samples); err != nil {
		return err
	}
	for col, vals := range samples {
		if len(vals) == 0 {
			continue
		}
		dict := zstd.BuildDict(zstd.BuildDictOptions{
			Contents:   vals,
			MaxDictLen: maxDictSize,
		})
		cd, err := newColumnDict(dict)
		if err != nil {
			return fmt.Errorf("codec: training dictionary for column %d: %w", col, err)
		}
		c.dicts[col] = cd
	}
	return nil
}

func newColumnDict(dict []byte) (*columnDict, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(dict), zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("building dict encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDicts(dict))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("building dict decoder: %w", err)
	}
	return &columnDict{dict: dict, enc: enc, dec: dec}, nil
}

// IsReady reports whether every column has a trained dictionary.
func (c *zstdWithDictCodec) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.dicts {
		if d == nil {
			return false
		}
	}
	return len(c.dicts) > 0
}

func (c *zstdWithDictCodec) columnDictAt(col int) *columnDict {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col < 0 || col >= len(c.dicts) {
		return nil
	}
	return c.dicts[col]
}

func (c *zstdWithDictCodec) Compress(dst []byte, col int, v []byte) ([]byte, error) {
	if !c.IsReady() {
		return nil, ErrNotReady
	}
	cd := c.columnDictAt(col)
	if cd == nil {
		return nil, fmt.Errorf("codec: no dictionary trained for column %d", col)
	}
	return cd.enc.EncodeAll(v, dst), nil
}

func (c *zstdWithDictCodec) Decompress(dst []byte, col int, v []byte) ([]byte, error) {
	cd := c.columnDictAt(col)
	if cd == nil {
		return nil, fmt.Errorf("codec: no dictionary trained for column %d", col)
	}
	out, err := cd.dec.DecodeAll(v, dst)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd dict decode: %w", err)
	}
	return out, nil
}

// State serializes every column's trained dictionary, length-prefixed, in
// column order; columns with no dictionary are recorded as a zero-length
// entry.
func (c *zstdWithDictCodec) State() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []byte
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(c.dicts)))
	out = append(out, countBuf[:]...)
	for _, d := range c.dicts {
		var dict []byte
		if d != nil {
			dict = d.dict
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(dict)))
		out = append(out, lenBuf[:]...)
		out = append(out, dict...)
	}
	return out, nil
}

func restoreZstdWithDictCodec(numColumns int, state []byte) (Codec, error) {
	c := &zstdWithDictCodec{dicts: make([]*columnDict, numColumns)}
	if len(state) == 0 {
		return c, nil
	}
	if len(state) < 4 {
		return nil, fmt.Errorf("codec: truncated zstd dict state")
	}
	count := binary.LittleEndian.Uint32(state[0:4])
	off := 4
	dicts := make([]*columnDict, count)
	for i := range dicts {
		if len(state) < off+4 {
			return nil, fmt.Errorf("codec: truncated zstd dict length at column %d", i)
		}
		n := binary.LittleEndian.Uint32(state[off : off+4])
		off += 4
		if len(state) < off+int(n) {
			return nil, fmt.Errorf("codec: truncated zstd dict bytes at column %d", i)
		}
		dict := state[off : off+int(n)]
		off += int(n)
		if n == 0 {
			continue
		}
		cd, err := newColumnDict(append([]byte(nil), dict...))
		if err != nil {
			return nil, fmt.Errorf("codec: restoring dictionary for column %d: %w", i, err)
		}
		dicts[i] = cd
	}
	c.dicts = dicts
	return c, nil
}

func (c *zstdWithDictCodec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.dicts {
		if d == nil {
			continue
		}
		d.enc.Close()
		d.dec.Close()
	}
	return nil
}
