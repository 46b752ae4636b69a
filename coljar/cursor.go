package coljar

import (
	"fmt"
	"log/slog"
	"math/bits"
	"os"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"

	"github.com/rpcpool/coljar/codec"
	"github.com/rpcpool/coljar/eliasfano"
	"github.com/rpcpool/coljar/filter"
	"github.com/rpcpool/coljar/indexmeta"
	"github.com/rpcpool/coljar/phf"
)

// Cursor reads a frozen jar. A Cursor is not safe for concurrent use by
// multiple goroutines; each reading goroutine should open its own Cursor
// (or hold its own row-by-row iteration position) via Load.
type Cursor struct {
	data       *mmap.ReaderAt
	rowDataOff int64

	numColumns   int
	numRows      uint64
	nullableMask uint64
	codecKind    codec.Kind
	cdc          codec.Codec
	header       []byte
	meta         indexmeta.Meta

	offsets *eliasfano.EliasFano
	keyAddr bool
	flt     *filter.Cuckoo
	phfFn   phf.PHF
	keyMap  *eliasfano.PrefixSummed

	nextRow uint64
}

// Load opens the jar at dataPath (and dataPath+".idx") for reading.
func Load(dataPath string) (*Cursor, error) {
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("coljar: opening data file: %w", err)
	}
	defer dataFile.Close()

	headerBuf := make([]byte, 64*1024)
	n, err := dataFile.Read(headerBuf)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("coljar: reading config header: %w", err)
	}
	cfg, consumed, err := unmarshalConfig(headerBuf[:n])
	if err != nil {
		return nil, fmt.Errorf("coljar: parsing config: %w", err)
	}

	data, err := mmap.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("coljar: mmap data file: %w", err)
	}
	// Hint random-access reads: jar lookups jump around by row/key, not
	// sequentially.
	if f, ferr := os.Open(dataPath); ferr == nil {
		if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
			slog.Warn("fadvise(RANDOM) failed", "error", err)
		}
		f.Close()
	}

	idxBytes, err := os.ReadFile(dataPath + ".idx")
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("coljar: reading index file: %w", err)
	}
	idx, err := unmarshalIndexFile(idxBytes)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("coljar: parsing index file: %w", err)
	}

	cdc, err := codec.Restore(cfg.codecKind, int(cfg.numColumns), cfg.codecState)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("coljar: restoring codec: %w", err)
	}

	offsets, err := eliasfano.Load(idx.offsets)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("coljar: loading offset index: %w", err)
	}

	c := &Cursor{
		data:         data,
		rowDataOff:   int64(consumed),
		numColumns:   int(cfg.numColumns),
		numRows:      cfg.numRows,
		nullableMask: cfg.nullableMask,
		codecKind:    cfg.codecKind,
		cdc:          cdc,
		header:       append([]byte(nil), cfg.header...),
		offsets:      offsets,
		keyAddr:      cfg.keyAddr,
	}
	if err := c.meta.UnmarshalBinary(cfg.meta); err != nil {
		data.Close()
		return nil, fmt.Errorf("coljar: parsing metadata: %w", err)
	}

	if cfg.keyAddr {
		flt, err := filter.UnmarshalBinary(cfg.filterData)
		if err != nil {
			data.Close()
			return nil, fmt.Errorf("coljar: loading filter: %w", err)
		}
		phfFn, err := phf.Load(cfg.phfKind, cfg.phfData)
		if err != nil {
			data.Close()
			return nil, fmt.Errorf("coljar: loading perfect hash: %w", err)
		}
		if !idx.hasKeyMap {
			data.Close()
			return nil, fmt.Errorf("coljar: jar is key-addressable but index file has no key map")
		}
		keyMap, err := eliasfano.LoadPrefixSummed(idx.keyMap)
		if err != nil {
			data.Close()
			return nil, fmt.Errorf("coljar: loading key map: %w", err)
		}
		c.flt = flt
		c.phfFn = phfFn
		c.keyMap = keyMap
	}

	return c, nil
}

// Close releases the memory-mapped data file.
func (c *Cursor) Close() error {
	return c.data.Close()
}

// NumRows returns the number of rows in the jar.
func (c *Cursor) NumRows() uint64 { return c.numRows }

// NumColumns returns the number of columns in the jar.
func (c *Cursor) NumColumns() int { return c.numColumns }

// Header returns the jar's opaque, caller-defined header blob.
func (c *Cursor) Header() []byte { return c.header }

// Metadata returns the jar's extensible key-value metadata.
func (c *Cursor) Metadata() *indexmeta.Meta { return &c.meta }

// KeyAddressable reports whether RowByKey can be used.
func (c *Cursor) KeyAddressable() bool { return c.keyAddr }

// AllColumnsMask returns a projection mask selecting every column.
func (c *Cursor) AllColumnsMask() uint64 {
	if c.numColumns >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(c.numColumns)) - 1
}

// RowByNumber returns the columns selected by mask (bit i = column i) of
// row n, in ascending column order. The result has exactly as many entries
// as set bits in mask; a mask of 0 returns an empty row.
func (c *Cursor) RowByNumber(n uint64, mask uint64) ([][]byte, error) {
	if n >= c.numRows {
		return nil, fmt.Errorf("coljar: row %d out of range (numRows %d)", n, c.numRows)
	}
	out := make([][]byte, 0, bits.OnesCount64(mask))
	for col := 0; col < c.numColumns; col++ {
		if mask&(1<<uint(col)) == 0 {
			continue
		}
		v, err := c.readValue(n, col)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ErrNotFound is returned by RowByKey when the inclusion filter rejects
// the key outright.
var ErrNotFound = fmt.Errorf("coljar: key not found")

// RowByKey looks up a row by its external key. Only valid on a
// key-addressable jar.
func (c *Cursor) RowByKey(key []byte, mask uint64) ([][]byte, error) {
	if !c.keyAddr {
		return nil, fmt.Errorf("coljar: jar is not key-addressable")
	}
	if !c.flt.Contains(key) {
		return nil, ErrNotFound
	}
	permIdx, err := c.phfFn.GetIndex(key)
	if err != nil {
		return nil, fmt.Errorf("coljar: perfect hash lookup: %w", err)
	}
	row, err := c.keyMap.Get(permIdx)
	if err != nil {
		return nil, fmt.Errorf("coljar: key map lookup: %w", err)
	}
	return c.RowByNumber(row, mask)
}

// NextRow returns the next row in ascending row-number order, and advances
// the cursor's internal position. Returns a non-nil error (not io.EOF) once
// rows are exhausted (callers should check against NumRows).
func (c *Cursor) NextRow(mask uint64) ([][]byte, error) {
	if c.nextRow >= c.numRows {
		return nil, fmt.Errorf("coljar: no more rows")
	}
	row, err := c.RowByNumber(c.nextRow, mask)
	if err != nil {
		return nil, err
	}
	c.nextRow++
	return row, nil
}

// Rewind resets NextRow's iteration position to the first row.
func (c *Cursor) Rewind() { c.nextRow = 0 }

func (c *Cursor) readValue(row uint64, col int) ([]byte, error) {
	i := row*uint64(c.numColumns) + uint64(col)
	start, err := c.offsets.Get(i)
	if err != nil {
		return nil, fmt.Errorf("coljar: offset %d: %w", i, err)
	}
	end, err := c.offsets.Get(i + 1)
	if err != nil {
		return nil, fmt.Errorf("coljar: offset %d: %w", i+1, err)
	}
	if start == end {
		if c.nullableMask&(1<<uint(col)) == 0 {
			return nil, &UnexpectedMissingValueError{Row: row, Column: col}
		}
		return nil, nil
	}

	n := int(end - start)
	rawBuf := bytebufferpool.Get()
	defer bytebufferpool.Put(rawBuf)
	if cap(rawBuf.B) < n {
		rawBuf.B = make([]byte, n)
	} else {
		rawBuf.B = rawBuf.B[:n]
	}
	if _, err := c.data.ReadAt(rawBuf.B, c.rowDataOff+int64(start)); err != nil {
		return nil, fmt.Errorf("coljar: reading value at row %d column %d: %w", row, col, err)
	}
	return c.cdc.Decompress(nil, col, rawBuf.B)
}
