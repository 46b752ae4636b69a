// Package coljar implements an immutable, columnar, write-once/read-many
// file format: a producer appends rows with a fixed number of columns (plus an
// optional external key per row), then freezes the jar into a data file
// and an index file that readers open via Cursor.
package coljar

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rpcpool/coljar/codec"
	"github.com/rpcpool/coljar/continuity"
	"github.com/rpcpool/coljar/eliasfano"
	"github.com/rpcpool/coljar/filter"
	"github.com/rpcpool/coljar/indexmeta"
	"github.com/rpcpool/coljar/phf"
)

// sampleSize bounds how many values per column are fed to a codec's
// dictionary trainer, so PrepareCompression stays cheap on huge jars.
const sampleSize = 2000

// Jar accumulates rows and, once Freeze succeeds, produces an immutable
// file pair. A Jar is single-writer: concurrent AddRow/Freeze calls are not
// supported, matching the format's single-writer/multi-reader model.
type Jar struct {
	mu sync.Mutex

	numColumns   int
	nullableMask uint64

	codecKind codec.Kind
	cdc       codec.Codec

	filterCapacity int
	phfKind        phf.Kind
	phfSet         bool
	flt            *filter.Cuckoo
	phfFn          phf.PHF
	indexPrepared  bool
	permutation    []uint64 // permutation[phfIndex] = row number

	header []byte
	meta   indexmeta.Meta

	rows [][][]byte
	keys [][]byte

	frozen bool
}

// Option configures a Jar at construction time.
type Option func(*Jar) error

// WithZstdNoDict compresses every column with zstd, no trained dictionary.
func WithZstdNoDict() Option {
	return func(j *Jar) error {
		j.codecKind = codec.KindZstdNoDict
		return nil
	}
}

// WithZstdDict compresses every column with zstd using a dictionary
// trained per column from the rows added before PrepareCompression.
func WithZstdDict() Option {
	return func(j *Jar) error {
		j.codecKind = codec.KindZstdWithDict
		return nil
	}
}

// WithCuckooFilter makes the jar key-addressable, backed by a fixed-capacity
// cuckoo inclusion filter. Must be paired with a WithXxxMPHF option. The
// filter is constructed (untrained) immediately, so Add/Contains work as
// soon as the jar exists, before any row has been added.
func WithCuckooFilter(capacity int) Option {
	return func(j *Jar) error {
		j.filterCapacity = capacity
		j.flt = filter.New(capacity)
		return nil
	}
}

// WithFingerprintMPHF selects the BBHash-style perfect hash variant. Must
// be paired with WithCuckooFilter.
func WithFingerprintMPHF() Option {
	return func(j *Jar) error {
		return withPHF(j, phf.KindFingerprint)
	}
}

// WithBucketMPHF selects the bucket-mining (FKS) perfect hash variant. Must
// be paired with WithCuckooFilter.
func WithBucketMPHF() Option {
	return func(j *Jar) error {
		return withPHF(j, phf.KindBucket)
	}
}

// withPHF constructs (untrained) the chosen PHF variant immediately, so
// SetKeys/GetIndex work as soon as the jar exists.
func withPHF(j *Jar, kind phf.Kind) error {
	fn, err := phf.New(kind)
	if err != nil {
		return err
	}
	j.phfKind = kind
	j.phfSet = true
	j.phfFn = fn
	return nil
}

// WithHeader attaches an opaque, caller-defined header blob to the jar.
// coljar never interprets it.
func WithHeader(header []byte) Option {
	return func(j *Jar) error {
		j.header = append([]byte(nil), header...)
		return nil
	}
}

// WithNullableColumns marks which column indices (0-based, as a bitmask)
// may have a missing value in some rows.
func WithNullableColumns(mask uint64) Option {
	return func(j *Jar) error {
		j.nullableMask = mask
		return nil
	}
}

// New creates an empty jar with the given number of columns.
func New(numColumns int, opts ...Option) (*Jar, error) {
	if numColumns <= 0 {
		return nil, fmt.Errorf("coljar: numColumns must be > 0")
	}
	j := &Jar{
		numColumns: numColumns,
		codecKind:  codec.KindNone,
	}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}
	cdc, err := codec.New(j.codecKind, numColumns)
	if err != nil {
		return nil, err
	}
	j.cdc = cdc
	return j, nil
}

// KeyAddressable reports whether the jar was configured with both a filter
// and a perfect hash function, and therefore supports row_by_key lookups.
func (j *Jar) KeyAddressable() bool {
	return j.filterCapacity > 0 && j.phfSet
}

// Metadata returns the jar's extensible key-value metadata, for callers
// that want to attach small scalar tags (distinct from the opaque header
// blob) before freezing.
func (j *Jar) Metadata() *indexmeta.Meta { return &j.meta }

// AddRow appends a row. values must have exactly numColumns entries; a nil
// entry marks a missing value and is only permitted for columns set
// nullable via WithNullableColumns. key is required if the jar is
// key-addressable, and must be nil otherwise.
func (j *Jar) AddRow(key []byte, values [][]byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.frozen {
		return ErrAlreadyFrozen
	}
	if len(values) != j.numColumns {
		return &ColumnLenMismatchError{Expected: j.numColumns, Got: len(values)}
	}
	row := uint64(len(j.rows))
	for col, v := range values {
		if v == nil && j.nullableMask&(1<<uint(col)) == 0 {
			return &UnexpectedMissingValueError{Row: row, Column: col}
		}
	}
	if j.KeyAddressable() == (key == nil) {
		return fmt.Errorf("coljar: row key presence does not match jar's key-addressability")
	}

	cloned := make([][]byte, j.numColumns)
	for i, v := range values {
		if v != nil {
			cloned[i] = append([]byte(nil), v...)
		}
	}
	j.rows = append(j.rows, cloned)
	if key != nil {
		j.keys = append(j.keys, append([]byte(nil), key...))
	}
	return nil
}

// PrepareCompression trains the jar's codec (a no-op for codecs that need
// no training). Must be called before Freeze when the codec is
// KindZstdWithDict.
func (j *Jar) PrepareCompression() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.frozen {
		return ErrAlreadyFrozen
	}

	samples := make([][][]byte, j.numColumns)
	for col := range samples {
		var vals [][]byte
		for _, row := range j.rows {
			if row[col] == nil {
				continue
			}
			vals = append(vals, row[col])
			if len(vals) >= sampleSize {
				break
			}
		}
		samples[col] = vals
	}
	return j.cdc.Prepare(samples)
}

// PrepareIndex trains the jar's inclusion filter and perfect hash function
// from the keys added so far. Required before Freeze when the jar is
// key-addressable.
func (j *Jar) PrepareIndex() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.frozen {
		return ErrAlreadyFrozen
	}
	if !j.KeyAddressable() {
		return nil
	}
	if len(j.keys) == 0 {
		return ErrPHFMissingKeys
	}

	for _, k := range j.keys {
		if err := j.flt.Add(k); err != nil {
			if errors.Is(err, filter.ErrMaxCapacity) {
				return ErrFilterMaxCapacity
			}
			return fmt.Errorf("coljar: training filter: %w", err)
		}
	}

	if err := j.phfFn.SetKeys(j.keys); err != nil {
		return fmt.Errorf("coljar: training perfect hash: %w", err)
	}

	permutation := make([]uint64, len(j.keys))
	for row, key := range j.keys {
		idx, err := j.phfFn.GetIndex(key)
		if err != nil {
			return fmt.Errorf("coljar: perfect hash index for trained key: %w", err)
		}
		if idx >= uint64(len(permutation)) {
			return fmt.Errorf("coljar: perfect hash index %d out of range for %d keys", idx, len(permutation))
		}
		permutation[idx] = uint64(row)
	}

	j.permutation = permutation
	j.indexPrepared = true
	return nil
}

// Add inserts element into the jar's inclusion filter directly, bypassing
// AddRow. Returns ErrFilterMissing if the jar was not configured with
// WithCuckooFilter.
func (j *Jar) Add(element []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.flt == nil {
		return ErrFilterMissing
	}
	if err := j.flt.Add(element); err != nil {
		if errors.Is(err, filter.ErrMaxCapacity) {
			return ErrFilterMaxCapacity
		}
		return err
	}
	return nil
}

// Contains reports whether element may have been added to the jar's
// inclusion filter. Returns ErrFilterMissing if the jar was not configured
// with WithCuckooFilter.
func (j *Jar) Contains(element []byte) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.flt == nil {
		return false, ErrFilterMissing
	}
	return j.flt.Contains(element), nil
}

// SetKeys trains the jar's perfect hash function directly over keys,
// bypassing PrepareIndex's row-derived key set. Returns ErrPHFMissing if
// the jar was not configured with a WithXxxMPHF option.
func (j *Jar) SetKeys(keys [][]byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phfFn == nil {
		return ErrPHFMissing
	}
	return j.phfFn.SetKeys(keys)
}

// GetIndex returns the dense index the jar's perfect hash function assigns
// to key. Returns ErrPHFMissing if the jar was not configured with a
// WithXxxMPHF option.
func (j *Jar) GetIndex(key []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phfFn == nil {
		return 0, ErrPHFMissing
	}
	return j.phfFn.GetIndex(key)
}

// Freeze finalizes the jar, writing the data file to dataPath and the
// index file to dataPath+".idx". After Freeze succeeds the Jar is
// immutable; open it for reading with Load.
func (j *Jar) Freeze(dataPath string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.frozen {
		return ErrAlreadyFrozen
	}
	if err := j.freezeCheck(); err != nil {
		return err
	}

	codecState, err := j.cdc.State()
	if err != nil {
		return fmt.Errorf("coljar: codec state: %w", err)
	}

	var filterData, phfData []byte
	if j.KeyAddressable() {
		filterData, err = j.flt.MarshalBinary()
		if err != nil {
			return fmt.Errorf("coljar: marshaling filter: %w", err)
		}
		phfData, err = j.phfFn.MarshalBinary()
		if err != nil {
			return fmt.Errorf("coljar: marshaling perfect hash: %w", err)
		}
	}

	metaBytes, err := j.meta.MarshalBinary()
	if err != nil {
		return fmt.Errorf("coljar: marshaling metadata: %w", err)
	}

	cfg := &config{
		numColumns:   uint32(j.numColumns),
		numRows:      uint64(len(j.rows)),
		nullableMask: j.nullableMask,
		codecKind:    j.codecKind,
		keyAddr:      j.KeyAddressable(),
		phfKind:      j.phfKind,
		header:       j.header,
		meta:         metaBytes,
		codecState:   codecState,
		filterData:   filterData,
		phfData:      phfData,
	}

	// Chain the write, offsets-build and sync steps so the first failure
	// stops everything after it.
	var dataFile, idxFile *os.File
	var offsets []uint64
	var idx *indexFile

	chainErr := continuity.New().
		Thenf("create data file", func() error {
			f, ferr := os.Create(dataPath)
			dataFile = f
			return ferr
		}).
		Thenf("write config", func() error {
			_, werr := dataFile.Write(cfg.marshal())
			return werr
		}).
		Thenf("write rows", func() error {
			o, werr := j.writeRows(dataFile)
			offsets = o
			return werr
		}).
		Thenf("sync data file", func() error {
			return dataFile.Sync()
		}).
		Thenf("build index file", func() error {
			x, berr := j.buildIndexFile(offsets)
			idx = x
			return berr
		}).
		Thenf("create index file", func() error {
			f, ferr := os.Create(dataPath + ".idx")
			idxFile = f
			return ferr
		}).
		Thenf("write index file", func() error {
			_, werr := idxFile.Write(idx.marshal())
			return werr
		}).
		Thenf("sync index file", func() error {
			return idxFile.Sync()
		}).
		Err()

	if dataFile != nil {
		dataFile.Close()
	}
	if idxFile != nil {
		idxFile.Close()
	}
	if chainErr != nil {
		return fmt.Errorf("coljar: freezing jar: %w", chainErr)
	}

	j.frozen = true
	return nil
}

func (j *Jar) freezeCheck() error {
	if !j.cdc.IsReady() {
		return ErrCompressorNotReady
	}
	hasFilter := j.filterCapacity > 0
	if hasFilter && !j.phfSet {
		return ErrPHFMissing
	}
	if j.phfSet && !hasFilter {
		return ErrFilterMissing
	}
	if j.KeyAddressable() && !j.indexPrepared {
		return ErrPHFMissingKeys
	}
	return nil
}

// writeRows streams every row's compressed column bytes to w, row-major
// column-interleaved, and returns the R*C+1 byte offsets of each value
// relative to the start of the row-data region (the trailing entry marks
// the end of the last value).
func (j *Jar) writeRows(w *os.File) ([]uint64, error) {
	offsets := make([]uint64, 0, len(j.rows)*j.numColumns+1)
	var pos uint64
	var scratch []byte
	for row, cols := range j.rows {
		for col, v := range cols {
			offsets = append(offsets, pos)
			if v == nil {
				continue
			}
			scratch = scratch[:0]
			compressed, err := j.cdc.Compress(scratch, col, v)
			if err != nil {
				return nil, fmt.Errorf("compressing row %d column %d: %w", row, col, err)
			}
			n, err := w.Write(compressed)
			if err != nil {
				return nil, err
			}
			pos += uint64(n)
		}
	}
	offsets = append(offsets, pos)
	return offsets, nil
}

func (j *Jar) buildIndexFile(offsets []uint64) (*indexFile, error) {
	universe := offsets[len(offsets)-1]
	b := eliasfano.NewBuilder(universe, uint64(len(offsets)))
	for _, o := range offsets {
		if err := b.Push(o); err != nil {
			return nil, fmt.Errorf("coljar: building offset index: %w", err)
		}
	}
	ef, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("coljar: building offset index: %w", err)
	}
	offsetData, err := ef.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("coljar: marshaling offset index: %w", err)
	}

	idx := &indexFile{
		numOffsets: uint64(len(offsets)),
		offsets:    offsetData,
	}
	if j.KeyAddressable() {
		pb := eliasfano.NewPrefixSummedBuilder(uint64(len(j.permutation)), uint64(len(j.rows)))
		for _, row := range j.permutation {
			if err := pb.Push(row); err != nil {
				return nil, fmt.Errorf("coljar: building key map: %w", err)
			}
		}
		km, err := pb.Build()
		if err != nil {
			return nil, fmt.Errorf("coljar: building key map: %w", err)
		}
		kmData, err := km.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("coljar: marshaling key map: %w", err)
		}
		idx.hasKeyMap = true
		idx.keyMap = kmData
	}
	return idx, nil
}
