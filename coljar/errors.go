package coljar

import "fmt"

// ColumnLenMismatchError is returned when a row's column count does not
// match the jar's configured number of columns.
type ColumnLenMismatchError struct {
	Expected int
	Got      int
}

func (e *ColumnLenMismatchError) Error() string {
	return fmt.Sprintf("coljar: column length mismatch: expected %d, got %d", e.Expected, e.Got)
}

// UnexpectedMissingValueError is returned when a row is missing a value at
// a column that the jar's schema requires to be present.
type UnexpectedMissingValueError struct {
	Row    uint64
	Column int
}

func (e *UnexpectedMissingValueError) Error() string {
	return fmt.Sprintf("coljar: unexpected missing value at row %d, column %d", e.Row, e.Column)
}

// ErrCompressorNotReady is returned by Freeze when a codec requiring
// dictionary training has not had PrepareCompression called successfully.
var ErrCompressorNotReady = fmt.Errorf("coljar: compressor not ready, call PrepareCompression first")

// ErrFilterMissing is returned by Add/Contains when the jar was not
// configured with WithCuckooFilter, and by freezeCheck when a PHF was
// configured without a matching inclusion filter (the two are trained and
// queried together).
var ErrFilterMissing = fmt.Errorf("coljar: no inclusion filter configured")

// ErrPHFMissing is returned by SetKeys/GetIndex when the jar was not
// configured with a WithXxxMPHF option, and by freezeCheck when an
// inclusion filter was configured without a matching perfect hash
// function.
var ErrPHFMissing = fmt.Errorf("coljar: no perfect hash function configured")

// ErrPHFMissingKeys is returned by Freeze when the jar is key-addressable
// but PrepareIndex was never called (or was called with no keys).
var ErrPHFMissingKeys = fmt.Errorf("coljar: perfect hash function has no trained keys")

// ErrFilterMaxCapacity is returned by PrepareIndex when the inclusion
// filter cannot accommodate the jar's key set at its configured capacity.
var ErrFilterMaxCapacity = fmt.Errorf("coljar: inclusion filter max capacity reached")

// ErrNotFrozen is returned by operations that require a frozen jar.
var ErrNotFrozen = fmt.Errorf("coljar: jar is not frozen")

// ErrAlreadyFrozen is returned by write operations attempted after Freeze.
var ErrAlreadyFrozen = fmt.Errorf("coljar: jar is already frozen")
