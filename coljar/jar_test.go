package coljar_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rpcpool/coljar"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroColumns(t *testing.T) {
	_, err := coljar.New(0)
	require.Error(t, err)
}

func TestAddRowRejectsColumnLenMismatch(t *testing.T) {
	j, err := coljar.New(3)
	require.NoError(t, err)

	err = j.AddRow(nil, [][]byte{[]byte("a"), []byte("b")})
	require.Error(t, err)
	var mismatch *coljar.ColumnLenMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 3, mismatch.Expected)
	require.Equal(t, 2, mismatch.Got)
}

func TestAddRowRejectsMissingValueOnNonNullableColumn(t *testing.T) {
	j, err := coljar.New(2, coljar.WithNullableColumns(1<<0))
	require.NoError(t, err)

	// column 0 is nullable, column 1 is not.
	err = j.AddRow(nil, [][]byte{nil, nil})
	require.Error(t, err)
	var missing *coljar.UnexpectedMissingValueError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, 1, missing.Column)

	require.NoError(t, j.AddRow(nil, [][]byte{nil, []byte("ok")}))
}

func TestAddRowRejectsKeyPresenceMismatch(t *testing.T) {
	j, err := coljar.New(1)
	require.NoError(t, err)
	// jar is not key-addressable; supplying a key is rejected.
	require.Error(t, j.AddRow([]byte("k"), [][]byte{[]byte("v")}))

	ka, err := coljar.New(1, coljar.WithCuckooFilter(16), coljar.WithFingerprintMPHF())
	require.NoError(t, err)
	// jar is key-addressable; omitting the key is rejected.
	require.Error(t, ka.AddRow(nil, [][]byte{[]byte("v")}))
}

func TestFreezeRequiresCompressorReady(t *testing.T) {
	j, err := coljar.New(1, coljar.WithZstdDict())
	require.NoError(t, err)
	require.NoError(t, j.AddRow(nil, [][]byte{[]byte("hello")}))

	dir := t.TempDir()
	err = j.Freeze(filepath.Join(dir, "jar.bin"))
	require.ErrorIs(t, err, coljar.ErrCompressorNotReady)

	require.NoError(t, j.PrepareCompression())
	require.NoError(t, j.Freeze(filepath.Join(dir, "jar.bin")))
}

func TestFreezeRequiresFilterAndPHFTogether(t *testing.T) {
	filterOnly, err := coljar.New(1, coljar.WithCuckooFilter(16))
	require.NoError(t, err)
	require.NoError(t, filterOnly.AddRow(nil, [][]byte{[]byte("v")}))
	err = filterOnly.Freeze(filepath.Join(t.TempDir(), "jar.bin"))
	require.ErrorIs(t, err, coljar.ErrPHFMissing)
}

func TestPrepareIndexRequiresKeys(t *testing.T) {
	j, err := coljar.New(1, coljar.WithCuckooFilter(16), coljar.WithBucketMPHF())
	require.NoError(t, err)
	err = j.PrepareIndex()
	require.ErrorIs(t, err, coljar.ErrPHFMissingKeys)
}

func TestPrepareIndexFilterMaxCapacity(t *testing.T) {
	j, err := coljar.New(1, coljar.WithCuckooFilter(4), coljar.WithFingerprintMPHF())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		key := []byte(fmt.Sprintf("key-%06d", i))
		require.NoError(t, j.AddRow(key, [][]byte{[]byte("v")}))
	}
	err = j.PrepareIndex()
	require.ErrorIs(t, err, coljar.ErrFilterMaxCapacity)
}

func TestAddContainsRequireFilterConfigured(t *testing.T) {
	j, err := coljar.New(1)
	require.NoError(t, err)

	err = j.Add([]byte("k"))
	require.ErrorIs(t, err, coljar.ErrFilterMissing)

	_, err = j.Contains([]byte("k"))
	require.ErrorIs(t, err, coljar.ErrFilterMissing)

	withFilter, err := coljar.New(1, coljar.WithCuckooFilter(16))
	require.NoError(t, err)
	require.NoError(t, withFilter.Add([]byte("k")))
	ok, err := withFilter.Contains([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSetKeysGetIndexRequirePHFConfigured(t *testing.T) {
	j, err := coljar.New(1)
	require.NoError(t, err)

	err = j.SetKeys([][]byte{[]byte("k")})
	require.ErrorIs(t, err, coljar.ErrPHFMissing)

	_, err = j.GetIndex([]byte("k"))
	require.ErrorIs(t, err, coljar.ErrPHFMissing)

	withPHF, err := coljar.New(1, coljar.WithFingerprintMPHF())
	require.NoError(t, err)
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	require.NoError(t, withPHF.SetKeys(keys))
	idx, err := withPHF.GetIndex([]byte("b"))
	require.NoError(t, err)
	require.Less(t, idx, uint64(len(keys)))
}

func TestAddRejectsAtFilterCapacity(t *testing.T) {
	j, err := coljar.New(1, coljar.WithCuckooFilter(2))
	require.NoError(t, err)
	require.NoError(t, j.Add([]byte("a")))
	require.NoError(t, j.Add([]byte("b")))
	err = j.Add([]byte("c"))
	require.ErrorIs(t, err, coljar.ErrFilterMaxCapacity)
}

func TestAddRowRejectsAfterFreeze(t *testing.T) {
	j, err := coljar.New(1)
	require.NoError(t, err)
	require.NoError(t, j.AddRow(nil, [][]byte{[]byte("v")}))
	require.NoError(t, j.Freeze(filepath.Join(t.TempDir(), "jar.bin")))

	err = j.AddRow(nil, [][]byte{[]byte("v2")})
	require.ErrorIs(t, err, coljar.ErrAlreadyFrozen)

	err = j.Freeze(filepath.Join(t.TempDir(), "jar2.bin"))
	require.ErrorIs(t, err, coljar.ErrAlreadyFrozen)
}
