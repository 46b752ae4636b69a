package eliasfano_test

import (
	"testing"

	"github.com/rpcpool/coljar/eliasfano"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 0, 3, 3, 7, 19, 19, 19, 100, 1000}
	b := eliasfano.NewBuilder(values[len(values)-1], uint64(len(values)))
	for _, v := range values {
		require.NoError(t, b.Push(v))
	}
	ef, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, uint64(len(values)), ef.Len())

	for i, want := range values {
		got, err := ef.Get(uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, got, "index %d", i)
	}
}

func TestRejectsOutOfOrder(t *testing.T) {
	b := eliasfano.NewBuilder(100, 3)
	require.NoError(t, b.Push(5))
	require.Error(t, b.Push(3))
}

func TestBuildRejectsShortSequence(t *testing.T) {
	b := eliasfano.NewBuilder(100, 3)
	require.NoError(t, b.Push(1))
	require.NoError(t, b.Push(2))
	_, err := b.Build()
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 1, 4, 9, 9, 9, 50}
	b := eliasfano.NewBuilder(values[len(values)-1], uint64(len(values)))
	for _, v := range values {
		require.NoError(t, b.Push(v))
	}
	ef, err := b.Build()
	require.NoError(t, err)

	data, err := ef.MarshalBinary()
	require.NoError(t, err)

	restored, err := eliasfano.Load(data)
	require.NoError(t, err)
	for i, want := range values {
		got, err := restored.Get(uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestPrefixSummedPermutation(t *testing.T) {
	perm := []uint64{3, 0, 4, 1, 2}
	b := eliasfano.NewPrefixSummedBuilder(uint64(len(perm)), uint64(len(perm)))
	for _, v := range perm {
		require.NoError(t, b.Push(v))
	}
	ps, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, uint64(len(perm)), ps.Len())

	for i, want := range perm {
		got, err := ps.Get(uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, got, "index %d", i)
	}
}
