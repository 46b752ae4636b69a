package filter_test

import (
	"fmt"
	"testing"

	"github.com/rpcpool/coljar/filter"
	"github.com/stretchr/testify/require"
)

func keys(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("key-%06d", i))
	}
	return out
}

func TestCuckooNoFalseNegatives(t *testing.T) {
	ks := keys(2000)
	c, err := filter.Build(ks, len(ks))
	require.NoError(t, err)

	for _, k := range ks {
		require.True(t, c.Contains(k), "key %q must be reported present", k)
	}
	require.Equal(t, len(ks), c.Len())
}

func TestCuckooRejectsMostUntrained(t *testing.T) {
	ks := keys(2000)
	c, err := filter.Build(ks, len(ks))
	require.NoError(t, err)

	falsePositives := 0
	trials := 2000
	for i := 0; i < trials; i++ {
		untrained := []byte(fmt.Sprintf("absent-%06d", i))
		if c.Contains(untrained) {
			falsePositives++
		}
	}
	// With 1-byte fingerprints the false-positive rate is low but nonzero;
	// it must not be anywhere near every lookup.
	require.Less(t, falsePositives, trials/4)
}

func TestCuckooAddRejectsAtCapacity(t *testing.T) {
	c := filter.New(4)
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Add([]byte(fmt.Sprintf("key-%06d", i))))
	}
	err := c.Add([]byte("key-000004"))
	require.ErrorIs(t, err, filter.ErrMaxCapacity)
	require.Equal(t, 4, c.Len())
}

func TestBuildDoesNotWidenCapacity(t *testing.T) {
	_, err := filter.Build(keys(5), 4)
	require.ErrorIs(t, err, filter.ErrMaxCapacity)
}

func TestCuckooMarshalRoundTrip(t *testing.T) {
	ks := keys(500)
	c, err := filter.Build(ks, len(ks))
	require.NoError(t, err)

	data, err := c.MarshalBinary()
	require.NoError(t, err)

	restored, err := filter.UnmarshalBinary(data)
	require.NoError(t, err)
	for _, k := range ks {
		require.True(t, restored.Contains(k))
	}
}
