package phf_test

import (
	"fmt"
	"testing"

	"github.com/rpcpool/coljar/phf"
	"github.com/stretchr/testify/require"
)

func keys(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("key-%06d", i))
	}
	return out
}

func testPerfectAndUnique(t *testing.T, kind phf.Kind) {
	ks := keys(3000)
	p, err := phf.New(kind)
	require.NoError(t, err)
	require.NoError(t, p.SetKeys(ks))
	require.Equal(t, len(ks), p.NumKeys())

	seen := make(map[uint64]bool, len(ks))
	for _, k := range ks {
		idx, err := p.GetIndex(k)
		require.NoError(t, err)
		require.Less(t, idx, uint64(len(ks)))
		require.False(t, seen[idx], "index %d assigned to more than one key", idx)
		seen[idx] = true
	}
	require.Len(t, seen, len(ks))
}

func TestFingerprintPerfectAndUnique(t *testing.T) {
	testPerfectAndUnique(t, phf.KindFingerprint)
}

func TestBucketPerfectAndUnique(t *testing.T) {
	testPerfectAndUnique(t, phf.KindBucket)
}

func testDeterministic(t *testing.T, kind phf.Kind) {
	ks := keys(500)

	p1, err := phf.New(kind)
	require.NoError(t, err)
	require.NoError(t, p1.SetKeys(ks))

	p2, err := phf.New(kind)
	require.NoError(t, err)
	require.NoError(t, p2.SetKeys(ks))

	for _, k := range ks {
		i1, err := p1.GetIndex(k)
		require.NoError(t, err)
		i2, err := p2.GetIndex(k)
		require.NoError(t, err)
		require.Equal(t, i1, i2, "retraining the same keys must reproduce the same index")
	}

	b1, err := p1.MarshalBinary()
	require.NoError(t, err)
	b2, err := p2.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, b1, b2, "retraining the same keys must reproduce byte-identical serialized state")
}

func TestFingerprintDeterministic(t *testing.T) {
	testDeterministic(t, phf.KindFingerprint)
}

func TestBucketDeterministic(t *testing.T) {
	testDeterministic(t, phf.KindBucket)
}

func testMarshalRoundTrip(t *testing.T, kind phf.Kind) {
	ks := keys(1000)
	p, err := phf.New(kind)
	require.NoError(t, err)
	require.NoError(t, p.SetKeys(ks))

	data, err := p.MarshalBinary()
	require.NoError(t, err)

	restored, err := phf.Load(kind, data)
	require.NoError(t, err)
	for _, k := range ks {
		want, err := p.GetIndex(k)
		require.NoError(t, err)
		got, err := restored.GetIndex(k)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestFingerprintMarshalRoundTrip(t *testing.T) {
	testMarshalRoundTrip(t, phf.KindFingerprint)
}

func TestBucketMarshalRoundTrip(t *testing.T) {
	testMarshalRoundTrip(t, phf.KindBucket)
}

func TestSetKeysRejectsEmpty(t *testing.T) {
	p, err := phf.New(phf.KindFingerprint)
	require.NoError(t, err)
	require.ErrorIs(t, p.SetKeys(nil), phf.ErrNoKeys)
}
