package codec_test

import (
	"testing"

	"github.com/rpcpool/coljar/codec"
	"github.com/stretchr/testify/require"
)

func TestNoneRoundTrip(t *testing.T) {
	c, err := codec.New(codec.KindNone, 1)
	require.NoError(t, err)
	require.True(t, c.IsReady())

	compressed, err := c.Compress(nil, 0, []byte("hello world"))
	require.NoError(t, err)
	decompressed, err := c.Decompress(nil, 0, compressed)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), decompressed)
}

func TestZstdNoDictRoundTrip(t *testing.T) {
	c, err := codec.New(codec.KindZstdNoDict, 1)
	require.NoError(t, err)
	require.True(t, c.IsReady())

	orig := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")
	compressed, err := c.Compress(nil, 0, orig)
	require.NoError(t, err)
	require.NotEqual(t, orig, compressed)

	decompressed, err := c.Decompress(nil, 0, compressed)
	require.NoError(t, err)
	require.Equal(t, orig, decompressed)
}

func TestZstdWithDictNotReadyUntilPrepared(t *testing.T) {
	c, err := codec.New(codec.KindZstdWithDict, 2)
	require.NoError(t, err)
	require.False(t, c.IsReady())

	_, err = c.Compress(nil, 0, []byte("x"))
	require.ErrorIs(t, err, codec.ErrNotReady)

	samples := [][][]byte{
		{[]byte("column zero sample one"), []byte("column zero sample two")},
		{[]byte("column one sample one"), []byte("column one sample two")},
	}
	require.NoError(t, c.Prepare(samples))
	require.True(t, c.IsReady())

	orig := []byte("column zero sample one, but a bit different this time")
	compressed, err := c.Compress(nil, 0, orig)
	require.NoError(t, err)
	decompressed, err := c.Decompress(nil, 0, compressed)
	require.NoError(t, err)
	require.Equal(t, orig, decompressed)
}

func TestPrepareRejectsColumnLenMismatch(t *testing.T) {
	for _, kind := range []codec.Kind{codec.KindNone, codec.KindZstdNoDict, codec.KindZstdWithDict} {
		c, err := codec.New(kind, 2)
		require.NoError(t, err)

		err = c.Prepare([][][]byte{{[]byte("only one column")}})
		require.Error(t, err)
		var mismatch *codec.ColumnLenMismatchError
		require.ErrorAs(t, err, &mismatch)
		require.Equal(t, 2, mismatch.Expected)
		require.Equal(t, 1, mismatch.Got)
	}
}

func TestZstdWithDictStateRoundTrip(t *testing.T) {
	c, err := codec.New(codec.KindZstdWithDict, 1)
	require.NoError(t, err)
	require.NoError(t, c.Prepare([][][]byte{
		{[]byte("alpha beta gamma"), []byte("alpha beta delta")},
	}))

	state, err := c.State()
	require.NoError(t, err)
	require.NotEmpty(t, state)

	restored, err := codec.Restore(codec.KindZstdWithDict, 1, state)
	require.NoError(t, err)
	require.True(t, restored.IsReady())

	orig := []byte("alpha beta epsilon")
	compressed, err := c.Compress(nil, 0, orig)
	require.NoError(t, err)
	decompressed, err := restored.Decompress(nil, 0, compressed)
	require.NoError(t, err)
	require.Equal(t, orig, decompressed)
}
