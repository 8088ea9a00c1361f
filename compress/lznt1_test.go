package compress_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/compress"
)

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.Nilf(t, err, "unable to decode hex: %v", err)
	return b
}

func TestDecompressLZNT1UncompressedChunk(t *testing.T) {
	input := decodeHex(t, "0b0048656c6c6f2c204e54465321")

	out, err := compress.Decompress(compress.AlgorithmLZNT1, input, 12)
	require.Nilf(t, err, "error decompressing: %v", err)
	assert.Equal(t, "Hello, NTFS!", string(out))
}

func TestDecompressLZNT1CompressedChunkWithBackReference(t *testing.T) {
	input := decodeHex(t, "0580084142430020")

	out, err := compress.Decompress(compress.AlgorithmLZNT1, input, 6)
	require.Nilf(t, err, "error decompressing: %v", err)
	assert.Equal(t, "ABCABC", string(out))
}

func TestDecompressLZNT1TruncatedHeader(t *testing.T) {
	_, err := compress.Decompress(compress.AlgorithmLZNT1, []byte{0x05}, 6)
	assert.NotNil(t, err, "expected an error for a truncated chunk header")
}
