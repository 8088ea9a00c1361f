package compress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/compress"
)

func TestDecompressXpressAllLiterals(t *testing.T) {
	input := decodeHex(t, "000000004142434445464748")

	out, err := compress.Decompress(compress.AlgorithmXpress4K, input, 8)
	require.Nilf(t, err, "error decompressing: %v", err)
	assert.Equal(t, "ABCDEFGH", string(out))
}

func TestDecompressXpressWithBackReference(t *testing.T) {
	input := decodeHex(t, "000000104142431000")

	out, err := compress.Decompress(compress.AlgorithmXpress4K, input, 6)
	require.Nilf(t, err, "error decompressing: %v", err)
	assert.Equal(t, "ABCABC", string(out))
}

func TestDecompressUnsupportedAlgorithmDoesNotApplyHere(t *testing.T) {
	// LZX is a recognized WOF algorithm (see mft.WofAlgorithmLZX) but this package implements only LZNT1 and the
	// three plain-XPRESS variants; there is no compress.AlgorithmLZX, so callers detect LZX upstream in
	// mft.ParseWofReparseData and skip decompression entirely rather than calling into this package.
	_, err := compress.Decompress(compress.Algorithm(99), []byte{}, 1)
	assert.ErrorIs(t, err, compress.ErrUnsupportedAlgorithm)
}
