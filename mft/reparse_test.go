package mft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/mft"
)

func TestParseReparsePointSymlink(t *testing.T) {
	// Tag=0xA000000C (symlink), DataLength=4, Reserved=0000, Data=DEADBEEF
	input := decodeHex(t, "0c0000a004000000deadbeef")

	rp, err := mft.ParseReparsePoint(input)
	require.Nilf(t, err, "error parsing $REPARSE_POINT: %v", err)

	assert.Equal(t, mft.ReparseTagSymlink, rp.Tag)
	assert.Equal(t, mft.ReparseKindSymlink, rp.Kind)
	assert.Equal(t, uint16(4), rp.DataLength)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, rp.Data)
}

func TestClassifyReparseTag(t *testing.T) {
	assert.Equal(t, mft.ReparseKindSymlink, mft.ClassifyReparseTag(mft.ReparseTagSymlink))
	assert.Equal(t, mft.ReparseKindMountPoint, mft.ClassifyReparseTag(mft.ReparseTagMountPoint))
	assert.Equal(t, mft.ReparseKindWofCompressed, mft.ClassifyReparseTag(mft.ReparseTagWof))
	assert.Equal(t, mft.ReparseKindGeneric, mft.ClassifyReparseTag(mft.ReparseTag(0x12345678)))
}

func TestParseReparsePointTooShort(t *testing.T) {
	_, err := mft.ParseReparsePoint(decodeHex(t, "0c0000a0ff000000"))
	assert.NotNil(t, err, "expected an error when declared data length exceeds the buffer")
}

func TestParseWofReparseDataXpress8K(t *testing.T) {
	// Version=1, Provider=1, Version2=1, Algorithm=2 (XPRESS8K), Flags=0
	input := decodeHex(t, "0100000001000000010000000200000000000000")

	algo, err := mft.ParseWofReparseData(input)
	require.Nilf(t, err, "error parsing WOF reparse data: %v", err)
	assert.Equal(t, mft.WofAlgorithmXpress8K, algo)
}

func TestParseWofReparseDataLZXRecognizedNotSupported(t *testing.T) {
	input := decodeHex(t, "0100000001000000010000000100000000000000")

	algo, err := mft.ParseWofReparseData(input)
	require.Nilf(t, err, "error parsing WOF reparse data: %v", err)
	assert.Equal(t, mft.WofAlgorithmLZX, algo)
}
