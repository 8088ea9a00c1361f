package mft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/mft"
)

func TestParseIndexAllocationBlock(t *testing.T) {
	// Single 80-byte sector, VCN=7, one INDEX_HEADER pointing at a single (empty, last) IndexEntry, and an update
	// sequence array whose real value (0x1122) has been swapped in for the placeholder (0xABCD) at the sector's
	// final two bytes.
	input := decodeHex(t, "494e4458280002000000000000000000070000000000000018000000280000002800000000000000abcd112200000000000000000000000010000000020000000000000000000000000000000000abcd")

	block, err := mft.ParseIndexAllocationBlock(input)
	require.Nilf(t, err, "error parsing index allocation block: %v", err)

	assert.Equal(t, uint64(7), block.VCN)
	require.Len(t, block.Entries, 1)
	assert.Equal(t, uint32(2), block.Entries[0].Flags)
}

func TestParseIndexAllocationBlockBadSignature(t *testing.T) {
	input := decodeHex(t, "00000000000000000000000000000000000000000000000000000000000000000000000000000000")

	_, err := mft.ParseIndexAllocationBlock(input)
	assert.NotNil(t, err, "expected an error for a missing INDX signature")
}

func TestParseIndexAllocationBlockFixupMismatch(t *testing.T) {
	input := decodeHex(t, "494e4458280002000000000000000000070000000000000018000000280000002800000000000000abcd112200000000000000000000000010000000020000000000000000000000000000000000ffff")

	_, err := mft.ParseIndexAllocationBlock(input)
	assert.NotNil(t, err, "expected a fixup mismatch error")
}
