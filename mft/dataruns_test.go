package mft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/mft"
)

func TestDecodeExtentsSimpleRun(t *testing.T) {
	// Single run: 24 clusters starting at LCN 100, no sparse runs.
	input := decodeHex(t, "21186400")

	extents, err := mft.DecodeExtents(input, 0)
	require.Nilf(t, err, "error decoding extents: %v", err)

	expected := []mft.Extent{
		{VCN: 0, LCN: 100, LengthInClusters: 24, IsSparse: false},
	}
	assert.Equal(t, expected, extents)
	assert.Equal(t, uint64(24), mft.ExtentsClusterCount(extents))
}

func TestDecodeExtentsSparseRun(t *testing.T) {
	// A sparse run (header 0x01, length only, no offset field) followed by a real run at LCN 50.
	input := decodeHex(t, "010a21323200")

	extents, err := mft.DecodeExtents(input, 0)
	require.Nilf(t, err, "error decoding extents: %v", err)

	require.Len(t, extents, 2)
	assert.True(t, extents[0].IsSparse)
	assert.Equal(t, uint64(0), extents[0].LCN)
	assert.Equal(t, uint64(10), extents[0].LengthInClusters)

	assert.False(t, extents[1].IsSparse)
	assert.Equal(t, uint64(10), extents[1].VCN)
	assert.Equal(t, uint64(50), extents[1].LCN)
}

func TestDecodeExtentsContinuationStartVCN(t *testing.T) {
	input := decodeHex(t, "21186400")

	extents, err := mft.DecodeExtents(input, 1000)
	require.Nilf(t, err, "error decoding extents: %v", err)

	require.Len(t, extents, 1)
	assert.Equal(t, uint64(1000), extents[0].VCN)
}

func TestReconcileSizeTrimsOverhang(t *testing.T) {
	extents := []mft.Extent{
		{VCN: 0, LCN: 10, LengthInClusters: 4},
	}
	// 4 clusters at 512 bytes/cluster is 2048 bytes; a 1500-byte file only needs 3 clusters.
	reconciled := mft.ReconcileSize(extents, 1500, 512)

	require.Len(t, reconciled, 1)
	assert.Equal(t, uint64(3), reconciled[0].LengthInClusters)
}

func TestReconcileSizeAppendsSparseDeficit(t *testing.T) {
	extents := []mft.Extent{
		{VCN: 0, LCN: 10, LengthInClusters: 2},
	}
	// 2 clusters at 512 bytes covers 1024 bytes; a 2048-byte file needs 2 more clusters of (implied) sparse padding.
	reconciled := mft.ReconcileSize(extents, 2048, 512)

	require.Len(t, reconciled, 2)
	assert.True(t, reconciled[1].IsSparse)
	assert.Equal(t, uint64(2), reconciled[1].VCN)
	assert.Equal(t, uint64(2), reconciled[1].LengthInClusters)
}
