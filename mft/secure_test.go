package mft_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/mft"
)

func buildSecurityIndexEntry(hash, securityId uint32, sdsOffset uint64, sdsLength uint32) []byte {
	const entryLength = 0x24
	b := make([]byte, entryLength)
	binary.LittleEndian.PutUint16(b[0x08:], entryLength)
	binary.LittleEndian.PutUint16(b[0x0A:], 20)
	binary.LittleEndian.PutUint32(b[0x0C:], 0)
	binary.LittleEndian.PutUint32(b[0x10:], hash)
	binary.LittleEndian.PutUint32(b[0x14:], securityId)
	binary.LittleEndian.PutUint64(b[0x18:], sdsOffset)
	binary.LittleEndian.PutUint32(b[0x20:], sdsLength)
	return b
}

func buildSecurityIndexRoot(entry []byte) []byte {
	totalSize := uint32(len(entry) + 16)
	b := make([]byte, 0x20+len(entry))
	binary.LittleEndian.PutUint32(b[0x14:], totalSize)
	binary.LittleEndian.PutUint32(b[0x18:], totalSize)
	copy(b[0x20:], entry)
	return b
}

func TestParseSecurityIndexRoot(t *testing.T) {
	entry := buildSecurityIndexEntry(0x11111111, 0x22222222, 0x100, 0x50)
	root := buildSecurityIndexRoot(entry)

	entries, err := mft.ParseSecurityIndexRoot(root)
	require.Nilf(t, err, "error parsing $SII $INDEX_ROOT: %v", err)
	require.Len(t, entries, 1)
	assert.Equal(t, mft.SecurityIndexEntry{
		SecurityId: 0x22222222,
		Hash:       0x11111111,
		SDSOffset:  0x100,
		SDSLength:  0x50,
	}, entries[0])
}

func TestParseSecurityIndexRootEmpty(t *testing.T) {
	root := buildSecurityIndexRoot(nil)
	entries, err := mft.ParseSecurityIndexRoot(root)
	require.Nilf(t, err, "error parsing empty $SII $INDEX_ROOT: %v", err)
	assert.Empty(t, entries)
}

func buildSDSEntry(hash, securityId uint32, offset uint64, descriptor []byte) []byte {
	length := 20 + len(descriptor)
	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:], hash)
	binary.LittleEndian.PutUint32(b[4:], securityId)
	binary.LittleEndian.PutUint64(b[8:], offset)
	binary.LittleEndian.PutUint32(b[16:], uint32(length))
	copy(b[20:], descriptor)
	return b
}

func padTo16(b []byte) []byte {
	for len(b)%16 != 0 {
		b = append(b, 0)
	}
	return b
}

func TestParseSDS(t *testing.T) {
	first := padTo16(buildSDSEntry(1, 100, 0, []byte("descriptor-one")))
	second := padTo16(buildSDSEntry(2, 101, uint64(len(first)), []byte("descriptor-two-longer")))

	stream := append(append([]byte{}, first...), second...)

	entries, err := mft.ParseSDS(stream)
	require.Nilf(t, err, "error parsing $SDS: %v", err)
	require.Len(t, entries, 2)

	assert.Equal(t, uint32(100), entries[0].SecurityId)
	assert.Equal(t, []byte("descriptor-one"), entries[0].Descriptor)

	assert.Equal(t, uint32(101), entries[1].SecurityId)
	assert.Equal(t, []byte("descriptor-two-longer"), entries[1].Descriptor)
}

func TestParseSDSSkipsPadding(t *testing.T) {
	first := padTo16(buildSDSEntry(1, 100, 0, []byte("one")))
	gap := make([]byte, 64)
	second := padTo16(buildSDSEntry(2, 200, uint64(len(first)+len(gap)), []byte("two")))

	stream := append(append(append([]byte{}, first...), gap...), second...)

	entries, err := mft.ParseSDS(stream)
	require.Nilf(t, err, "error parsing $SDS with padding: %v", err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(200), entries[1].SecurityId)
}
