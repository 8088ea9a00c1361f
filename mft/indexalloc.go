package mft

import (
	"bytes"
	"fmt"

	"github.com/dfirkit/ntfscore/binutil"
)

var indexAllocationSignature = []byte{0x49, 0x4e, 0x44, 0x58} // "INDX"

// IndexAllocationBlock is one fixed-size (IndexBufferSizeInBytes, from the boot sector) block of an $INDEX_ALLOCATION
// attribute's non-resident data, carrying one node of the B+ tree that backs a directory's (or other index's)
// entries. VCN is the block's position within the index, expressed in the same index-record units used by the
// $INDEX_ROOT's sub-node VCN references.
type IndexAllocationBlock struct {
	VCN     uint64
	Entries []IndexEntry
}

// ParseIndexAllocationBlock parses one IndexBufferSizeInBytes-sized block of an $INDEX_ALLOCATION attribute's data:
// it verifies the "INDX" signature, applies the per-sector fixup (the same update-sequence scheme used by MFT
// records), then parses the entries in the range the node header declares.
func ParseIndexAllocationBlock(b []byte) (IndexAllocationBlock, error) {
	if len(b) < 0x28 {
		return IndexAllocationBlock{}, fmt.Errorf("expected at least %d bytes but got %d", 0x28, len(b))
	}
	sig := b[:4]
	if !bytes.Equal(sig, indexAllocationSignature) {
		return IndexAllocationBlock{}, fmt.Errorf("unknown index allocation signature: %# x", sig)
	}

	b = binutil.Duplicate(b)
	r := binutil.NewLittleEndianReader(b)

	updateSequenceOffset := int(r.Uint16(0x04))
	updateSequenceSize := int(r.Uint16(0x06))
	b, err := applyFixUp(b, updateSequenceOffset, updateSequenceSize)
	if err != nil {
		return IndexAllocationBlock{}, fmt.Errorf("unable to apply fixup: %w", err)
	}
	r = binutil.NewLittleEndianReader(b)

	vcn := r.Uint64(0x10)

	// The node header (offsets relative to 0x18, the start of the INDEX_HEADER structure) mirrors $INDEX_ROOT's.
	entriesOffset := int(r.Uint32(0x18)) + 0x18
	entriesEnd := int(r.Uint32(0x1C)) + 0x18
	if entriesEnd < entriesOffset || entriesEnd > len(b) {
		return IndexAllocationBlock{}, fmt.Errorf("invalid index entries range [%d, %d) for block of length %d", entriesOffset, entriesEnd, len(b))
	}

	entries, err := parseIndexEntries(b[entriesOffset:entriesEnd])
	if err != nil {
		return IndexAllocationBlock{}, fmt.Errorf("unable to parse index entries: %w", err)
	}

	return IndexAllocationBlock{
		VCN:     vcn,
		Entries: entries,
	}, nil
}
