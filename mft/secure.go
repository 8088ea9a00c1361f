package mft

import (
	"bytes"
	"fmt"

	"github.com/dfirkit/ntfscore/binutil"
)

// SecurityIndexEntry is one entry of the $Secure system file's $SII index: a lookup pointer from a security
// identifier to its descriptor's location in the $SDS data stream. $SII's own index content is not a $FILE_NAME
// (unlike $I30), so it needs its own parser rather than reusing ParseIndexRoot/parseIndexEntries.
type SecurityIndexEntry struct {
	SecurityId uint32
	Hash       uint32
	SDSOffset  uint64
	SDSLength  uint32
}

// ParseSecurityIndexRoot parses the $INDEX_ROOT attribute of $Secure's "$SII" index. The node-header layout (up to
// the entries themselves) mirrors $INDEX_ROOT's generic shape; only the entry content differs from $FILE_NAME
// indexes.
func ParseSecurityIndexRoot(b []byte) ([]SecurityIndexEntry, error) {
	if len(b) < 32 {
		return nil, fmt.Errorf("expected at least %d bytes but got %d", 32, len(b))
	}
	r := binutil.NewLittleEndianReader(b)
	totalSize := int(r.Uint32(0x14))
	expectedSize := totalSize + 16
	if len(b) < expectedSize {
		return nil, fmt.Errorf("expected %d bytes in $SII $INDEX_ROOT but is %d", expectedSize, len(b))
	}
	if totalSize < 16 {
		return []SecurityIndexEntry{}, nil
	}
	return parseSecurityIndexEntries(r.Read(0x20, totalSize-16))
}

// ParseSecurityIndexAllocationBlock parses one $INDEX_ALLOCATION block of the $SII index, applying the same
// per-sector fixup $I30 blocks use.
func ParseSecurityIndexAllocationBlock(b []byte) ([]SecurityIndexEntry, error) {
	block, err := ParseIndexAllocationBlockRaw(b)
	if err != nil {
		return nil, err
	}
	return parseSecurityIndexEntries(block)
}

// ParseIndexAllocationBlockRaw verifies the "INDX" signature, applies fixup, and returns the raw entries region of
// an $INDEX_ALLOCATION block without interpreting its content as $FILE_NAME records, for index types (like $SII)
// whose content has a different shape.
func ParseIndexAllocationBlockRaw(b []byte) ([]byte, error) {
	if len(b) < 0x28 {
		return nil, fmt.Errorf("expected at least %d bytes but got %d", 0x28, len(b))
	}
	if !bytes.Equal(b[:4], indexAllocationSignature) {
		return nil, fmt.Errorf("unknown index allocation signature: %# x", b[:4])
	}
	b = binutil.Duplicate(b)
	r := binutil.NewLittleEndianReader(b)
	updateSequenceOffset := int(r.Uint16(0x04))
	updateSequenceSize := int(r.Uint16(0x06))
	b, err := applyFixUp(b, updateSequenceOffset, updateSequenceSize)
	if err != nil {
		return nil, fmt.Errorf("unable to apply fixup: %w", err)
	}
	r = binutil.NewLittleEndianReader(b)
	entriesOffset := int(r.Uint32(0x18)) + 0x18
	entriesEnd := int(r.Uint32(0x1C)) + 0x18
	if entriesEnd < entriesOffset || entriesEnd > len(b) {
		return nil, fmt.Errorf("invalid index entries range [%d, %d) for block of length %d", entriesOffset, entriesEnd, len(b))
	}
	return b[entriesOffset:entriesEnd], nil
}

// parseSecurityIndexEntries walks a $SII/$SDH index node's entries region. Each entry's generic header (length,
// content length, flags at the same offsets as a $FILE_NAME index entry) is identical; only the content at 0x10 is
// a SECURITY_ID_INDEX_DATA structure (hash, security id, $SDS offset, $SDS length) rather than a $FILE_NAME.
func parseSecurityIndexEntries(b []byte) ([]SecurityIndexEntry, error) {
	entries := make([]SecurityIndexEntry, 0)
	for len(b) > 0 {
		if len(b) < 16 {
			return entries, fmt.Errorf("expected at least 16 bytes for index entry header but got %d", len(b))
		}
		r := binutil.NewLittleEndianReader(b)
		entryLength := int(r.Uint16(0x08))
		if entryLength <= 0 || entryLength > len(b) {
			return entries, fmt.Errorf("invalid index entry length %d (have %d bytes)", entryLength, len(b))
		}
		contentLength := int(r.Uint16(0x0A))
		flags := r.Uint32(0x0C)
		isLastEntryInNode := flags&0b10 != 0

		if !isLastEntryInNode && contentLength >= 20 {
			content := r.Read(0x10, contentLength)
			cr := binutil.NewLittleEndianReader(content)
			entries = append(entries, SecurityIndexEntry{
				Hash:       cr.Uint32(0x00),
				SecurityId: cr.Uint32(0x04),
				SDSOffset:  cr.Uint64(0x08),
				SDSLength:  cr.Uint32(0x10),
			})
		}

		b = r.ReadFrom(entryLength)
	}
	return entries, nil
}

// SDSEntry is one security-descriptor record stored in $Secure's $SDS data stream.
type SDSEntry struct {
	Hash       uint32
	SecurityId uint32
	Offset     uint64
	Length     uint32
	Descriptor []byte
}

// sdsHeaderSize is the size of the SECURITY_DESCRIPTOR_HEADER that precedes every descriptor in $SDS: Hash(4),
// SecurityId(4), Offset-of-this-entry(8), Length-including-header(4).
const sdsHeaderSize = 20

// ParseSDS scans the $SDS data stream for descriptor records. $SDS entries are written at 16-byte aligned offsets
// and the stream is mirrored every 256KiB in a real NTFS volume; this scans linearly, steps over any all-zero header
// slot 16 bytes at a time, treating such a gap as padding, and resumes parsing at the next non-zero aligned header
// rather than attempting to skip exactly to the next 256KiB boundary (no canonical image was available to confirm that boundary choice,
// so gap-detection is used instead; see DESIGN.md).
func ParseSDS(b []byte) ([]SDSEntry, error) {
	entries := make([]SDSEntry, 0)
	offset := 0
	for offset+sdsHeaderSize <= len(b) {
		if isZero(b[offset : offset+sdsHeaderSize]) {
			offset = alignUp(offset+1, 16)
			continue
		}
		r := binutil.NewLittleEndianReader(b[offset:])
		length := int(r.Uint32(16))
		if length < sdsHeaderSize || offset+length > len(b) {
			offset = alignUp(offset+1, 16)
			continue
		}
		entries = append(entries, SDSEntry{
			Hash:       r.Uint32(0),
			SecurityId: r.Uint32(4),
			Offset:     r.Uint64(8),
			Length:     uint32(length),
			Descriptor: binutil.Duplicate(r.Read(sdsHeaderSize, length-sdsHeaderSize)),
		})
		offset = alignUp(offset+length, 16)
	}
	return entries, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func alignUp(v, align int) int {
	if v%align == 0 {
		return v
	}
	return v + (align - v%align)
}
