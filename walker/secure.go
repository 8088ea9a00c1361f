package walker

import (
	"fmt"
	"io"

	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/fragment"
	"github.com/dfirkit/ntfscore/mft"
	"github.com/dfirkit/ntfscore/volume"
	log "github.com/dsoprea/go-logging"
)

// walkSecure decodes $Secure's $SDS data stream and $SII index and emits one SecurityDescriptorEvent per
// descriptor entry. cb.SecurityDescriptor must be non-nil; callers check that before calling this.
func walkSecure(vol volume.Reader, geom bootsect.Geometry, secureRecord mft.Record, cb *Callbacks) error {
	sds, ok := namedAttribute(secureRecord, mft.AttributeTypeData, "$SDS")
	if !ok {
		return nil
	}
	sdsBytes, err := readAttributeBytes(vol, geom, sds)
	if err != nil {
		return fmt.Errorf("walker: unable to read $SDS: %w", err)
	}

	siiEntries, err := readSecurityIndex(vol, geom, secureRecord)
	if err != nil {
		return fmt.Errorf("walker: unable to read $SII: %w", err)
	}

	for _, e := range siiEntries {
		if e.SDSOffset+uint64(e.SDSLength) > uint64(len(sdsBytes)) {
			continue
		}
		event := SecurityDescriptorEvent{
			Id:     e.SecurityId,
			Hash:   e.Hash,
			Offset: e.SDSOffset,
			Length: e.SDSLength,
		}
		if descriptor, ok := sdsAt(sdsBytes, e.SDSOffset); ok {
			event.Descriptor = descriptor.Descriptor
		}
		if err := cb.SecurityDescriptor(event); err != nil {
			return err
		}
	}
	return nil
}

// sdsAt parses the single $SDS record located exactly at byte offset off, if any.
func sdsAt(sdsBytes []byte, off uint64) (mft.SDSEntry, bool) {
	if off >= uint64(len(sdsBytes)) {
		return mft.SDSEntry{}, false
	}
	entries, err := mft.ParseSDS(sdsBytes[off:])
	if err != nil || len(entries) == 0 {
		return mft.SDSEntry{}, false
	}
	return entries[0], true
}

func namedAttribute(rec mft.Record, t mft.AttributeType, name string) (mft.Attribute, bool) {
	for _, a := range rec.Attributes {
		if a.Type == t && a.Name == name {
			return a, true
		}
	}
	return mft.Attribute{}, false
}

// readAttributeBytes returns the full logical content of attr, reading non-resident data runs from vol when
// needed. A sparse extent never touches vol: its range is left zero in buf, which make() already zero-initializes.
// Bytes beyond attr.ValidDataSize (but still within attr.ActualSize) are left zero the same way, rather than read
// from clusters NTFS has allocated but never written.
func readAttributeBytes(vol volume.Reader, geom bootsect.Geometry, attr mft.Attribute) ([]byte, error) {
	if attr.Resident {
		return attr.Data, nil
	}
	extents, err := mft.DecodeExtents(attr.Data, 0)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, attr.ActualSize)
	validEnd := int64(attr.ValidDataSize)
	if validEnd > int64(attr.ActualSize) {
		validEnd = int64(attr.ActualSize)
	}

	pos := int64(0)
	for _, e := range extents {
		length := int64(e.LengthInClusters) * int64(geom.BytesPerCluster)
		if length <= 0 || pos >= int64(len(buf)) {
			continue
		}
		end := pos + length
		if end > int64(len(buf)) {
			end = int64(len(buf))
		}
		readEnd := end
		if readEnd > validEnd {
			readEnd = validEnd
		}
		if !e.IsSparse && readEnd > pos {
			frag := []fragment.Fragment{{Offset: int64(e.LCN) * int64(geom.BytesPerCluster), Length: readEnd - pos}}
			src := fragment.NewReader(&readAtSeeker{r: vol}, frag)
			if _, err := io.ReadFull(src, buf[pos:readEnd]); err != nil {
				return nil, fmt.Errorf("walker: short read of extent at LCN %d: %w", e.LCN, err)
			}
		}
		pos = end
	}
	return buf, nil
}

// readSecurityIndex decodes $Secure's $SII $INDEX_ROOT and, if present, walks its $INDEX_ALLOCATION for
// continuation blocks.
func readSecurityIndex(vol volume.Reader, geom bootsect.Geometry, secureRecord mft.Record) ([]mft.SecurityIndexEntry, error) {
	root, ok := namedAttribute(secureRecord, mft.AttributeTypeIndexRoot, "$SII")
	if !ok {
		return nil, nil
	}
	entries, err := mft.ParseSecurityIndexRoot(root.Data)
	if err != nil {
		return nil, err
	}

	alloc, ok := namedAttribute(secureRecord, mft.AttributeTypeIndexAllocation, "$SII")
	if !ok || alloc.Resident {
		return entries, nil
	}

	allocBytes, err := readAttributeBytes(vol, geom, alloc)
	if err != nil {
		return entries, nil
	}

	blockSize := geom.BytesPerCluster
	if blockSize == 0 {
		return entries, nil
	}
	for offset := 0; offset+blockSize <= len(allocBytes); offset += blockSize {
		more, err := mft.ParseSecurityIndexAllocationBlock(allocBytes[offset : offset+blockSize])
		if err != nil {
			log.Warningf("walker: skipping corrupt $SII index block at byte offset %d: %v", offset, err)
			continue
		}
		entries = append(entries, more...)
	}
	return entries, nil
}
