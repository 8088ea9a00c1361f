package walker

import (
	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/fragment"
	"github.com/dfirkit/ntfscore/mft"
	"github.com/dfirkit/ntfscore/volume"
	log "github.com/dsoprea/go-logging"
)

// walkI30 decodes a directory record's $INDEX_ROOT and $INDEX_ALLOCATION ("$I30") attributes and emits one I30Event
// per live entry, plus one per carved entry found in index-block slack space whose parent FRN matches this
// record's own FRN. cb.I30 must be non-nil; callers check that before calling this.
func walkI30(vol volume.Reader, geom bootsect.Geometry, rec mft.Record, cb *Callbacks) error {
	var root mft.IndexRoot
	found := false
	for _, attr := range rec.FindAttributes(mft.AttributeTypeIndexRoot) {
		if attr.Name != "$I30" {
			continue
		}
		parsed, err := mft.ParseIndexRoot(attr.Data)
		if err != nil {
			log.Warningf("walker: skipping $I30 side walk for FRN %s: corrupt $INDEX_ROOT: %v", rec.FileReference, err)
			return nil // record itself is still reported
		}
		root = parsed
		found = true
		break
	}
	if !found {
		return nil
	}

	for _, e := range root.Entries {
		if err := emitI30Entry(cb, rec.FileReference, e, false); err != nil {
			return err
		}
	}

	var allocAttr *mft.Attribute
	for i := range rec.Attributes {
		if rec.Attributes[i].Type == mft.AttributeTypeIndexAllocation && rec.Attributes[i].Name == "$I30" {
			allocAttr = &rec.Attributes[i]
			break
		}
	}
	if allocAttr == nil {
		return nil
	}
	if allocAttr.Resident {
		return nil
	}

	extents, err := mft.DecodeExtents(allocAttr.Data, 0)
	if err != nil {
		return nil
	}
	frags := make([]fragment.Fragment, 0, len(extents))
	for _, e := range extents {
		if e.IsSparse {
			continue
		}
		frags = append(frags, fragment.Fragment{
			Offset: int64(e.LCN) * int64(geom.BytesPerCluster),
			Length: int64(e.LengthInClusters) * int64(geom.BytesPerCluster),
		})
	}

	blockSize := int(root.BytesPerRecord)
	if blockSize == 0 {
		return nil
	}
	total := fragment.TotalLength(frags)
	src := fragment.NewReader(&readAtSeeker{r: vol}, frags)
	buf := make([]byte, blockSize)
	for offset := int64(0); offset+int64(blockSize) <= total; offset += int64(blockSize) {
		n, rerr := src.Read(buf)
		if n < blockSize {
			break
		}
		if rerr != nil && n == 0 {
			break
		}

		block, perr := mft.ParseIndexAllocationBlock(buf)
		if perr != nil {
			log.Warningf("walker: corrupt $I30 index block for FRN %s at byte offset %d: %v", rec.FileReference, offset, perr)
		} else {
			for _, e := range block.Entries {
				if err := emitI30Entry(cb, rec.FileReference, e, false); err != nil {
					return err
				}
			}
		}

		if err := carveIndexBlock(cb, rec.FileReference, buf); err != nil {
			return err
		}
	}
	return nil
}

// emitI30Entry delivers one index entry through cb.I30, skipping the synthetic top-of-tree entry that carries no
// FileName (the "last entry in node" marker used purely for B+ tree navigation).
func emitI30Entry(cb *Callbacks, dirFRN mft.FileReference, e mft.IndexEntry, carved bool) error {
	if e.FileName.Name == "" {
		return nil
	}
	return cb.I30(I30Event{DirectoryFRN: dirFRN, Entry: e, Carved: carved})
}

// carveIndexBlock scans an index block's raw bytes for FILE_NAME-shaped structures whose parent reference equals
// dirFRN but that were not reached through the live B+ tree walk above (ie. they sit in slack space left behind
// when an entry was deleted from the node but its bytes were not overwritten). This is a best-effort heuristic:
// it looks for a plausible FileReference-then-timestamp-then-length shape rather than fully validating the
// surrounding index-entry header, since a carved entry by definition no longer has one.
func carveIndexBlock(cb *Callbacks, dirFRN mft.FileReference, block []byte) error {
	const indexEntryHeaderSize = 0x10
	const minFileNameRecord = 66
	for offset := 0; offset+indexEntryHeaderSize+minFileNameRecord <= len(block); offset++ {
		ownRef, err := mft.ParseFileReference(block[offset : offset+8])
		if err != nil {
			continue
		}
		contentStart := offset + indexEntryHeaderSize
		fn, err := mft.ParseFileName(block[contentStart:])
		if err != nil || fn.Name == "" {
			continue
		}
		if fn.ParentFileReference.SegmentKey() != dirFRN.SegmentKey() {
			continue
		}
		entry := mft.IndexEntry{FileReference: ownRef, FileName: fn}
		if err := emitI30Entry(cb, dirFRN, entry, true); err != nil {
			return err
		}
	}
	return nil
}
