package walker

import (
	"github.com/dfirkit/ntfscore/mft"
)

// IncompleteReason classifies why a record could not be fully resolved by the time it was reported, for the
// diagnostic annotation the final sweep attaches (§ "Memory control").
type IncompleteReason int

const (
	ReasonComplete IncompleteReason = iota
	ReasonMissingBase
	ReasonMissingAttributeListHost
	ReasonMissingParent
)

func (r IncompleteReason) String() string {
	switch r {
	case ReasonMissingBase:
		return "missing-base-record"
	case ReasonMissingAttributeListHost:
		return "missing-attribute-list-host"
	case ReasonMissingParent:
		return "missing-parent-directory"
	}
	return "complete"
}

// isExtensionRecord reports whether rec is an extension record (its BaseRecordReference is non-zero).
func isExtensionRecord(rec mft.Record) bool {
	return rec.BaseRecordReference.Value() != 0
}

// attributeListEntries returns the parsed entries of rec's own $ATTRIBUTE_LIST attribute, if it has one. Only the
// base record's list is ever used to drive completeness (see DESIGN.md decision on the Open Question); a caller
// passing an extension record's own attribute list gets its entries back too, but the walker only calls this (via
// missingDependencies) for non-extension records.
func attributeListEntries(rec mft.Record) ([]mft.AttributeListEntry, error) {
	attrs := rec.FindAttributes(mft.AttributeTypeAttributeList)
	if len(attrs) == 0 {
		return nil, nil
	}
	attr := attrs[0]
	if !attr.Resident {
		// A non-resident $ATTRIBUTE_LIST would need its data runs read from the volume; completeness checks do not
		// carry a volume.Reader, and nothing in the walker reads such a list beforehand. It is treated as having
		// no entries, so the hosts it lists are not counted as dependencies, rather than erroring the whole record.
		return nil, nil
	}
	return mft.ParseAttributeList(attr.Data)
}

// missingDependencies returns every FRN that rec depends on but that is not yet a parsed record in pool, along
// with the IncompleteReason that applies to the first missing category found (base record dependencies take
// priority over attribute-list hosts, which take priority over parent directories, matching the order §3.6 lists
// them in).
func missingDependencies(rec mft.Record, pool *recordPool, resolveParents bool, rootSegment uint64) ([]mft.FileReference, IncompleteReason) {
	var missing []mft.FileReference
	reason := ReasonComplete

	if isExtensionRecord(rec) {
		if _, ok := pool.Get(rec.BaseRecordReference); !ok {
			missing = append(missing, rec.BaseRecordReference)
			reason = ReasonMissingBase
		}
	}

	entries, _ := attributeListEntries(rec)
	for _, e := range entries {
		if e.BaseRecordReference.Value() == rec.FileReference.Value() {
			continue // hosted on this record itself, not a dependency
		}
		if _, ok := pool.Get(e.BaseRecordReference); !ok {
			missing = append(missing, e.BaseRecordReference)
			if reason == ReasonComplete {
				reason = ReasonMissingAttributeListHost
			}
		}
	}

	if resolveParents {
		for _, attr := range rec.FindAttributes(mft.AttributeTypeFileName) {
			fn, err := mft.ParseFileName(attr.Data)
			if err != nil {
				continue
			}
			missingParent, ok := firstMissingAncestor(fn.ParentFileReference, pool, rootSegment)
			if ok {
				missing = append(missing, missingParent)
				if reason == ReasonComplete {
					reason = ReasonMissingParent
				}
			}
		}
	}

	return dedupeFRNs(missing), reason
}

// firstMissingAncestor climbs the parent chain starting at parent, returning the first ancestor FRN that is not
// yet a parsed record in pool. It returns ok=false once the chain reaches rootSegment (the volume's root directory
// has no parent to resolve) without finding a gap. A visited set guards against a corrupt/cyclic parent chain.
func firstMissingAncestor(parent mft.FileReference, pool *recordPool, rootSegment uint64) (mft.FileReference, bool) {
	visited := make(map[uint64]bool)
	current := parent
	for {
		if current.SegmentKey() == rootSegment {
			return mft.FileReference{}, false
		}
		if visited[current.Value()] {
			return mft.FileReference{}, false // cyclic parent chain; treat as resolved rather than loop forever
		}
		visited[current.Value()] = true

		rec, ok := pool.Get(current)
		if !ok {
			return current, true
		}

		name, ok := mft.PrimaryFileName(parsedFileNames(rec))
		if !ok {
			return mft.FileReference{}, false // directory with no $FILE_NAME of its own; nothing further to climb
		}
		current = name.ParentFileReference
	}
}

func parsedFileNames(rec mft.Record) []mft.FileName {
	attrs := rec.FindAttributes(mft.AttributeTypeFileName)
	names := make([]mft.FileName, 0, len(attrs))
	for _, a := range attrs {
		fn, err := mft.ParseFileName(a.Data)
		if err != nil {
			continue
		}
		names = append(names, fn)
	}
	return names
}

func dedupeFRNs(frns []mft.FileReference) []mft.FileReference {
	if len(frns) < 2 {
		return frns
	}
	seen := make(map[uint64]bool, len(frns))
	out := frns[:0]
	for _, f := range frns {
		if seen[f.Value()] {
			continue
		}
		seen[f.Value()] = true
		out = append(out, f)
	}
	return out
}

// IsComplete is a convenience wrapper reporting whether rec currently has zero missing dependencies.
func IsComplete(rec mft.Record, pool *recordPool, resolveParents bool, rootSegment uint64) bool {
	missing, _ := missingDependencies(rec, pool, resolveParents, rootSegment)
	return len(missing) == 0
}
