package mft

import (
	"fmt"

	"github.com/dfirkit/ntfscore/binutil"
)

// EAInfoFlag bits found in an $EA_INFORMATION attribute.
type EAInfoFlag uint16

const (
	EAInfoFlagHasEAInNeedEAMode EAInfoFlag = 0x8000
)

// EAInformation is the parsed $EA_INFORMATION attribute, a small fixed-size summary that always accompanies an $EA
// attribute (EA data is not consulted to compute these, they are maintained by the filesystem driver).
type EAInformation struct {
	PackedEASizeBytes    uint16
	NeedEACount          uint16
	UnpackedEASizeBytes  uint32
}

// ParseEAInformation parses the 8-byte $EA_INFORMATION attribute.
func ParseEAInformation(b []byte) (EAInformation, error) {
	if len(b) < 8 {
		return EAInformation{}, fmt.Errorf("expected at least 8 bytes but got %d", len(b))
	}
	r := binutil.NewLittleEndianReader(b)
	return EAInformation{
		PackedEASizeBytes:   r.Uint16(0),
		NeedEACount:         r.Uint16(2),
		UnpackedEASizeBytes: r.Uint32(4),
	}, nil
}

// EAEntryFlag bits found in a single $EA entry.
type EAEntryFlag byte

const (
	EAEntryFlagNeedEA EAEntryFlag = 0x80
)

// EAEntry is one packed extended-attribute: a name (ASCII, NUL-terminated on disk but reported here without the
// terminator) and an opaque value blob whose interpretation is owner-defined (NTFS imposes no further structure and
// no size limit beyond what the attribute's declared length allows).
type EAEntry struct {
	Flags EAEntryFlag
	Name  string
	Value []byte
}

// ParseEA parses the packed list of EAEntry records stored in an $EA attribute's data. Unlike most other variable
// length lists in this package, entries are merely 4-byte aligned, not of a single fixed header size, so each
// entry's NextEntryOffset drives iteration rather than a running byte count.
func ParseEA(b []byte) ([]EAEntry, error) {
	entries := make([]EAEntry, 0)

	offset := 0
	for offset < len(b) {
		remaining := b[offset:]
		if len(remaining) < 8 {
			return entries, fmt.Errorf("expected at least 8 bytes for EA entry but got %d", len(remaining))
		}
		r := binutil.NewLittleEndianReader(remaining)
		nextEntryOffset := int(r.Uint32(0))
		flags := EAEntryFlag(r.Byte(4))
		nameLength := int(r.Byte(5))
		valueLength := int(r.Uint16(6))

		nameStart := 8
		nameEnd := nameStart + nameLength
		if len(remaining) < nameEnd {
			return entries, fmt.Errorf("expected at least %d bytes for EA name but got %d", nameEnd, len(remaining))
		}
		name := string(r.Read(nameStart, nameLength))

		// The name field is followed by a single NUL byte before the value begins.
		valueStart := nameEnd + 1
		valueEnd := valueStart + valueLength
		if len(remaining) < valueEnd {
			return entries, fmt.Errorf("expected at least %d bytes for EA value but got %d", valueEnd, len(remaining))
		}
		value := binutil.Duplicate(r.Read(valueStart, valueLength))

		entries = append(entries, EAEntry{
			Flags: flags,
			Name:  name,
			Value: value,
		})

		if nextEntryOffset == 0 {
			break
		}
		offset += nextEntryOffset
	}

	return entries, nil
}
