package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"

	"github.com/dfirkit/ntfscore/binutil"
)

// ReparseTag is the IO_REPARSE_TAG_* value stored in the first 4 bytes of a $REPARSE_POINT attribute's data.
type ReparseTag uint32

// Well-known reparse tags this engine classifies. Other tags are reported as ReparseKindGeneric.
const (
	ReparseTagMountPoint    ReparseTag = 0xA0000003
	ReparseTagSymlink       ReparseTag = 0xA000000C
	ReparseTagWof           ReparseTag = 0x80000017
	ReparseTagWofCompressed ReparseTag = 0x80000017 // alias kept for readability at call sites
)

// ReparseKind is the classification of a reparse point's purpose, independent of the raw tag value.
type ReparseKind int

const (
	ReparseKindGeneric ReparseKind = iota
	ReparseKindMountPoint
	ReparseKindSymlink
	ReparseKindWofCompressed
)

func (k ReparseKind) String() string {
	switch k {
	case ReparseKindMountPoint:
		return "mount-point"
	case ReparseKindSymlink:
		return "symlink"
	case ReparseKindWofCompressed:
		return "wof-compressed"
	}
	return "generic"
}

// ClassifyReparseTag maps a raw ReparseTag to a ReparseKind.
func ClassifyReparseTag(tag ReparseTag) ReparseKind {
	switch tag {
	case ReparseTagMountPoint:
		return ReparseKindMountPoint
	case ReparseTagSymlink:
		return ReparseKindSymlink
	case ReparseTagWof:
		return ReparseKindWofCompressed
	}
	return ReparseKindGeneric
}

// ReparsePoint is a parsed $REPARSE_POINT attribute header; the tag-specific payload (symlink target, WOF
// algorithm, ...) is available as Data for further parsing by ParseWofReparseData / ParseSymlinkReparseData.
type ReparsePoint struct {
	Tag        ReparseTag
	Kind       ReparseKind
	DataLength uint16
	Data       []byte
}

// ParseReparsePoint parses the common reparse-point header (tag, data length, a reserved field) and returns the
// tag-specific payload as Data.
func ParseReparsePoint(b []byte) (ReparsePoint, error) {
	if len(b) < 8 {
		return ReparsePoint{}, fmt.Errorf("expected at least 8 bytes but got %d", len(b))
	}
	r := binutil.NewLittleEndianReader(b)
	tag := ReparseTag(r.Uint32(0))
	dataLength := r.Uint16(4)
	expected := 8 + int(dataLength)
	if len(b) < expected {
		return ReparsePoint{}, fmt.Errorf("expected at least %d bytes but got %d", expected, len(b))
	}
	return ReparsePoint{
		Tag:        tag,
		Kind:       ClassifyReparseTag(tag),
		DataLength: dataLength,
		Data:       binutil.Duplicate(r.Read(8, int(dataLength))),
	}, nil
}

// WofAlgorithm identifies the compression algorithm a WOF (Windows Overlay Filter) reparse point records.
type WofAlgorithm uint32

const (
	WofAlgorithmXpress4K  WofAlgorithm = 0
	WofAlgorithmLZX       WofAlgorithm = 1
	WofAlgorithmXpress8K  WofAlgorithm = 2
	WofAlgorithmXpress16K WofAlgorithm = 3
)

func (a WofAlgorithm) String() string {
	switch a {
	case WofAlgorithmXpress4K:
		return "XPRESS4K"
	case WofAlgorithmLZX:
		return "LZX"
	case WofAlgorithmXpress8K:
		return "XPRESS8K"
	case WofAlgorithmXpress16K:
		return "XPRESS16K"
	}
	return "unknown"
}

// wofReparseData mirrors the fixed-layout portion of a WOF reparse point's payload (provider + version + the
// file-provider-specific algorithm field); decoded declaratively since, unlike the record/attribute header hot
// path, this is a small one-shot structure with no surrounding variable-length data to juggle.
type wofReparseData struct {
	Version   uint32
	Provider  uint32
	Version2  uint32
	Algorithm uint32
	Flags     uint32
}

// ParseWofReparseData parses the payload of a WOF-tagged $REPARSE_POINT (ReparseKindWofCompressed) and returns the
// compression algorithm it names. The algorithm is returned even when it is LZX (which this engine's compress
// package does not implement); the caller decides whether to attempt decompression.
func ParseWofReparseData(b []byte) (WofAlgorithm, error) {
	if len(b) < 20 {
		return 0, fmt.Errorf("expected at least 20 bytes of WOF reparse data but got %d", len(b))
	}
	var data wofReparseData
	if err := restruct.Unpack(b[:20], binary.LittleEndian, &data); err != nil {
		return 0, fmt.Errorf("unable to unpack WOF reparse data: %w", err)
	}
	algo := WofAlgorithm(data.Algorithm)
	switch algo {
	case WofAlgorithmXpress4K, WofAlgorithmXpress8K, WofAlgorithmXpress16K, WofAlgorithmLZX:
		return algo, nil
	}
	return algo, fmt.Errorf("unrecognized WOF algorithm %d", data.Algorithm)
}
