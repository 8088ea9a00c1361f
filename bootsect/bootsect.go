/*
	Package bootsect provides functions to parse the boot sector (also sometimes called Volume Boot Record, VBR, or
	$Boot file) of a volume. Its primary job is parsing the NTFS boot sector into a BootSector and deriving the
	filesystem Geometry from it; it also recognizes (but does not parse the payload of) the boot sectors of the
	FAT family, ReFS, and BitLocker-encrypted volumes so that callers can reject or special-case those up front.
*/
package bootsect

import (
	"fmt"

	"github.com/dfirkit/ntfscore/binutil"
)

// Kind identifies the filesystem (or encryption wrapper) a boot sector was recognized as.
type Kind int

// Recognized Kind values. KindUnknown is returned when none of the known signatures match.
const (
	KindUnknown Kind = iota
	KindNTFS
	KindFAT12
	KindFAT16
	KindFAT32
	KindReFS
	KindBitLocker
)

func (k Kind) String() string {
	switch k {
	case KindNTFS:
		return "NTFS"
	case KindFAT12:
		return "FAT12"
	case KindFAT16:
		return "FAT16"
	case KindFAT32:
		return "FAT32"
	case KindReFS:
		return "ReFS"
	case KindBitLocker:
		return "BitLocker"
	}
	return "unknown"
}

var (
	ntfsOemId      = "NTFS    "
	refsSignature  = []byte{0x52, 0x65, 0x46, 0x53} // "ReFS"
	bitlockerSig   = []byte("-FVE-FS-")
	fat32SystemId  = "FAT32   "
	acceptedSPC    = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true, 128: true}
)

// DetectKind inspects the first 512 bytes of a volume (the conventional boot sector location) and returns which
// filesystem (or wrapper) produced it, based purely on signature bytes. It does not validate the rest of the
// structure; callers that want a fully parsed and validated NTFS boot sector should call Parse.
func DetectKind(data []byte) (Kind, error) {
	if len(data) < 512 {
		return KindUnknown, fmt.Errorf("boot sector data should be at least 512 bytes but is %d", len(data))
	}
	r := binutil.NewLittleEndianReader(data)

	oemId := string(r.Read(0x03, 8))
	if oemId == ntfsOemId {
		return KindNTFS, nil
	}

	if bytesEqual(r.Read(0, 8), bitlockerSig) {
		return KindBitLocker, nil
	}

	if bytesEqual(r.Read(0x03, 4), refsSignature) {
		return KindReFS, nil
	}

	// FAT family is distinguished by the system-id string; FAT12/16 carry it at 0x36, FAT32 at 0x52.
	if string(r.Read(0x52, 8)) == fat32SystemId {
		return KindFAT32, nil
	}
	systemId := string(r.Read(0x36, 8))
	switch {
	case systemId[:5] == "FAT12":
		return KindFAT12, nil
	case systemId[:5] == "FAT16":
		return KindFAT16, nil
	}

	return KindUnknown, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BootSector represents the parsed data of an NTFS boot sector. The OemId should typically be "NTFS    " ("NTFS"
// followed by 4 trailing spaces) for a valid NTFS boot sector.
type BootSector struct {
	OemId                        string
	BytesPerSector               int
	SectorsPerCluster            int
	MediaDescriptor              byte
	SectorsPerTrack              int
	NumberofHeads                int
	HiddenSectors                int
	TotalSectors                 uint64
	MftClusterNumber             uint64
	MftMirrorClusterNumber       uint64
	FileRecordSegmentSizeInBytes int
	IndexBufferSizeInBytes       int
	VolumeSerialNumber           []byte
}

// Parse parses the data of an NTFS boot sector into a BootSector structure. It enforces the invariants from the
// specification: SectorsPerCluster must be one of {1,2,4,8,16,32,64,128}, the BPB fields that must be zero for NTFS
// must in fact be zero, and the resulting FileRecordSegmentSizeInBytes must be a positive multiple of 1024.
func Parse(data []byte) (BootSector, error) {
	if len(data) < 80 {
		return BootSector{}, fmt.Errorf("boot sector data should be at least 80 bytes but is %d", len(data))
	}
	r := binutil.NewLittleEndianReader(data)

	oemId := string(r.Read(0x03, 8))
	if oemId != ntfsOemId {
		return BootSector{}, fmt.Errorf("unsupported OemId %q (expected %q)", oemId, ntfsOemId)
	}

	if err := checkReservedZero(r); err != nil {
		return BootSector{}, err
	}

	bytesPerSector := int(r.Uint16(0x0B))
	sectorsPerCluster := int(int8(r.Byte(0x0D)))
	if sectorsPerCluster < 0 {
		// Quoth Wikipedia: The number of sectors in a cluster. If the value is negative, the amount of sectors is 2
		// to the power of the absolute value of this field.
		sectorsPerCluster = 1 << -sectorsPerCluster
	}
	if !acceptedSPC[sectorsPerCluster] {
		return BootSector{}, fmt.Errorf("unsupported SectorsPerCluster value %d", sectorsPerCluster)
	}
	bytesPerCluster := bytesPerSector * sectorsPerCluster

	frsSize := bytesOrClustersToBytes(r.Byte(0x40), bytesPerCluster)
	if frsSize <= 0 || frsSize%1024 != 0 {
		return BootSector{}, fmt.Errorf("file record segment size %d is not a positive multiple of 1024", frsSize)
	}

	return BootSector{
		OemId:                        oemId,
		BytesPerSector:               bytesPerSector,
		SectorsPerCluster:            sectorsPerCluster,
		MediaDescriptor:              r.Byte(0x15),
		SectorsPerTrack:              int(r.Uint16(0x18)),
		NumberofHeads:                int(r.Uint16(0x1A)),
		HiddenSectors:                int(r.Uint16(0x1C)),
		TotalSectors:                 r.Uint64(0x28),
		MftClusterNumber:             r.Uint64(0x30),
		MftMirrorClusterNumber:       r.Uint64(0x38),
		FileRecordSegmentSizeInBytes: frsSize,
		IndexBufferSizeInBytes:       bytesOrClustersToBytes(r.Byte(0x44), bytesPerCluster),
		VolumeSerialNumber:           binutil.Duplicate(r.Read(0x48, 8)),
	}, nil
}

// checkReservedZero verifies that the legacy FAT-BPB fields that NTFS always zeroes out actually are zero: reserved
// sector count (0x0E), number of FATs (0x10), root entry count (0x11), 16-bit total sectors (0x13), and sectors per
// FAT (0x16). A volume that has any of these set is not a well-formed NTFS boot sector.
func checkReservedZero(r *binutil.BinReader) error {
	if r.Uint16(0x0E) != 0 {
		return fmt.Errorf("reserved sectors field is non-zero")
	}
	if r.Byte(0x10) != 0 {
		return fmt.Errorf("number of FATs field is non-zero")
	}
	if r.Uint16(0x11) != 0 {
		return fmt.Errorf("root entry count field is non-zero")
	}
	if r.Uint16(0x13) != 0 {
		return fmt.Errorf("16-bit total sectors field is non-zero")
	}
	if r.Uint16(0x16) != 0 {
		return fmt.Errorf("sectors per FAT field is non-zero")
	}
	return nil
}

func bytesOrClustersToBytes(b byte, bytesPerCluster int) int {
	// From Wikipedia:
	// A positive value denotes the number of clusters in a File Record Segment. A negative value denotes the amount of
	// bytes in a File Record Segment, in which case the size is 2 to the power of the absolute value.
	// (0xF6 = -10 → 2^10 = 1024).
	i := int(int8(b))
	if i < 0 {
		return 1 << -i
	}
	return i * bytesPerCluster
}

// Conventional MFT record numbers of well-known system files; these are NTFS constants, not stored in the boot
// sector itself.
const (
	RootDirectoryRecordNumber = 5
	SecureRecordNumber        = 9
)

// Geometry is the immutable volume geometry derived once from a parsed BootSector, per the specification's data
// model. It is the shared currency between the bootsect, volume, mft, and walker packages.
type Geometry struct {
	BytesPerSector     int
	BytesPerCluster    int
	BytesPerFRS        int
	TotalSectors       uint64
	SerialNumber       []byte
	Kind               Kind
	MftStartCluster    uint64
	MftMirrorCluster   uint64
	RootDirectoryFRN   uint64
	SecureFRN          uint64
}

// GeometryFrom derives a Geometry from a parsed NTFS BootSector.
func GeometryFrom(b BootSector) Geometry {
	return Geometry{
		BytesPerSector:   b.BytesPerSector,
		BytesPerCluster:  b.BytesPerSector * b.SectorsPerCluster,
		BytesPerFRS:      b.FileRecordSegmentSizeInBytes,
		TotalSectors:     b.TotalSectors,
		SerialNumber:     b.VolumeSerialNumber,
		Kind:             KindNTFS,
		MftStartCluster:  b.MftClusterNumber,
		MftMirrorCluster: b.MftMirrorClusterNumber,
		RootDirectoryFRN: RootDirectoryRecordNumber,
		SecureFRN:        SecureRecordNumber,
	}
}
