package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// GUID is a raw, 16-byte Windows GUID, stored exactly as it appears on disk (mixed-endian per the GUID wire
// format); callers that want the canonical "xxxxxxxx-xxxx-..." string form should use String().
type GUID [16]byte

func (g GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8:10],
		g[10:16])
}

// ObjectId represents a parsed $OBJECT_ID attribute. Only ObjectId itself is mandatory; the remaining fields are
// zero when the attribute's data was shorter than the full 64-byte form (which is how Windows originally wrote the
// attribute, before birth-volume tracking was added).
type ObjectId struct {
	ObjectId      GUID
	BirthVolumeId GUID
	BirthObjectId GUID
	DomainId      GUID
}

// ParseObjectId parses bytes into an ObjectId. At least 16 bytes (the object id itself) are required; the
// birth-volume/birth-object/domain ids are only populated when the full 64-byte form is present; shorter input
// yields the object id alone.
func ParseObjectId(b []byte) (ObjectId, error) {
	if len(b) < 16 {
		return ObjectId{}, fmt.Errorf("expected at least 16 bytes but got %d", len(b))
	}

	if len(b) >= 64 {
		var full struct {
			ObjectId      [16]byte
			BirthVolumeId [16]byte
			BirthObjectId [16]byte
			DomainId      [16]byte
		}
		if err := restruct.Unpack(b[:64], binary.LittleEndian, &full); err != nil {
			return ObjectId{}, fmt.Errorf("unable to unpack $OBJECT_ID: %w", err)
		}
		return ObjectId{
			ObjectId:      GUID(full.ObjectId),
			BirthVolumeId: GUID(full.BirthVolumeId),
			BirthObjectId: GUID(full.BirthObjectId),
			DomainId:      GUID(full.DomainId),
		}, nil
	}

	var oid ObjectId
	copy(oid.ObjectId[:], b[:16])
	return oid, nil
}
