package walker

import (
	"encoding/binary"

	"github.com/dfirkit/ntfscore/mft"
)

// asciiUTF16LE encodes an ASCII-only string as UTF-16LE, sufficient for the names these tests exercise.
func asciiUTF16LE(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

// buildFileNameData renders a minimal, valid on-disk $FILE_NAME attribute payload (parent reference plus a name,
// every timestamp/size field left zero) for tests that need a real mft.FileName without a captured disk image.
func buildFileNameData(parent mft.FileReference, name string) []byte {
	nameUTF16 := asciiUTF16LE(name)
	b := make([]byte, 0x42+len(nameUTF16))

	binary.LittleEndian.PutUint32(b[0x00:], uint32(parent.RecordNumber))
	binary.LittleEndian.PutUint16(b[0x04:], uint16(parent.RecordNumber>>32))
	binary.LittleEndian.PutUint16(b[0x06:], parent.SequenceNumber)
	b[0x40] = byte(len(name))
	b[0x41] = 1 // Win32 namespace
	copy(b[0x42:], nameUTF16)
	return b
}

func fileNameAttr(parent mft.FileReference, name string) mft.Attribute {
	return mft.Attribute{Type: mft.AttributeTypeFileName, Resident: true, Data: buildFileNameData(parent, name)}
}

func recordWithName(self mft.FileReference, parent mft.FileReference, name string) mft.Record {
	rec := testRecord(self.RecordNumber, self.SequenceNumber)
	rec.Attributes = []mft.Attribute{fileNameAttr(parent, name)}
	return rec
}
