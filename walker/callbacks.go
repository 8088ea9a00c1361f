package walker

import (
	"github.com/dfirkit/ntfscore/mft"
)

// ElementEvent is delivered once per resolved record, regardless of its file/directory status, mirroring §4.5's
// "element" callback.
type ElementEvent struct {
	Record     mft.Record
	Incomplete IncompleteReason
}

// FileNameEvent is delivered once per $FILE_NAME of a resolved record, carrying the rebuilt full path. Path is
// only valid until the next walker callback fires; callers that need to retain it must copy it.
type FileNameEvent struct {
	Record   mft.Record
	Name     mft.FileName
	Path     []byte
	Orphaned bool
}

// AttributeEvent is delivered once per attribute of a resolved record.
type AttributeEvent struct {
	Record    mft.Record
	Attribute mft.Attribute
}

// DataEvent is delivered once per $DATA attribute (default or named) of a resolved record.
type DataEvent struct {
	Record     mft.Record
	Attribute  mft.Attribute
	StreamName string
}

// FileNameAndDataEvent pairs a name and one of its record's data streams, with the combined "name:stream" path
// already rendered.
type FileNameAndDataEvent struct {
	Record    mft.Record
	Name      mft.FileName
	Attribute mft.Attribute
	Path      []byte
	Orphaned  bool
}

// DirectoryEvent is delivered once per resolved directory record (IsDirectory() true).
type DirectoryEvent struct {
	Record mft.Record
	Path   []byte
}

// I30Event is delivered once per $I30 entry (live or carved) when ParseI30 is enabled.
type I30Event struct {
	DirectoryFRN mft.FileReference
	Entry        mft.IndexEntry
	Carved       bool
}

// SecurityDescriptorEvent is delivered once per $Secure $SDS entry when the $Secure side walk runs.
type SecurityDescriptorEvent struct {
	Id         uint32
	Hash       uint32
	Offset     uint64
	Length     uint32
	Descriptor []byte
}

// Callbacks is the set of optional hooks a caller can subscribe to, matching §4.5. A nil field means "not
// subscribed"; any non-nil callback may return ErrStopped to end the walk cleanly.
type Callbacks struct {
	Element            func(ElementEvent) error
	FileName           func(FileNameEvent) error
	Attribute          func(AttributeEvent) error
	Data               func(DataEvent) error
	FileNameAndData    func(FileNameAndDataEvent) error
	Directory          func(DirectoryEvent) error
	I30                func(I30Event) error
	SecurityDescriptor func(SecurityDescriptorEvent) error
	// KeepAlive is consulted after a record's other callbacks fire; returning true keeps the record in the pool
	// instead of dropping it (eg. because the caller expects it to still be referenced as a parent/base later).
	KeepAlive func(mft.Record) bool
	// Progress is invoked at most once every ProgressEvery (see Config), reporting records processed so far.
	Progress func(recordsProcessed int64)
}
