package find

import (
	"time"

	"github.com/dfirkit/ntfscore/hashing"
	"github.com/dfirkit/ntfscore/mft"
)

// MatchedName is one $FILE_NAME that contributed to a Match, carrying its rebuilt full path (§3.8).
type MatchedName struct {
	Name mft.FileName
	Path string
}

// MatchedAttribute is one attribute that contributed to a Match, carrying its computed hashes if any were
// requested (§3.8 "list of matching attributes").
type MatchedAttribute struct {
	Attribute mft.Attribute
	Hashes    map[hashing.Algorithm]string
}

// Match binds one compiled Term to one resolved record (§3.8).
type Match struct {
	Term          Term
	FileReference mft.FileReference
	Deleted       bool
	Creation         time.Time
	FileLastModified time.Time
	LastAccess       time.Time
	Names      []MatchedName
	Attributes []MatchedAttribute
}
