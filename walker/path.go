package walker

import (
	"github.com/dfirkit/ntfscore/mft"
)

// pathBuilder assembles a record's full path by climbing $FILE_NAME parent references through pool, reusing one
// []byte buffer across calls the way the specification's "Full-path builder" requires: the returned slice is only
// valid until the next Build call, and callers that need to retain it must copy it themselves.
type pathBuilder struct {
	pool        *recordPool
	rootSegment uint64
	buf         []byte
	segments    [][]byte
}

func newPathBuilder(pool *recordPool, rootSegment uint64) *pathBuilder {
	return &pathBuilder{pool: pool, rootSegment: rootSegment, buf: make([]byte, 0, 260)}
}

// Build renders the full path for fn, climbing parent references to the root. It returns the rendered path and
// whether the chain was fully resolved (false if any ancestor was missing, in which case the unresolved segment is
// replaced by a "__<16-hex-of-missing-FRN>__" placeholder, per the specification).
func (b *pathBuilder) Build(fn mft.FileName) ([]byte, bool) {
	b.segments = b.segments[:0]
	orphaned := false

	name := []byte(fn.Name)
	segment := append([]byte(nil), name...)
	b.segments = append(b.segments, segment)

	parent := fn.ParentFileReference
	visited := make(map[uint64]bool)
	for parent.SegmentKey() != b.rootSegment {
		if visited[parent.Value()] {
			orphaned = true
			break
		}
		visited[parent.Value()] = true

		rec, ok := b.pool.Get(parent)
		if !ok {
			b.segments = append(b.segments, placeholderSegment(parent))
			orphaned = true
			break
		}

		parentName, ok := mft.PrimaryFileName(parsedFileNames(rec))
		if !ok {
			b.segments = append(b.segments, placeholderSegment(parent))
			orphaned = true
			break
		}
		b.segments = append(b.segments, []byte(parentName.Name))
		parent = parentName.ParentFileReference
	}

	b.buf = b.buf[:0]
	b.buf = append(b.buf, '\\')
	for i := len(b.segments) - 1; i >= 0; i-- {
		b.buf = append(b.buf, b.segments[i]...)
		if i > 0 {
			b.buf = append(b.buf, '\\')
		}
	}
	return b.buf, !orphaned
}

// BuildStream is Build followed by appending ":<streamName>" when streamName is non-empty, for the full path of a
// named $DATA attribute (an alternate data stream).
func (b *pathBuilder) BuildStream(fn mft.FileName, streamName string) ([]byte, bool) {
	path, complete := b.Build(fn)
	if streamName == "" {
		return path, complete
	}
	b.buf = append(path, ':')
	b.buf = append(b.buf, streamName...)
	return b.buf, complete
}

func placeholderSegment(frn mft.FileReference) []byte {
	const hexDigits = "0123456789abcdef"
	seg := make([]byte, 0, 20)
	seg = append(seg, '_', '_')
	v := frn.Value()
	for i := 15; i >= 0; i-- {
		seg = append(seg, hexDigits[(v>>(uint(i)*4))&0xF])
	}
	seg = append(seg, '_', '_')
	return seg
}
