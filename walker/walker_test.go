package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/mft"
)

// fakeSource is an in-memory MftSource test double: Enumerate replays a fixed slice of records in order, and
// FetchByFRN resolves whatever the test has registered under a given segment, letting a test model an MftSource
// that can answer any fetch issued after enumeration (as a real OnlineSource/OfflineSource would).
type fakeSource struct {
	enumerate []mft.Record
	bySegment map[uint64]mft.Record
}

func (s *fakeSource) Enumerate(emit func(mft.Record) error) error {
	for _, rec := range s.enumerate {
		if err := emit(rec); err != nil {
			if err == ErrStopped {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *fakeSource) FetchByFRN(frns []mft.FileReference) ([]mft.Record, error) {
	var out []mft.Record
	for _, f := range frns {
		if rec, ok := s.bySegment[f.SegmentKey()]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeSource) RecordCount() (int64, bool) { return int64(len(s.enumerate)), len(s.enumerate) > 0 }
func (s *fakeSource) BytesPerFRS() int           { return 1024 }

// newTestWalkState builds a walkState wired to src without going through Walk's volume/source selection, so tests
// can drive the resolve/defer/sweep pipeline directly against hand-built records.
func newTestWalkState(src MftSource, cfg Config) *walkState {
	if cfg.MemoryThreshold <= 0 {
		cfg.MemoryThreshold = 50000
	}
	pool := newRecordPool()
	return &walkState{
		source:  src,
		cfg:     cfg,
		pool:    pool,
		pb:      newPathBuilder(pool, testRootSegment),
		loc:     newLocationFilter(cfg.LocationPrefixes),
		pending: make(map[uint64]mft.FileReference),
		geom:    bootsect.Geometry{RootDirectoryFRN: testRootSegment},
	}
}

// TestWalkDefersChildUntilParentResolves models scenario S4: a file record arrives whose parent directory hasn't
// been seen yet, so no callback fires for it until the parent is delivered (here, via a deferred fetch).
func TestWalkDefersChildUntilParentResolves(t *testing.T) {
	root := mft.FileReference{RecordNumber: testRootSegment, SequenceNumber: 1}
	dir := mft.FileReference{RecordNumber: 6, SequenceNumber: 1}
	kid := mft.FileReference{RecordNumber: 10, SequenceNumber: 1}

	dirRecord := recordWithName(dir, root, "DIR")
	kidRecord := recordWithName(kid, dir, "KID.BIN")

	src := &fakeSource{
		enumerate: []mft.Record{kidRecord}, // parent DIR is not enumerated, only fetchable
		bySegment: map[uint64]mft.Record{dir.RecordNumber: dirRecord},
	}

	var elements []mft.FileReference
	cfg := Config{ResolveFullPaths: true}
	cfg.Callbacks.Element = func(e ElementEvent) error {
		elements = append(elements, e.Record.FileReference)
		return nil
	}
	// A caller resolving full paths is expected to retain directories it expects children to reference later;
	// without this, report() drops DIR from the pool the moment it resolves, and KID.BIN's parent lookup (issued
	// afterward, in the same reresolveStored pass) would wrongly find it missing again.
	cfg.Callbacks.KeepAlive = func(mft.Record) bool { return true }

	st := newTestWalkState(src, cfg)

	require.NoError(t, src.Enumerate(func(rec mft.Record) error { return st.ingest(rec) }))
	assert.Empty(t, elements, "no element should be reported before its parent directory resolves")

	require.NoError(t, st.resolvePending())
	require.Len(t, elements, 2)
	assert.Contains(t, elements, dir)
	assert.Contains(t, elements, kid)
}

// TestWalkReportsFullPathOnceParentKnown exercises path assembly end-to-end through report(), confirming the
// FileName callback receives the fully rebuilt path once the parent chain resolves.
func TestWalkReportsFullPathOnceParentKnown(t *testing.T) {
	root := mft.FileReference{RecordNumber: testRootSegment, SequenceNumber: 1}
	dir := mft.FileReference{RecordNumber: 6, SequenceNumber: 1}
	kid := mft.FileReference{RecordNumber: 10, SequenceNumber: 1}

	dirRecord := recordWithName(dir, root, "DIR")
	kidRecord := recordWithName(kid, dir, "KID.BIN")

	src := &fakeSource{
		enumerate: []mft.Record{dirRecord, kidRecord},
		bySegment: map[uint64]mft.Record{},
	}

	var paths []string
	cfg := Config{ResolveFullPaths: true}
	cfg.Callbacks.FileName = func(e FileNameEvent) error {
		paths = append(paths, string(e.Path))
		return nil
	}
	cfg.Callbacks.KeepAlive = func(mft.Record) bool { return true }

	st := newTestWalkState(src, cfg)

	require.NoError(t, src.Enumerate(func(rec mft.Record) error { return st.ingest(rec) }))
	require.NoError(t, st.resolvePending())

	assert.Contains(t, paths, `\DIR`)
	assert.Contains(t, paths, `\DIR\KID.BIN`)
}

// TestWalkFinalSweepReportsOrphanedRemainder exercises the end-of-walk sweep: a record whose parent never showed
// up (not enumerated, not fetchable) is still reported at the end, marked incomplete rather than silently dropped.
func TestWalkFinalSweepReportsOrphanedRemainder(t *testing.T) {
	missingParent := mft.FileReference{RecordNumber: 6, SequenceNumber: 1}
	kid := mft.FileReference{RecordNumber: 10, SequenceNumber: 1}
	kidRecord := recordWithName(kid, missingParent, "KID.BIN")

	src := &fakeSource{enumerate: []mft.Record{kidRecord}, bySegment: map[uint64]mft.Record{}}

	var reasons []IncompleteReason
	cfg := Config{ResolveFullPaths: true}
	cfg.Callbacks.Element = func(e ElementEvent) error {
		reasons = append(reasons, e.Incomplete)
		return nil
	}

	st := newTestWalkState(src, cfg)

	require.NoError(t, src.Enumerate(func(rec mft.Record) error { return st.ingest(rec) }))
	require.NoError(t, st.resolvePending())
	assert.Empty(t, reasons, "the record must still be pending, not yet reported")

	st.finalSweep()
	require.Len(t, reasons, 1)
	assert.Equal(t, ReasonMissingParent, reasons[0])
}

// TestWalkExtensionRecordNeverReportedDirectly confirms extension records only ever satisfy another record's
// base-record dependency and never themselves generate an Element callback.
func TestWalkExtensionRecordNeverReportedDirectly(t *testing.T) {
	root := mft.FileReference{RecordNumber: testRootSegment, SequenceNumber: 1}
	base := mft.FileReference{RecordNumber: 10, SequenceNumber: 1}
	ext := mft.FileReference{RecordNumber: 11, SequenceNumber: 1}

	baseRecord := recordWithName(base, root, "FILE.BIN")
	extRecord := testRecord(ext.RecordNumber, ext.SequenceNumber)
	extRecord.BaseRecordReference = base

	src := &fakeSource{enumerate: []mft.Record{extRecord, baseRecord}}

	var reported []mft.FileReference
	cfg := Config{ResolveFullPaths: true}
	cfg.Callbacks.Element = func(e ElementEvent) error {
		reported = append(reported, e.Record.FileReference)
		return nil
	}

	st := newTestWalkState(src, cfg)

	require.NoError(t, src.Enumerate(func(rec mft.Record) error { return st.ingest(rec) }))
	require.NoError(t, st.resolvePending())
	st.finalSweep()

	require.Len(t, reported, 1)
	assert.Equal(t, base, reported[0])
}
