package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/dfirkit/ntfscore/mft"
)

func testRecord(segment uint64, sequence uint16) mft.Record {
	return mft.Record{
		Signature:     []byte("FILE"),
		FileReference: mft.FileReference{RecordNumber: segment, SequenceNumber: sequence},
		Flags:         mft.RecordFlagInUse,
	}
}

func TestRecordPoolStoreAndGet(t *testing.T) {
	p := newRecordPool()
	rec := testRecord(5, 1)
	p.Store(rec)

	got, ok := p.Get(rec.FileReference)
	assert.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = p.Get(mft.FileReference{RecordNumber: 6, SequenceNumber: 1})
	assert.False(t, ok)
}

func TestRecordPoolMarkFetchedDoesNotCountAsStored(t *testing.T) {
	p := newRecordPool()
	frn := mft.FileReference{RecordNumber: 9, SequenceNumber: 1}

	assert.False(t, p.WasFetched(frn))
	p.MarkFetched(frn)
	assert.True(t, p.WasFetched(frn))

	_, ok := p.Get(frn)
	assert.False(t, ok, "marking fetched without ever storing the parsed record should not make Get succeed")
}

func TestRecordPoolDeleteRecyclesCell(t *testing.T) {
	p := newRecordPool()
	rec := testRecord(1, 1)
	p.Store(rec)
	assert.Equal(t, 1, p.Len())

	p.Delete(rec.FileReference)
	assert.Equal(t, 0, p.Len())
	_, ok := p.Get(rec.FileReference)
	assert.False(t, ok)
}

func TestRecordPoolGetBySegment(t *testing.T) {
	p := newRecordPool()
	rec := testRecord(42, 7)
	p.Store(rec)

	got, ok := p.GetBySegment(42)
	assert.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = p.GetBySegment(43)
	assert.False(t, ok)
}

func TestRecordPoolEachSkipsFetchOnlyCells(t *testing.T) {
	p := newRecordPool()
	stored := testRecord(1, 1)
	p.Store(stored)
	p.MarkFetched(mft.FileReference{RecordNumber: 2, SequenceNumber: 1})

	var seen []uint64
	p.Each(func(frn mft.FileReference, rec mft.Record) bool {
		seen = append(seen, frn.SegmentKey())
		return true
	})

	assert.Equal(t, []uint64{1}, seen)
}

func TestRecordPoolEachAllowsDeleteDuringIteration(t *testing.T) {
	p := newRecordPool()
	p.Store(testRecord(1, 1))
	p.Store(testRecord(2, 1))
	p.Store(testRecord(3, 1))

	var visited int
	p.Each(func(frn mft.FileReference, rec mft.Record) bool {
		visited++
		p.Delete(frn)
		return true
	})

	assert.Equal(t, 3, visited)
	assert.Equal(t, 0, p.Len())
}
