package walker

import (
	"sync"

	"github.com/dfirkit/ntfscore/mft"
)

// cell is one pooled record slot. Cells are recycled through recordPool.free instead of left for the garbage
// collector, since a multi-million-record $MFT walk would otherwise churn one allocation per record.
type cell struct {
	record mft.Record
	// fetched marks that this FRN has already been the subject of a fetch request, so it is never re-requested
	// even if it turns out the source could not produce it (per the "never re-requested" rule).
	fetched bool
}

// recordPool is the FRN-keyed arena that replaces the cyclic base/extension/attribute-list pointer graph: records
// are stored once, keyed by their FileReference.Value(), and every cross-reference elsewhere in the walker is a
// plain FRN value resolved back through this pool on demand.
type recordPool struct {
	cells map[uint64]*cell
	free  sync.Pool
}

func newRecordPool() *recordPool {
	return &recordPool{
		cells: make(map[uint64]*cell),
		free:  sync.Pool{New: func() any { return new(cell) }},
	}
}

// Store inserts or overwrites the record keyed by its own FileReference.
func (p *recordPool) Store(rec mft.Record) *cell {
	key := rec.FileReference.Value()
	c, ok := p.cells[key]
	if !ok {
		c = p.free.Get().(*cell)
		p.cells[key] = c
	}
	c.record = rec
	return c
}

// MarkFetched records that frn has already been requested from the source, whether or not it was ever resolved.
func (p *recordPool) MarkFetched(frn mft.FileReference) {
	key := frn.Value()
	c, ok := p.cells[key]
	if !ok {
		c = p.free.Get().(*cell)
		p.cells[key] = c
	}
	c.fetched = true
}

// WasFetched reports whether frn has already been the subject of a fetch request.
func (p *recordPool) WasFetched(frn mft.FileReference) bool {
	c, ok := p.cells[frn.Value()]
	return ok && c.fetched
}

// Get returns the stored record for frn, if its FRS bytes have actually been parsed (as opposed to merely marked
// fetched).
func (p *recordPool) Get(frn mft.FileReference) (mft.Record, bool) {
	c, ok := p.cells[frn.Value()]
	if !ok || c.record.Signature == nil {
		return mft.Record{}, false
	}
	return c.record, true
}

// GetBySegment looks up a record irrespective of sequence number, used for parent/base resolution where the
// caller only knows the segment half of the reference (eg. a $FILE_NAME parent reference is itself a full FRN, so
// this is mostly a convenience for callers that deliberately want segment-only matching).
func (p *recordPool) GetBySegment(segment uint64) (mft.Record, bool) {
	for _, c := range p.cells {
		if c.record.Signature != nil && c.record.FileReference.SegmentKey() == segment {
			return c.record, true
		}
	}
	return mft.Record{}, false
}

// Delete removes frn from the pool, recycling its cell.
func (p *recordPool) Delete(frn mft.FileReference) {
	key := frn.Value()
	c, ok := p.cells[key]
	if !ok {
		return
	}
	delete(p.cells, key)
	*c = cell{}
	p.free.Put(c)
}

// Len returns the number of live (parsed or fetch-marked) entries in the pool.
func (p *recordPool) Len() int { return len(p.cells) }

// Each calls fn for every parsed record currently in the pool. fn may return false to stop iteration early. The
// key set is snapshotted first so fn is free to Delete entries as it goes.
func (p *recordPool) Each(fn func(frn mft.FileReference, rec mft.Record) bool) {
	keys := make([]uint64, 0, len(p.cells))
	for k, c := range p.cells {
		if c.record.Signature != nil {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		c, ok := p.cells[k]
		if !ok || c.record.Signature == nil {
			continue
		}
		if !fn(c.record.FileReference, c.record) {
			return
		}
	}
}
