package walker

import (
	"errors"
	"time"

	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/mft"
	"github.com/dfirkit/ntfscore/volume"
)

// ErrStopped is the sentinel a Callbacks func returns to end a walk cleanly: Walk treats it as a successful
// termination, never as a top-level error (§7 "StoppedByUser").
var ErrStopped = errors.New("walker: stopped by caller")

// Config carries every option Walk recognizes.
type Config struct {
	// IncludeUnallocated reports records whose in-use flag is clear (recovers deleted entries). Default false.
	IncludeUnallocated bool
	// ParseI30 enables the $I30 side walk (live + carved entries) for directory records. Default false.
	ParseI30 bool
	// ResolveFullPaths requires every parent directory in a record's $FILE_NAME chain to be resolved before the
	// record is reported, substituting a placeholder only for chains the source genuinely cannot resolve by
	// end-of-walk. Default true.
	ResolveFullPaths bool
	// CompressionPolicy governs OpenStream's handling of compressed $DATA attributes. Default CompressionBestEffort.
	CompressionPolicy CompressionPolicy
	// LocationPrefixes restricts reporting to records whose rebuilt path has one of these prefixes. Empty means
	// everything is in scope.
	LocationPrefixes []string
	// MemoryThreshold is the number of incomplete cells above which Walk performs an incremental sweep. Default
	// 50000.
	MemoryThreshold int
	// ProgressEvery throttles how often Callbacks.Progress fires; zero disables throttling (fires on every
	// record).
	ProgressEvery time.Duration
	// Callbacks is the set of hooks invoked as records resolve.
	Callbacks Callbacks
}

// DefaultConfig returns a Config with every default value spec.md §6.2 names.
func DefaultConfig() Config {
	return Config{
		ResolveFullPaths:  true,
		CompressionPolicy: CompressionBestEffort,
		MemoryThreshold:   50000,
	}
}

// Stats summarizes one Walk invocation.
type Stats struct {
	CompleteRecords   int64
	IncompleteRecords int64
	DroppedRecords    int64
	BytesRead         int64
}

// walkState holds everything Walk's helper methods need, avoiding a long parameter list threaded through every
// function.
type walkState struct {
	vol     volume.Reader
	geom    bootsect.Geometry
	source  MftSource
	cfg     Config
	pool    *recordPool
	pb      *pathBuilder
	loc     *locationFilter
	pending map[uint64]mft.FileReference
	stats   Stats

	lastProgress time.Time
}

// Walk drives an MftSource over vol (chosen automatically: a volume.Reader opened with volume.OpenOnline carries
// its own boot sector and is walked via OnlineSource; one opened with volume.OpenOffline is walked via
// OfflineSource), resolving the record graph and invoking cfg.Callbacks as records complete.
func Walk(vol volume.Reader, cfg Config) (Stats, error) {
	geom := vol.Geometry()

	var source MftSource
	if vol.BootSectorBytes() != nil {
		online, err := NewOnlineSource(vol)
		if err != nil {
			return Stats{}, err
		}
		source = online
	} else {
		source = NewOfflineSource(vol)
	}

	threshold := cfg.MemoryThreshold
	if threshold <= 0 {
		threshold = 50000
	}

	cfg.MemoryThreshold = threshold
	pool := newRecordPool()
	st := &walkState{
		vol:     vol,
		geom:    geom,
		source:  source,
		cfg:     cfg,
		pool:    pool,
		pb:      newPathBuilder(pool, geom.RootDirectoryFRN),
		loc:     newLocationFilter(cfg.LocationPrefixes),
		pending: make(map[uint64]mft.FileReference),
	}

	stopped := false
	err := source.Enumerate(func(rec mft.Record) error {
		err := st.ingest(rec)
		if err == ErrStopped {
			stopped = true
		}
		return err
	})
	if err != nil || stopped {
		return st.stats, err
	}

	if err := st.resolvePending(); err != nil {
		if err == ErrStopped {
			return st.stats, nil
		}
		return st.stats, err
	}

	st.finalSweep()

	if cfg.Callbacks.SecurityDescriptor != nil {
		if err := st.walkSecureFile(); err != nil && err != ErrStopped {
			return st.stats, err
		}
	}

	return st.stats, nil
}

// ingest is the per-record entry point used both by the initial enumeration and (indirectly, via resolvePending)
// by records obtained through fetch-by-FRN.
func (st *walkState) ingest(rec mft.Record) error {
	if !st.cfg.IncludeUnallocated && !rec.Flags.Is(mft.RecordFlagInUse) {
		st.stats.DroppedRecords++
		return nil
	}
	st.stats.BytesRead += int64(rec.ActualSize)

	if isExtensionRecord(rec) {
		// Extension records are never reported directly; they only satisfy other records' base-record
		// dependency. Storing it here lets any already-pending base lookups resolve on the next sweep.
		st.pool.Store(rec)
	} else if err := st.resolveOrDefer(rec); err != nil {
		return err
	}

	if err := st.maybeProgress(); err != nil {
		return err
	}
	if st.pool.Len() > st.cfg.MemoryThreshold {
		if err := st.incrementalSweep(); err != nil {
			return err
		}
	}
	return nil
}

// resolveOrDefer reports rec immediately if it has no missing dependencies, or stores it in the pool and queues
// its missing dependencies for a batched fetch otherwise.
func (st *walkState) resolveOrDefer(rec mft.Record) error {
	missing, _ := missingDependencies(rec, st.pool, st.cfg.ResolveFullPaths, st.geom.RootDirectoryFRN)
	if len(missing) == 0 {
		st.stats.CompleteRecords++
		return st.report(rec, ReasonComplete)
	}

	st.pool.Store(rec)
	for _, m := range missing {
		if !st.pool.WasFetched(m) {
			st.pending[m.Value()] = m
		}
	}
	return nil
}

// resolvePending drains st.pending, fetching batches from the source and re-checking every stored record's
// dependencies after each batch, until nothing more can be resolved this way.
func (st *walkState) resolvePending() error {
	for len(st.pending) > 0 {
		batch := make([]mft.FileReference, 0, len(st.pending))
		for _, f := range st.pending {
			batch = append(batch, f)
		}
		for _, f := range batch {
			st.pool.MarkFetched(f)
			delete(st.pending, f.Value())
		}

		fetched, err := st.source.FetchByFRN(batch)
		if err != nil {
			return err
		}
		for _, rec := range fetched {
			st.pool.Store(rec)
		}

		if err := st.reresolveStored(); err != nil {
			return err
		}
	}
	return nil
}

// reresolveStored re-runs the completeness test over every non-extension record currently sitting in the pool,
// reporting (and dropping) any that now resolve, and queuing any newly-discovered missing dependency.
func (st *walkState) reresolveStored() error {
	type candidate struct {
		frn mft.FileReference
		rec mft.Record
	}
	var candidates []candidate
	st.pool.Each(func(frn mft.FileReference, rec mft.Record) bool {
		if !isExtensionRecord(rec) {
			candidates = append(candidates, candidate{frn, rec})
		}
		return true
	})

	for _, c := range candidates {
		if _, ok := st.pool.Get(c.frn); !ok {
			continue // already resolved and dropped earlier in this same pass
		}
		if err := st.resolveOrDefer(c.rec); err != nil {
			return err
		}
	}
	return nil
}

// incrementalSweep implements the "memory control" policy: records that can be partially reported (name and path
// known even though some dependency is still missing) are emitted and dropped; everything else is retained.
func (st *walkState) incrementalSweep() error {
	type candidate struct {
		frn mft.FileReference
		rec mft.Record
	}
	var candidates []candidate
	st.pool.Each(func(frn mft.FileReference, rec mft.Record) bool {
		if !isExtensionRecord(rec) && len(parsedFileNames(rec)) > 0 {
			candidates = append(candidates, candidate{frn, rec})
		}
		return true
	})

	for _, c := range candidates {
		if _, ok := st.pool.Get(c.frn); !ok {
			continue
		}
		_, reason := missingDependencies(c.rec, st.pool, st.cfg.ResolveFullPaths, st.geom.RootDirectoryFRN)
		st.stats.IncompleteRecords++
		if err := st.report(c.rec, reason); err != nil {
			return err
		}
		st.pool.Delete(c.frn)
	}
	return nil
}

// finalSweep reports every record still left in the pool at end-of-enumeration, annotated with its incompleteness
// reason for diagnostics, matching the spec's "final sweep" rule.
func (st *walkState) finalSweep() {
	type candidate struct {
		frn mft.FileReference
		rec mft.Record
	}
	var candidates []candidate
	st.pool.Each(func(frn mft.FileReference, rec mft.Record) bool {
		if !isExtensionRecord(rec) {
			candidates = append(candidates, candidate{frn, rec})
		}
		return true
	})

	for _, c := range candidates {
		_, reason := missingDependencies(c.rec, st.pool, st.cfg.ResolveFullPaths, st.geom.RootDirectoryFRN)
		st.stats.IncompleteRecords++
		_ = st.report(c.rec, reason) // end-of-walk best effort: ErrStopped can no longer meaningfully stop anything
		st.pool.Delete(c.frn)
	}
}

// maybeProgress invokes Callbacks.Progress, throttled by cfg.ProgressEvery.
func (st *walkState) maybeProgress() error {
	if st.cfg.Callbacks.Progress == nil {
		return nil
	}
	now := time.Now()
	if st.cfg.ProgressEvery > 0 && !st.lastProgress.IsZero() && now.Sub(st.lastProgress) < st.cfg.ProgressEvery {
		return nil
	}
	st.lastProgress = now
	st.cfg.Callbacks.Progress(st.stats.CompleteRecords + st.stats.IncompleteRecords)
	return nil
}

// report delivers every callback for one resolved (or end-of-walk, best-effort) record, then drops it from the
// pool unless Callbacks.KeepAlive asks to retain it.
func (st *walkState) report(rec mft.Record, reason IncompleteReason) error {
	cb := &st.cfg.Callbacks

	if cb.Element != nil {
		if err := cb.Element(ElementEvent{Record: rec, Incomplete: reason}); err != nil {
			return err
		}
	}

	if cb.Attribute != nil {
		for _, a := range rec.Attributes {
			if err := cb.Attribute(AttributeEvent{Record: rec, Attribute: a}); err != nil {
				return err
			}
		}
	}

	defaultData, hasDefaultData := rec.DefaultDataAttribute()
	namedData := rec.NamedDataAttributes()

	for _, name := range parsedFileNames(rec) {
		path, complete := st.pb.Build(name)
		if !st.loc.Accepts(path, name.ParentFileReference.Value()) {
			continue
		}
		orphaned := !complete

		if cb.FileName != nil {
			if err := cb.FileName(FileNameEvent{Record: rec, Name: name, Path: path, Orphaned: orphaned}); err != nil {
				return err
			}
		}

		if hasDefaultData {
			if cb.Data != nil {
				if err := cb.Data(DataEvent{Record: rec, Attribute: defaultData}); err != nil {
					return err
				}
			}
			if cb.FileNameAndData != nil {
				streamPath, _ := st.pb.BuildStream(name, "")
				if err := cb.FileNameAndData(FileNameAndDataEvent{Record: rec, Name: name, Attribute: defaultData, Path: streamPath, Orphaned: orphaned}); err != nil {
					return err
				}
			}
		}

		for _, attr := range namedData {
			if cb.Data != nil {
				if err := cb.Data(DataEvent{Record: rec, Attribute: attr, StreamName: attr.Name}); err != nil {
					return err
				}
			}
			if cb.FileNameAndData != nil {
				streamPath, _ := st.pb.BuildStream(name, attr.Name)
				if err := cb.FileNameAndData(FileNameAndDataEvent{Record: rec, Name: name, Attribute: attr, Path: streamPath, Orphaned: orphaned}); err != nil {
					return err
				}
			}
		}
	}

	if rec.IsDirectory() {
		if cb.Directory != nil {
			if primary, ok := mft.PrimaryFileName(parsedFileNames(rec)); ok {
				path, _ := st.pb.Build(primary)
				if err := cb.Directory(DirectoryEvent{Record: rec, Path: path}); err != nil {
					return err
				}
			}
		}
		if st.cfg.ParseI30 && cb.I30 != nil {
			if err := walkI30(st.vol, st.geom, rec, cb); err != nil {
				return err
			}
		}
	}

	if reason == ReasonComplete {
		if cb.KeepAlive != nil && cb.KeepAlive(rec) {
			st.pool.Store(rec)
		} else {
			st.pool.Delete(rec.FileReference)
		}
	}
	return nil
}

// walkSecureFile locates the $Secure system file by its well-known FRN (geom.SecureFRN) and runs the $SDS/$SII
// side walk.
func (st *walkState) walkSecureFile() error {
	frn := mft.FileReference{RecordNumber: st.geom.SecureFRN}
	if rec, ok := st.pool.Get(frn); ok {
		return walkSecure(st.vol, st.geom, rec, &st.cfg.Callbacks)
	}
	fetched, err := st.source.FetchByFRN([]mft.FileReference{frn})
	if err != nil || len(fetched) == 0 {
		return nil
	}
	return walkSecure(st.vol, st.geom, fetched[0], &st.cfg.Callbacks)
}
