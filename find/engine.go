package find

import (
	"errors"
	"io"
	"strings"
	"time"

	log "github.com/dsoprea/go-logging"

	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/hashing"
	"github.com/dfirkit/ntfscore/mft"
	"github.com/dfirkit/ntfscore/volume"
	"github.com/dfirkit/ntfscore/walker"
)

// Config carries every option Find recognizes (§4.4, §6.2).
type Config struct {
	// IncludeUnallocated, ParseI30, CompressionPolicy and LocationPrefixes are passed straight through to the
	// underlying walker.Config; a location prefix mismatch suppresses a name the same way it does for a bare walk,
	// which is how the "location" evaluation step falls out for free.
	IncludeUnallocated bool
	ParseI30           bool
	CompressionPolicy  walker.CompressionPolicy
	LocationPrefixes   []string

	// MatchHashes lists digests to compute and attach to every MatchedAttribute a term reports, independent of any
	// hash-equality criterion a term itself carries.
	MatchHashes []hashing.Algorithm

	// Yara is the scanner a Yara criterion is evaluated against; a term carrying a YaraMatch never matches while
	// this is nil.
	Yara YaraScanner

	// ProgressEvery throttles walker.Callbacks.Progress the same way walker.Config does.
	ProgressEvery time.Duration
}

// DefaultConfig returns the Config spec.md §6.2 names as defaults for the find engine.
func DefaultConfig() Config {
	return Config{
		CompressionPolicy: walker.CompressionBestEffort,
	}
}

// TermStats accumulates one compiled term's activity over a Find run.
type TermStats struct {
	Matches   int64
	BytesRead int64
	Duration  time.Duration
}

// Stats is returned by Find, with PerTerm aligned by index to the terms slice the caller passed in.
type Stats struct {
	RecordsScanned int64
	TotalMatches   int64
	PerTerm        []TermStats
}

// MatchFunc is invoked once per assembled Match surviving exclude-term suppression. Returning true stops Find
// early, reported as a clean stop rather than an error.
type MatchFunc func(Match) (bool, error)

// Find opens each of locs as a volume, walks it, and evaluates terms (after dropping any record also satisfied by
// an excludeTerm) against every resolved record, delivering surviving matches to onMatch (§3.7/§4.4).
func Find(locs []string, terms []Term, excludeTerms []Term, cfg Config, onMatch MatchFunc) (Stats, error) {
	idx, err := buildIndex(terms)
	if err != nil {
		return Stats{}, err
	}
	excludeIdx, err := buildIndex(excludeTerms)
	if err != nil {
		return Stats{}, err
	}

	termPos := make(map[*compiledTerm]int, len(idx.all))
	for i, ct := range idx.all {
		termPos[ct] = i
	}

	stats := Stats{PerTerm: make([]TermStats, len(terms))}

	for _, loc := range locs {
		stopped, err := findOneLocation(loc, idx, excludeIdx, cfg, termPos, &stats, onMatch)
		if err != nil {
			return stats, err
		}
		if stopped {
			break
		}
	}
	return stats, nil
}

func findOneLocation(loc string, idx, excludeIdx *termIndex, cfg Config, termPos map[*compiledTerm]int, stats *Stats, onMatch MatchFunc) (bool, error) {
	vol, err := volume.OpenOnline(loc, volume.OpenOptions{ReadOnly: true})
	if err != nil {
		return false, err
	}
	defer vol.Close()

	e := &engine{
		vol:        vol,
		geom:       vol.Geometry(),
		idx:        idx,
		excludeIdx: excludeIdx,
		cfg:        cfg,
		termPos:    termPos,
		stats:      stats,
		onMatch:    onMatch,
	}

	wcfg := walker.Config{
		IncludeUnallocated: cfg.IncludeUnallocated,
		ParseI30:           cfg.ParseI30,
		ResolveFullPaths:   true,
		CompressionPolicy:  cfg.CompressionPolicy,
		LocationPrefixes:   cfg.LocationPrefixes,
		ProgressEvery:      cfg.ProgressEvery,
	}
	wcfg.Callbacks.Element = e.onElement
	wcfg.Callbacks.Attribute = e.onAttribute
	wcfg.Callbacks.FileName = e.onFileName
	wcfg.Callbacks.Data = e.onData

	_, err = walker.Walk(vol, wcfg)
	if err == nil && !e.stopped {
		err = e.flush()
	}
	if errors.Is(err, walker.ErrStopped) {
		return true, nil
	}
	return e.stopped, err
}

// dataStream pairs a $DATA attribute with the stream name report() already split it under ("" for the unnamed
// default stream).
type dataStream struct {
	attr       mft.Attribute
	streamName string
}

// pendingRecord accumulates every callback the walker fires for one record, since they arrive one at a time but
// evaluation needs the full picture (every name, every attribute, every data stream) at once.
type pendingRecord struct {
	record     mft.Record
	incomplete walker.IncompleteReason
	names      []MatchedName
	attrs      []mft.Attribute
	streams    []dataStream
	eaNames    []string
}

// engine holds the state one findOneLocation call needs across the whole walk: the open volume, the compiled term
// indexes, and the record currently being accumulated. Records arrive one field at a time (Element, then
// Attribute*, then FileName/Data per name), so engine buffers them in pending and evaluates on the next Element (or
// at end of walk), mirroring how report() itself assembles a record before firing any callback.
type engine struct {
	vol        volume.Reader
	geom       bootsect.Geometry
	idx        *termIndex
	excludeIdx *termIndex
	cfg        Config
	termPos    map[*compiledTerm]int
	stats      *Stats
	onMatch    MatchFunc
	pending    *pendingRecord
	stopped    bool
}

func (e *engine) onElement(ev walker.ElementEvent) error {
	if err := e.flush(); err != nil {
		return err
	}
	e.pending = &pendingRecord{record: ev.Record, incomplete: ev.Incomplete}
	e.stats.RecordsScanned++
	return nil
}

func (e *engine) onAttribute(ev walker.AttributeEvent) error {
	e.pending.attrs = append(e.pending.attrs, ev.Attribute)
	if ev.Attribute.Type == mft.AttributeTypeEA && ev.Attribute.Resident {
		entries, err := mft.ParseEA(ev.Attribute.Data)
		if err != nil {
			log.Warningf("find: skipping corrupt $EA attribute on FRN %s: %v", e.pending.record.FileReference, err)
		} else {
			for _, entry := range entries {
				e.pending.eaNames = append(e.pending.eaNames, entry.Name)
			}
		}
	}
	return nil
}

func (e *engine) onFileName(ev walker.FileNameEvent) error {
	e.pending.names = append(e.pending.names, MatchedName{
		Name: ev.Name,
		Path: string(append([]byte(nil), ev.Path...)),
	})
	return nil
}

func (e *engine) onData(ev walker.DataEvent) error {
	for _, ds := range e.pending.streams {
		if ds.streamName == ev.StreamName && ds.attr.AttributeId == ev.Attribute.AttributeId {
			return nil
		}
	}
	e.pending.streams = append(e.pending.streams, dataStream{attr: ev.Attribute, streamName: ev.StreamName})
	return nil
}

// flush evaluates the accumulated record against every index, reports surviving matches, and clears pending.
func (e *engine) flush() error {
	if e.pending == nil {
		return nil
	}
	rec := e.pending

	names := make([]string, 0, len(rec.names))
	paths := make([]string, 0, len(rec.names))
	for _, n := range rec.names {
		names = append(names, n.Name.Name)
		paths = append(paths, n.Path)
	}
	adsNames := make([]string, 0)
	sizes := make([]int64, 0, len(rec.streams))
	for _, ds := range rec.streams {
		sizes = append(sizes, int64(ds.attr.ActualSize))
		if ds.streamName != "" {
			adsNames = append(adsNames, ds.streamName)
		}
	}

	candidates := e.idx.candidates(names, paths, sizes)
	for _, ct := range candidates {
		start := time.Now()
		matched, attrs, err := e.evaluateTerm(ct, rec, names, paths, adsNames)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}

		if excluded, err := e.excluded(rec, names, paths, adsNames); err != nil {
			return err
		} else if excluded {
			continue
		}

		m := Match{
			Term:          ct.term,
			FileReference: rec.record.FileReference,
			Deleted:       !rec.record.Flags.Is(mft.RecordFlagInUse),
			Names:         rec.names,
			Attributes:    attrs,
		}
		if si, ok := standardInformationOf(rec.attrs); ok {
			m.Creation = si.Creation
			m.FileLastModified = si.FileLastModified
			m.LastAccess = si.LastAccess
		}

		pos, ok := e.termPos[ct]
		if ok {
			ts := &e.stats.PerTerm[pos]
			ts.Matches++
			ts.Duration += time.Since(start)
		}
		e.stats.TotalMatches++

		stop, err := e.onMatch(m)
		if err != nil {
			return err
		}
		if stop {
			e.stopped = true
			return walker.ErrStopped
		}
	}

	e.pending = nil
	return nil
}

// excluded reports whether rec also satisfies any compiled exclude term, suppressing an otherwise-matched record
// (§4.4's "Match assembly and exclude-term suppression" step).
func (e *engine) excluded(rec *pendingRecord, names, paths, adsNames []string) (bool, error) {
	if len(e.excludeIdx.all) == 0 {
		return false, nil
	}
	sizes := make([]int64, 0, len(rec.streams))
	for _, ds := range rec.streams {
		sizes = append(sizes, int64(ds.attr.ActualSize))
	}
	for _, ct := range e.excludeIdx.candidates(names, paths, sizes) {
		matched, _, err := e.evaluateTerm(ct, rec, names, paths, adsNames)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func standardInformationOf(attrs []mft.Attribute) (mft.StandardInformation, bool) {
	for _, a := range attrs {
		if a.Type == mft.AttributeTypeStandardInformation && a.Resident {
			si, err := mft.ParseStandardInformation(a.Data)
			if err != nil {
				log.Warningf("find: skipping corrupt $STANDARD_INFORMATION: %v", err)
				continue
			}
			return si, true
		}
	}
	return mft.StandardInformation{}, false
}

func anyMatch(c *compiledStringMatch, values []string) bool {
	for _, v := range values {
		if c.matches(v) {
			return true
		}
	}
	return false
}

// evaluateTerm runs the full evaluation order §4.4 describes: name, path, data-attribute size/ADS-name, attribute
// type/name, then data content checks, returning the attributes the term's criteria actually touched (for Match
// assembly). Location is not evaluated here: the walker already suppressed any out-of-scope name before it ever
// reached onFileName, via LocationPrefixes.
func (e *engine) evaluateTerm(ct *compiledTerm, rec *pendingRecord, names, paths, adsNames []string) (bool, []MatchedAttribute, error) {
	t := ct.term

	if !t.Name.isZero() && !anyMatch(ct.name, names) {
		return false, nil, nil
	}
	if !t.Path.isZero() && !anyMatch(ct.path, paths) {
		return false, nil, nil
	}
	if !t.ADSName.isZero() && !anyMatch(ct.adsName, adsNames) {
		return false, nil, nil
	}
	if !t.EAName.isZero() && !anyMatch(ct.eaName, rec.eaNames) {
		return false, nil, nil
	}
	if !t.GenericName.isZero() {
		combined := make([]string, 0, len(names)+len(paths)+len(adsNames)+len(rec.eaNames))
		combined = append(combined, names...)
		combined = append(combined, paths...)
		combined = append(combined, adsNames...)
		combined = append(combined, rec.eaNames...)
		if !anyMatch(ct.generic, combined) {
			return false, nil, nil
		}
	}

	var touched []mft.Attribute

	if t.AttrType != nil || !t.AttrName.isZero() {
		var hit bool
		for _, a := range rec.attrs {
			if t.AttrType != nil && a.Type != *t.AttrType {
				continue
			}
			if !t.AttrName.isZero() && !ct.attrName.matches(a.Name) {
				continue
			}
			touched = append(touched, a)
			hit = true
		}
		if !hit {
			return false, nil, nil
		}
	}

	hasContentCriteria := t.Header != nil || t.Contains != nil || len(t.Hashes) > 0 || t.Yara != nil
	hasDataCriteria := !t.Size.isZero() || !t.ADSName.isZero() || hasContentCriteria

	var targets []dataStream
	if hasDataCriteria {
		targets = e.dataTargets(rec, ct)
		if !t.Size.isZero() {
			var hit []dataStream
			for _, ds := range targets {
				if t.Size.matches(int64(ds.attr.ActualSize)) {
					hit = append(hit, ds)
				}
			}
			targets = hit
		}
		if len(targets) == 0 {
			return false, nil, nil
		}
		for _, ds := range targets {
			touched = append(touched, ds.attr)
		}
	}

	if hasContentCriteria {
		ok, err := e.evaluateContent(ct, targets)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, nil
		}
	}

	attrs, err := e.assembleAttributes(touched)
	if err != nil {
		return false, nil, err
	}
	return true, attrs, nil
}

// dataTargets narrows rec.streams to the ones a term's ADS-name criterion names, or to the unnamed default stream
// when no ADS criterion is present (falling back to every stream if there is no unnamed one to prefer).
func (e *engine) dataTargets(rec *pendingRecord, ct *compiledTerm) []dataStream {
	if !ct.term.ADSName.isZero() {
		var out []dataStream
		for _, ds := range rec.streams {
			if ct.adsName.matches(ds.streamName) {
				out = append(out, ds)
			}
		}
		return out
	}
	for _, ds := range rec.streams {
		if ds.streamName == "" {
			return []dataStream{ds}
		}
	}
	return rec.streams
}

// evaluateContent runs every content-based criterion (header, substring search, hash equality, Yara) a term
// carries against its target data stream(s); all must hold for every target that has data to satisfy (an empty
// target list never reaches here, see evaluateTerm).
func (e *engine) evaluateContent(ct *compiledTerm, targets []dataStream) (bool, error) {
	t := ct.term
	for _, ds := range targets {
		if t.Header != nil {
			ok, err := e.evaluateHeader(ct, ds.attr)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		if t.Contains != nil {
			r, err := walker.OpenStream(e.vol, e.geom, ds.attr, e.cfg.CompressionPolicy)
			if err != nil {
				return false, err
			}
			cr := &countingReader{r: r}
			ok, err := contains(cr, t.Contains.Needle)
			e.addBytesRead(ct, cr.n)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		if len(t.Hashes) > 0 {
			ok, err := e.evaluateHashes(ct, ds.attr)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		if t.Yara != nil {
			ok, err := e.evaluateYara(ct, ds.attr)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// addBytesRead attributes n bytes of stream I/O to ct's TermStats, a no-op for exclude terms (which have no entry
// in termPos since Stats.PerTerm is only ever aligned to the caller's positive term list).
func (e *engine) addBytesRead(ct *compiledTerm, n int64) {
	if pos, ok := e.termPos[ct]; ok {
		e.stats.PerTerm[pos].BytesRead += n
	}
}

func (e *engine) evaluateHeader(ct *compiledTerm, attr mft.Attribute) (bool, error) {
	t := ct.term.Header
	n := t.N
	if n == 0 {
		n = len(t.Bytes)
	}
	if n == 0 {
		n = 512
	}
	r, err := walker.OpenStream(e.vol, e.geom, attr, e.cfg.CompressionPolicy)
	if err != nil {
		return false, err
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	buf = buf[:read]
	e.addBytesRead(ct, int64(read))

	if len(t.Bytes) > 0 && !bytesEqual(buf, t.Bytes) {
		return false, nil
	}
	if ct.header != nil && !ct.header.Match(buf) {
		return false, nil
	}
	return true, nil
}

func (e *engine) evaluateHashes(ct *compiledTerm, attr mft.Attribute) (bool, error) {
	want := ct.term.Hashes
	algorithms := make([]hashing.Algorithm, 0, len(want))
	for a := range want {
		algorithms = append(algorithms, a)
	}
	r, err := walker.OpenStream(e.vol, e.geom, attr, e.cfg.CompressionPolicy)
	if err != nil {
		return false, err
	}
	cr := &countingReader{r: r}
	sums, err := hashing.HashReader(cr, algorithms...)
	e.addBytesRead(ct, cr.n)
	if err != nil {
		return false, err
	}
	for a, expect := range want {
		if !strings.EqualFold(sums[a], expect) {
			return false, nil
		}
	}
	return true, nil
}

// countingReader wraps an io.Reader to track total bytes read, for per-term I/O bookkeeping.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (e *engine) evaluateYara(ct *compiledTerm, attr mft.Attribute) (bool, error) {
	y := ct.term.Yara
	if e.cfg.Yara == nil {
		return false, nil
	}
	if err := e.cfg.Yara.EnabledRules(y.Rules); err != nil {
		return false, err
	}
	r, err := walker.OpenStream(e.vol, e.geom, attr, e.cfg.CompressionPolicy)
	if err != nil {
		return false, err
	}
	cr := &countingReader{r: r}
	hits, err := e.cfg.Yara.ScanReader(cr)
	e.addBytesRead(ct, cr.n)
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

// assembleAttributes builds the Match.Attributes list, attaching every digest MatchHashes asks for to each
// touched attribute's data (§3.8).
func (e *engine) assembleAttributes(attrs []mft.Attribute) ([]MatchedAttribute, error) {
	out := make([]MatchedAttribute, 0, len(attrs))
	for _, a := range attrs {
		ma := MatchedAttribute{Attribute: a}
		if len(e.cfg.MatchHashes) > 0 && (a.Type == mft.AttributeTypeData || a.Type == mft.AttributeTypeEA) {
			r, err := walker.OpenStream(e.vol, e.geom, a, e.cfg.CompressionPolicy)
			if err != nil {
				return nil, err
			}
			sums, err := hashing.HashReader(r, e.cfg.MatchHashes...)
			if err != nil {
				return nil, err
			}
			ma.Hashes = sums
		}
		out = append(out, ma)
	}
	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) < len(b) {
		return false
	}
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
