package find

// termIndex stores compiled terms in the four lookup structures §4.4 "Term indexing" describes, so that a record
// with a known name/path/size can skip scanning every generic term.
type termIndex struct {
	byName map[string][]*compiledTerm
	byPath map[string][]*compiledTerm
	bySize map[int64][]*compiledTerm
	generic []*compiledTerm

	// all holds every compiled term in the order buildIndex compiled them (ie. the order terms was given in),
	// regardless of which buckets it was also filed under, so a caller can align per-term bookkeeping by index.
	all []*compiledTerm
}

// buildIndex compiles terms and files each one under its exact-match keys, falling back to the generic bucket for
// anything that needs wildcard/regex/other evaluation.
func buildIndex(terms []Term) (*termIndex, error) {
	idx := &termIndex{
		byName: make(map[string][]*compiledTerm),
		byPath: make(map[string][]*compiledTerm),
		bySize: make(map[int64][]*compiledTerm),
	}
	for _, t := range terms {
		ct, err := CompileTerm(t)
		if err != nil {
			return nil, err
		}
		idx.file(ct)
		idx.all = append(idx.all, ct)
	}
	return idx, nil
}

func (idx *termIndex) file(ct *compiledTerm) {
	filed := false
	if ct.term.Name.Exact != "" {
		idx.byName[ct.term.Name.Exact] = append(idx.byName[ct.term.Name.Exact], ct)
		filed = true
	}
	if ct.term.Path.Exact != "" {
		idx.byPath[ct.term.Path.Exact] = append(idx.byPath[ct.term.Path.Exact], ct)
		filed = true
	}
	if ct.term.Size.Eq != nil {
		idx.bySize[*ct.term.Size.Eq] = append(idx.bySize[*ct.term.Size.Eq], ct)
		filed = true
	}
	if !filed {
		idx.generic = append(idx.generic, ct)
	}
}

// candidates returns the deduplicated set of terms worth evaluating against a record carrying the given names,
// paths, and data-attribute sizes.
func (idx *termIndex) candidates(names, paths []string, sizes []int64) []*compiledTerm {
	seen := make(map[*compiledTerm]bool)
	var out []*compiledTerm
	add := func(cts []*compiledTerm) {
		for _, ct := range cts {
			if !seen[ct] {
				seen[ct] = true
				out = append(out, ct)
			}
		}
	}
	for _, n := range names {
		add(idx.byName[n])
	}
	for _, p := range paths {
		add(idx.byPath[p])
	}
	for _, s := range sizes {
		add(idx.bySize[s])
	}
	add(idx.generic)
	return out
}
