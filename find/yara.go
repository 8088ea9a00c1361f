package find

import "io"

// YaraScanner is the opaque rule-matching contract the find engine consumes but never implements (a real Yara
// binding is explicitly out of scope; callers that want Yara matching supply their own implementation, eg. a
// cgo wrapper around libyara).
type YaraScanner interface {
	// EnabledRules restricts subsequent ScanReader calls to the named rule identifiers; an empty or "*"-only slice
	// means every loaded rule is in scope.
	EnabledRules(rules []string) error
	// ScanReader scans r and returns the identifiers of every rule that matched.
	ScanReader(r io.Reader) ([]string, error)
}
