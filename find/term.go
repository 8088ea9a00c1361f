// Package find compiles a set of match terms and evaluates them against the records a walker.Walk produces,
// delivering assembled Match values to a caller callback.
package find

import (
	"fmt"
	"regexp"

	"github.com/dfirkit/ntfscore/hashing"
	"github.com/dfirkit/ntfscore/mft"
)

// StringMatch is a single name/path/attribute-name criterion: at most one of its fields is set.
type StringMatch struct {
	Exact    string
	Wildcard string // DOS-style, '?'/'*' only
	Regex    string // matched case-insensitively
}

func (m StringMatch) isZero() bool { return m.Exact == "" && m.Wildcard == "" && m.Regex == "" }

func (m StringMatch) compile() (*compiledStringMatch, error) {
	if m.isZero() {
		return nil, nil
	}
	c := &compiledStringMatch{raw: m}
	if m.Regex != "" {
		re, err := regexp.Compile("(?i)" + m.Regex)
		if err != nil {
			return nil, fmt.Errorf("find: invalid regex %q: %w", m.Regex, err)
		}
		c.re = re
	}
	return c, nil
}

type compiledStringMatch struct {
	raw StringMatch
	re  *regexp.Regexp
}

func (c *compiledStringMatch) matches(s string) bool {
	if c == nil {
		return false
	}
	switch {
	case c.raw.Exact != "":
		return s == c.raw.Exact
	case c.raw.Wildcard != "":
		return dosMatch(c.raw.Wildcard, s)
	case c.re != nil:
		return c.re.MatchString(s)
	}
	return false
}

// SizeMatch expresses a size comparison; at most one bound style applies (see compatibility rules).
type SizeMatch struct {
	Eq  *int64
	Lt  *int64
	Lte *int64
	Gt  *int64
	Gte *int64
}

func (m SizeMatch) isZero() bool {
	return m.Eq == nil && m.Lt == nil && m.Lte == nil && m.Gt == nil && m.Gte == nil
}

func (m SizeMatch) matches(size int64) bool {
	if m.Eq != nil && size != *m.Eq {
		return false
	}
	if m.Lt != nil && size >= *m.Lt {
		return false
	}
	if m.Lte != nil && size > *m.Lte {
		return false
	}
	if m.Gt != nil && size <= *m.Gt {
		return false
	}
	if m.Gte != nil && size < *m.Gte {
		return false
	}
	return true
}

// HeaderMatch inspects the first N bytes of a $DATA stream (N defaults to len(Bytes) when zero).
type HeaderMatch struct {
	Bytes []byte // plain or hex-decoded by the caller; compared verbatim
	Regex string // matched against the same leading window
	N     int
}

// ContainsMatch requires needle to appear anywhere in a $DATA stream.
type ContainsMatch struct {
	Needle []byte
}

// YaraMatch names the rule subset a term is interested in; "*" (or an empty slice) means any rule.
type YaraMatch struct {
	Rules []string
}

// Term is one compiled predicate: every non-zero field is a required criterion, all of which must hold for the
// term to match a record (§3.7/§4.4).
type Term struct {
	Name      StringMatch
	Path      StringMatch
	ADSName   StringMatch
	EAName    StringMatch
	AttrType  *mft.AttributeType
	AttrName  StringMatch
	Size      SizeMatch
	Hashes    map[hashing.Algorithm]string // expected lowercase hex digest per algorithm
	Contains  *ContainsMatch
	Header    *HeaderMatch
	Yara      *YaraMatch
	GenericName StringMatch // matched against every name, path, ADS name and EA name of the record
}

// compiledTerm is a Term with its string criteria pre-compiled (regex parsed once, not per record).
type compiledTerm struct {
	term Term

	name     *compiledStringMatch
	path     *compiledStringMatch
	adsName  *compiledStringMatch
	eaName   *compiledStringMatch
	attrName *compiledStringMatch
	generic  *compiledStringMatch
	header   *regexp.Regexp
}

// CompileTerm validates t against the compatibility rules (§4.4 "Compatibility rules") and pre-compiles its string
// criteria, or returns an error naming the violated rule.
func CompileTerm(t Term) (*compiledTerm, error) {
	if !t.GenericName.isZero() && (!t.Name.isZero() || !t.Path.isZero() || !t.EAName.isZero() || !t.ADSName.isZero()) {
		return nil, fmt.Errorf("find: a generic name cannot coexist with name/path/EA/ADS criteria in one term")
	}
	if !t.EAName.isZero() && !t.ADSName.isZero() {
		return nil, fmt.Errorf("find: EA and ADS criteria are mutually exclusive in one term")
	}
	if (t.AttrType != nil || !t.AttrName.isZero()) && (!t.EAName.isZero() || !t.ADSName.isZero()) {
		return nil, fmt.Errorf("find: attribute-level criteria are mutually exclusive with EA/ADS criteria")
	}
	if t.Size.Eq != nil && (t.Size.Lt != nil || t.Size.Lte != nil || t.Size.Gt != nil || t.Size.Gte != nil) {
		return nil, fmt.Errorf("find: size == cannot coexist with a bound comparison in the same term")
	}
	if t.Size.Lt != nil && t.Size.Lte != nil {
		return nil, fmt.Errorf("find: conflicting size bounds (< and <=) in the same term")
	}
	if t.Size.Gt != nil && t.Size.Gte != nil {
		return nil, fmt.Errorf("find: conflicting size bounds (> and >=) in the same term")
	}

	ct := &compiledTerm{term: t}
	var err error
	if ct.name, err = t.Name.compile(); err != nil {
		return nil, err
	}
	if ct.path, err = t.Path.compile(); err != nil {
		return nil, err
	}
	if ct.adsName, err = t.ADSName.compile(); err != nil {
		return nil, err
	}
	if ct.eaName, err = t.EAName.compile(); err != nil {
		return nil, err
	}
	if ct.attrName, err = t.AttrName.compile(); err != nil {
		return nil, err
	}
	if ct.generic, err = t.GenericName.compile(); err != nil {
		return nil, err
	}
	if t.Header != nil && t.Header.Regex != "" {
		re, err := regexp.Compile(t.Header.Regex)
		if err != nil {
			return nil, fmt.Errorf("find: invalid header regex %q: %w", t.Header.Regex, err)
		}
		ct.header = re
	}
	return ct, nil
}
