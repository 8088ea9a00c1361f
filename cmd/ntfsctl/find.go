package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	findpkg "github.com/dfirkit/ntfscore/find"
	"github.com/dfirkit/ntfscore/hashing"
	"github.com/dfirkit/ntfscore/mft"
)

const findCommandLongDesc = `Compiles the terms named in a JSON file and evaluates them against every resolved
record on a volume or image, printing one line per surviving match.

Term file shape:

	{
	  "terms": [
	    {"name": {"wildcard": "*.exe"}, "size": {"gt": 1048576}}
	  ],
	  "exclude_terms": [
	    {"path": {"exact": "\\Windows\\System32\\legit.exe"}}
	  ]
	}

Recognized string-match fields are "exact", "wildcard" (DOS-style, '?'/'*' only), and "regex" (case-insensitive).
"contains" and header "bytes" are hex-encoded. "hashes" maps "md5"/"sha1"/"sha256" to the expected lowercase hex
digest.`

type findCommand struct {
	IncludeUnallocated bool     `short:"u" long:"unallocated" description:"also evaluate terms against deleted records"`
	ParseI30           bool     `short:"i" long:"i30" description:"also walk $I30 index allocation blocks for carved entries"`
	Prefix             string   `short:"l" long:"location" description:"restrict evaluation to paths under this prefix"`
	MatchHashes        []string `long:"match-hash" description:"digest (md5/sha1/sha256) to attach to every matched attribute, independent of any hash-equality criterion" choice:"md5" choice:"sha1" choice:"sha256"`

	Args struct {
		Volume    string `positional-arg-name:"volume"`
		TermsFile string `positional-arg-name:"terms-file"`
	} `positional-args:"yes" required:"yes"`
}

type jsonStringMatch struct {
	Exact    string `json:"exact,omitempty"`
	Wildcard string `json:"wildcard,omitempty"`
	Regex    string `json:"regex,omitempty"`
}

func (m jsonStringMatch) compile() findpkg.StringMatch {
	return findpkg.StringMatch{Exact: m.Exact, Wildcard: m.Wildcard, Regex: m.Regex}
}

type jsonSizeMatch struct {
	Eq  *int64 `json:"eq,omitempty"`
	Lt  *int64 `json:"lt,omitempty"`
	Lte *int64 `json:"lte,omitempty"`
	Gt  *int64 `json:"gt,omitempty"`
	Gte *int64 `json:"gte,omitempty"`
}

func (m jsonSizeMatch) compile() findpkg.SizeMatch {
	return findpkg.SizeMatch{Eq: m.Eq, Lt: m.Lt, Lte: m.Lte, Gt: m.Gt, Gte: m.Gte}
}

type jsonHeaderMatch struct {
	Bytes string `json:"bytes,omitempty"` // hex-encoded
	Regex string `json:"regex,omitempty"`
	N     int    `json:"n,omitempty"`
}

type jsonTerm struct {
	Name        jsonStringMatch   `json:"name"`
	Path        jsonStringMatch   `json:"path"`
	ADSName     jsonStringMatch   `json:"ads_name"`
	EAName      jsonStringMatch   `json:"ea_name"`
	GenericName jsonStringMatch   `json:"generic_name"`
	AttrType    string            `json:"attr_type,omitempty"`
	AttrName    jsonStringMatch   `json:"attr_name"`
	Size        jsonSizeMatch     `json:"size"`
	Hashes      map[string]string `json:"hashes,omitempty"`
	Contains    string            `json:"contains,omitempty"` // hex-encoded needle
	Header      *jsonHeaderMatch  `json:"header,omitempty"`
}

func (t jsonTerm) compile() (findpkg.Term, error) {
	out := findpkg.Term{
		Name:        t.Name.compile(),
		Path:        t.Path.compile(),
		ADSName:     t.ADSName.compile(),
		EAName:      t.EAName.compile(),
		GenericName: t.GenericName.compile(),
		AttrName:    t.AttrName.compile(),
		Size:        t.Size.compile(),
	}

	if t.AttrType != "" {
		at, ok := attributeTypeByName(t.AttrType)
		if !ok {
			return findpkg.Term{}, fmt.Errorf("unknown attr_type %q", t.AttrType)
		}
		out.AttrType = &at
	}

	if len(t.Hashes) > 0 {
		out.Hashes = make(map[hashing.Algorithm]string, len(t.Hashes))
		for name, digest := range t.Hashes {
			alg, ok := algorithmByName(name)
			if !ok {
				return findpkg.Term{}, fmt.Errorf("unknown hash algorithm %q", name)
			}
			out.Hashes[alg] = digest
		}
	}

	if t.Contains != "" {
		needle, err := hex.DecodeString(t.Contains)
		if err != nil {
			return findpkg.Term{}, fmt.Errorf("invalid hex in contains: %w", err)
		}
		out.Contains = &findpkg.ContainsMatch{Needle: needle}
	}

	if t.Header != nil {
		h := &findpkg.HeaderMatch{Regex: t.Header.Regex, N: t.Header.N}
		if t.Header.Bytes != "" {
			b, err := hex.DecodeString(t.Header.Bytes)
			if err != nil {
				return findpkg.Term{}, fmt.Errorf("invalid hex in header bytes: %w", err)
			}
			h.Bytes = b
		}
		out.Header = h
	}

	return out, nil
}

func attributeTypeByName(name string) (mft.AttributeType, bool) {
	for _, at := range []mft.AttributeType{
		mft.AttributeTypeStandardInformation, mft.AttributeTypeAttributeList, mft.AttributeTypeFileName,
		mft.AttributeTypeObjectId, mft.AttributeTypeSecurityDescriptor, mft.AttributeTypeVolumeName,
		mft.AttributeTypeVolumeInformation, mft.AttributeTypeData, mft.AttributeTypeIndexRoot,
		mft.AttributeTypeIndexAllocation, mft.AttributeTypeBitmap, mft.AttributeTypeReparsePoint,
		mft.AttributeTypeEAInformation, mft.AttributeTypeEA, mft.AttributeTypePropertySet,
		mft.AttributeTypeLoggedUtilityStream,
	} {
		if at.Name() == name {
			return at, true
		}
	}
	return 0, false
}

func algorithmByName(name string) (hashing.Algorithm, bool) {
	for _, a := range []hashing.Algorithm{hashing.MD5, hashing.SHA1, hashing.SHA256} {
		if a.String() == name {
			return a, true
		}
	}
	return 0, false
}

type termsFile struct {
	Terms        []jsonTerm `json:"terms"`
	ExcludeTerms []jsonTerm `json:"exclude_terms,omitempty"`
}

func (c *findCommand) Execute(args []string) error {
	start := time.Now()

	raw, err := os.ReadFile(c.Args.TermsFile)
	if err != nil {
		return fmt.Errorf("unable to read terms file: %w", err)
	}
	var tf termsFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return fmt.Errorf("unable to parse terms file: %w", err)
	}

	terms, err := compileAll(tf.Terms)
	if err != nil {
		return fmt.Errorf("invalid term: %w", err)
	}
	excludeTerms, err := compileAll(tf.ExcludeTerms)
	if err != nil {
		return fmt.Errorf("invalid exclude_term: %w", err)
	}

	location := c.Args.Volume
	if isWindows {
		location = `\\.\` + location
	}

	cfg := findpkg.DefaultConfig()
	cfg.IncludeUnallocated = c.IncludeUnallocated
	cfg.ParseI30 = c.ParseI30
	if c.Prefix != "" {
		cfg.LocationPrefixes = []string{c.Prefix}
	}
	for _, name := range c.MatchHashes {
		alg, ok := algorithmByName(name)
		if !ok {
			return fmt.Errorf("unknown --match-hash value %q", name)
		}
		cfg.MatchHashes = append(cfg.MatchHashes, alg)
	}

	var printed int64
	stats, err := findpkg.Find([]string{location}, terms, excludeTerms, cfg, func(m findpkg.Match) (bool, error) {
		printed++
		printMatch(m)
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}

	printVerbose("scanned %s records, %s matches, in %v\n",
		humanize.Comma(stats.RecordsScanned), humanize.Comma(stats.TotalMatches), time.Since(start))
	fmt.Fprintf(os.Stderr, "%s matches printed\n", humanize.Comma(printed))
	return nil
}

func compileAll(terms []jsonTerm) ([]findpkg.Term, error) {
	out := make([]findpkg.Term, 0, len(terms))
	for _, t := range terms {
		ct, err := t.compile()
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

func printMatch(m findpkg.Match) {
	for _, n := range m.Names {
		fmt.Printf("%s\t%s", m.FileReference, n.Path)
		if m.Deleted {
			fmt.Print("\t(deleted)")
		}
		fmt.Println()
	}
	for _, a := range m.Attributes {
		fmt.Printf("\t%s (%s)", a.Attribute.Type.Name(), humanize.Bytes(a.Attribute.ActualSize))
		for alg, sum := range a.Hashes {
			fmt.Printf(" %s=%s", alg, sum)
		}
		fmt.Println()
	}
}
