package find

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexFilesExactCriteriaIntoBuckets(t *testing.T) {
	eqSize := int64(4096)
	idx, err := buildIndex([]Term{
		{Name: StringMatch{Exact: "evil.exe"}},
		{Path: StringMatch{Exact: `\Windows\System32\evil.exe`}},
		{Size: SizeMatch{Eq: &eqSize}},
		{Name: StringMatch{Wildcard: "*.tmp"}},
	})
	require.NoError(t, err)

	assert.Len(t, idx.byName["evil.exe"], 1)
	assert.Len(t, idx.byPath[`\Windows\System32\evil.exe`], 1)
	assert.Len(t, idx.bySize[4096], 1)
	assert.Len(t, idx.generic, 1)
	assert.Len(t, idx.all, 4)
}

func TestBuildIndexPropagatesCompileErrors(t *testing.T) {
	_, err := buildIndex([]Term{{GenericName: StringMatch{Exact: "a"}, Name: StringMatch{Exact: "b"}}})
	require.Error(t, err)
}

func TestTermIndexCandidatesDeduplicatesAcrossBuckets(t *testing.T) {
	idx, err := buildIndex([]Term{
		{Name: StringMatch{Exact: "x"}, Path: StringMatch{Exact: "x"}},
		{Name: StringMatch{Wildcard: "*.bin"}},
	})
	require.NoError(t, err)

	got := idx.candidates([]string{"x"}, []string{"x"}, nil)
	assert.Len(t, got, 2)
}

func TestTermIndexCandidatesAlwaysIncludesGeneric(t *testing.T) {
	idx, err := buildIndex([]Term{
		{Name: StringMatch{Wildcard: "*.bin"}},
	})
	require.NoError(t, err)

	got := idx.candidates([]string{"nothing-exact"}, nil, nil)
	require.Len(t, got, 1)
}
