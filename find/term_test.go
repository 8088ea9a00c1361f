package find

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/mft"
)

func TestCompileTermRejectsGenericNameWithOthers(t *testing.T) {
	_, err := CompileTerm(Term{GenericName: StringMatch{Exact: "a"}, Name: StringMatch{Exact: "b"}})
	require.Error(t, err)
}

func TestCompileTermRejectsEAAndADSTogether(t *testing.T) {
	_, err := CompileTerm(Term{EAName: StringMatch{Exact: "a"}, ADSName: StringMatch{Exact: "b"}})
	require.Error(t, err)
}

func TestCompileTermRejectsAttributeCriteriaWithADS(t *testing.T) {
	at := mft.AttributeTypeData
	_, err := CompileTerm(Term{AttrType: &at, ADSName: StringMatch{Exact: "b"}})
	require.Error(t, err)
}

func TestCompileTermRejectsSizeEqWithBound(t *testing.T) {
	eq := int64(10)
	lt := int64(20)
	_, err := CompileTerm(Term{Size: SizeMatch{Eq: &eq, Lt: &lt}})
	require.Error(t, err)
}

func TestCompileTermRejectsConflictingUpperBounds(t *testing.T) {
	lt := int64(10)
	lte := int64(20)
	_, err := CompileTerm(Term{Size: SizeMatch{Lt: &lt, Lte: &lte}})
	require.Error(t, err)
}

func TestCompileTermRejectsConflictingLowerBounds(t *testing.T) {
	gt := int64(10)
	gte := int64(20)
	_, err := CompileTerm(Term{Size: SizeMatch{Gt: &gt, Gte: &gte}})
	require.Error(t, err)
}

func TestCompileTermAcceptsPlainTerm(t *testing.T) {
	ct, err := CompileTerm(Term{Name: StringMatch{Wildcard: "*.exe"}})
	require.NoError(t, err)
	assert.True(t, ct.name.matches("evil.exe"))
	assert.False(t, ct.name.matches("evil.txt"))
}

func TestSizeMatchBounds(t *testing.T) {
	lt := int64(100)
	gte := int64(10)
	m := SizeMatch{Lt: &lt, Gte: &gte}
	assert.True(t, m.matches(50))
	assert.False(t, m.matches(100))
	assert.False(t, m.matches(5))
}

func TestStringMatchCompileInvalidRegex(t *testing.T) {
	_, err := StringMatch{Regex: "("}.compile()
	require.Error(t, err)
}
