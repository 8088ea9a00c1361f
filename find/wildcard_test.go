package find

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDosMatchExactAndCaseFold(t *testing.T) {
	assert.True(t, dosMatch("FOO.TXT", "foo.txt"))
	assert.False(t, dosMatch("FOO.TXT", "bar.txt"))
}

func TestDosMatchQuestionMark(t *testing.T) {
	assert.True(t, dosMatch("fo?.txt", "foo.txt"))
	assert.False(t, dosMatch("fo?.txt", "fooo.txt"))
}

func TestDosMatchStar(t *testing.T) {
	assert.True(t, dosMatch("*.txt", "anything.txt"))
	assert.True(t, dosMatch("*.txt", ".txt"))
	assert.False(t, dosMatch("*.txt", "anything.bin"))
	assert.True(t, dosMatch("a*b*c", "aXXbYYc"))
	assert.False(t, dosMatch("a*b*c", "aXXbYY"))
}

func TestDosMatchCollapsesConsecutiveStars(t *testing.T) {
	assert.True(t, dosMatch("**.txt", "file.txt"))
}
