package walker

import "testing"
import "github.com/stretchr/testify/assert"

func TestLocationFilterEmptyAcceptsEverything(t *testing.T) {
	f := newLocationFilter(nil)
	assert.True(t, f.Accepts([]byte(`\Windows\System32\foo.dll`), 1))
}

func TestLocationFilterPrefixMatch(t *testing.T) {
	f := newLocationFilter([]string{`\Windows\System32`})
	assert.True(t, f.Accepts([]byte(`\Windows\System32\foo.dll`), 1))
	assert.False(t, f.Accepts([]byte(`\Users\bob\foo.dll`), 2))
}

func TestLocationFilterCaseInsensitive(t *testing.T) {
	f := newLocationFilter([]string{`\windows\system32`})
	assert.True(t, f.Accepts([]byte(`\Windows\System32\foo.dll`), 1))
}

func TestLocationFilterSlashAgnostic(t *testing.T) {
	f := newLocationFilter([]string{`/Windows/System32`})
	assert.True(t, f.Accepts([]byte(`\Windows\System32\foo.dll`), 1))
}

func TestLocationFilterCachesPerDirectory(t *testing.T) {
	f := newLocationFilter([]string{`\Windows`})
	assert.True(t, f.Accepts([]byte(`\Windows\foo.dll`), 10))
	assert.Equal(t, tristateIn, f.cache[10])

	assert.False(t, f.Accepts([]byte(`\Users\foo.dll`), 20))
	assert.Equal(t, tristateOut, f.cache[20])

	// even a path that would now match is rejected once cached "out" for that directory key, since callers are
	// expected to pass the directory FRN (stable per directory), not the file's own identity.
	assert.False(t, f.Accepts([]byte(`\Windows\foo.dll`), 20))
}
