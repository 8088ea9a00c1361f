package hashing_test

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/hashing"
)

func TestHashReaderComputesAllDigests(t *testing.T) {
	content := "the quick brown fox jumps over the lazy dog"

	sums, err := hashing.HashReader(strings.NewReader(content), hashing.MD5, hashing.SHA1, hashing.SHA256)
	require.Nilf(t, err, "error hashing: %v", err)

	md5Sum := md5.Sum([]byte(content))
	sha1Sum := sha1.Sum([]byte(content))
	sha256Sum := sha256.Sum256([]byte(content))

	assert.Equal(t, hex.EncodeToString(md5Sum[:]), sums[hashing.MD5])
	assert.Equal(t, hex.EncodeToString(sha1Sum[:]), sums[hashing.SHA1])
	assert.Equal(t, hex.EncodeToString(sha256Sum[:]), sums[hashing.SHA256])
}

func TestMultiHashWriteIncrementally(t *testing.T) {
	m := hashing.New(hashing.SHA256)
	_, err := m.Write([]byte("hello, "))
	require.Nilf(t, err, "error writing: %v", err)
	_, err = m.Write([]byte("world"))
	require.Nilf(t, err, "error writing: %v", err)

	expected := sha256.Sum256([]byte("hello, world"))
	assert.Equal(t, hex.EncodeToString(expected[:]), m.Sums()[hashing.SHA256])
}

func TestMultiHashNoAlgorithms(t *testing.T) {
	m := hashing.New()
	n, err := m.Write([]byte("discarded"))
	require.Nilf(t, err, "error writing: %v", err)
	assert.Equal(t, 9, n)
	assert.Empty(t, m.Sums())
}
