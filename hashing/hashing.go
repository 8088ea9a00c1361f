// Package hashing provides a single-pass multiplexing writer that computes several digests of the same stream
// without re-reading it, for the content-hash fields the find engine attaches to a Match.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Algorithm identifies one of the digests a MultiHash can compute.
type Algorithm int

const (
	MD5 Algorithm = iota
	SHA1
	SHA256
)

func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	}
	return "unknown"
}

func newHash(a Algorithm) hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	}
	return nil
}

// MultiHash is an io.Writer that feeds every byte written to it into one hash.Hash per requested Algorithm, so a
// single io.Copy from a content stream can produce every digest the caller asked for.
type MultiHash struct {
	algorithms []Algorithm
	hashes     []hash.Hash
	writer     io.Writer
}

// New creates a MultiHash computing the given algorithms. Passing no algorithms yields a MultiHash that discards
// everything written to it (a valid, if useless, io.Writer).
func New(algorithms ...Algorithm) *MultiHash {
	m := &MultiHash{algorithms: algorithms}
	writers := make([]io.Writer, 0, len(algorithms))
	for _, a := range algorithms {
		h := newHash(a)
		m.hashes = append(m.hashes, h)
		writers = append(writers, h)
	}
	m.writer = io.MultiWriter(writers...)
	return m
}

// Write implements io.Writer, feeding p into every requested hash.Hash.
func (m *MultiHash) Write(p []byte) (int, error) {
	return m.writer.Write(p)
}

// Sums returns the lowercase hex digest of every requested algorithm, keyed by Algorithm.
func (m *MultiHash) Sums() map[Algorithm]string {
	sums := make(map[Algorithm]string, len(m.algorithms))
	for i, a := range m.algorithms {
		sums[a] = hex.EncodeToString(m.hashes[i].Sum(nil))
	}
	return sums
}

// HashReader computes the requested digests over the full content of r in one pass, without buffering the content
// itself in memory.
func HashReader(r io.Reader, algorithms ...Algorithm) (map[Algorithm]string, error) {
	m := New(algorithms...)
	if _, err := io.Copy(m, r); err != nil {
		return nil, err
	}
	return m.Sums(), nil
}
