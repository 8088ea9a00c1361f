/*
	Package fragment contains a Reader which can read Fragments which may be scattered around a volume (and perhaps even
	not in sequence). Typically these could be translated from MFT attribute DataRuns. To convert MFT attribute DataRuns
	to Fragments for use in the fragment Reader, use mft.DataRunsToFragments().

	Implementation notes

	When the fragment Reader is near the end of a fragment and a Read() call requests more data than what is left in
	the current fragment, the Reader will exhaust only the current fragment and return that data (which could be less
	than len(p)). A next Read() call will then seek to the next fragment and continue reading there. When the last
	fragment is exhausted by a Read(), it will return the remaining bytes read and a nil error. Any subsequent Read()
	calls after that will return 0, io.EOF.

	When accessing a new fragment, the Reader will seek using the absolute Offset in the fragment from the start
	of the contained io.ReadSeeker (using io.SeekStart).
*/
package fragment

import (
	"fmt"
	"io"
)

// Fragment contains an absolute Offset in bytes from the start of a volume and a Length of the fragment, also in bytes.
type Fragment struct {
	Offset int64
	Length int64
}

// A fragment Reader will read data from the fragments in order. When one fragment is depleted, it will seek to the
// position of the next fragment and continue reading from there, until all fragments have been exhausted. When the last
// fragment has been exhaused, each subsequent Read() will return io.EOF.
type Reader struct {
	src       io.ReadSeeker
	fragments []Fragment
	idx       int
	remaining int64
}

// NewReader initializes a new Reader from the io.ReaderSeeker and fragments and returns a pointer to. Note that
// fragments may not be sequential in order, so the io.ReadSeeker should support seeking backwards (or rather, from the
// start).
func NewReader(src io.ReadSeeker, fragments []Fragment) *Reader {
	return &Reader{src: src, fragments: fragments, idx: -1, remaining: 0}
}

// TotalLength returns the sum of the Length of every Fragment, ie. the logical size of the data the Reader exposes.
func TotalLength(fragments []Fragment) int64 {
	total := int64(0)
	for _, f := range fragments {
		total += f.Length
	}
	return total
}

// Clone returns a new Reader over the same fragments using src as the backing io.ReadSeeker. src should be an
// independent handle (eg. obtained by cloning the original source) so that the original Reader's position is
// unaffected. The returned Reader starts at the logical beginning of the fragments.
func (r *Reader) Clone(src io.ReadSeeker) *Reader {
	fragments := make([]Fragment, len(r.fragments))
	copy(fragments, r.fragments)
	return NewReader(src, fragments)
}

// Seek implements io.Seeker over the logical, contiguous address space formed by concatenating the fragments in
// order. Only io.SeekStart and io.SeekCurrent/io.SeekEnd relative to the logical total length are supported.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	total := TotalLength(r.fragments)
	current := r.logicalPosition()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = current + offset
	case io.SeekEnd:
		target = total + offset
	default:
		return 0, fmt.Errorf("unknown whence value %d", whence)
	}

	if target < 0 || target > total {
		return 0, fmt.Errorf("seek target %d out of range [0, %d]", target, total)
	}

	remaining := target
	for i, f := range r.fragments {
		if remaining < f.Length || (remaining == f.Length && i == len(r.fragments)-1) {
			seekTo := f.Offset + remaining
			seeked, err := r.src.Seek(seekTo, io.SeekStart)
			if err != nil {
				return 0, fmt.Errorf("unable to seek to offset %d: %v", seekTo, err)
			}
			if seeked != seekTo {
				return 0, fmt.Errorf("wanted to seek to %d but reached %d", seekTo, seeked)
			}
			r.idx = i
			r.remaining = f.Length - remaining
			return target, nil
		}
		remaining -= f.Length
	}

	// target == total: position past the last byte of the last fragment
	r.idx = len(r.fragments)
	r.remaining = 0
	return target, nil
}

func (r *Reader) logicalPosition() int64 {
	pos := int64(0)
	for i := 0; i < r.idx && i < len(r.fragments); i++ {
		pos += r.fragments[i].Length
	}
	if r.idx >= 0 && r.idx < len(r.fragments) {
		pos += r.fragments[r.idx].Length - r.remaining
	}
	return pos
}

func (r *Reader) Read(p []byte) (n int, err error) {
	if r.idx >= len(r.fragments) {
		return 0, io.EOF
	}

	if len(p) == 0 {
		return 0, nil
	}

	if r.remaining == 0 {
		r.idx++
		if r.idx >= len(r.fragments) {
			return 0, io.EOF
		}
		next := r.fragments[r.idx]
		r.remaining = next.Length
		seeked, err := r.src.Seek(next.Offset, io.SeekStart)
		if err != nil {
			return 0, fmt.Errorf("unable to seek to next offset %d: %v", next.Offset, err)
		}
		if seeked != next.Offset {
			return 0, fmt.Errorf("wanted to seek to %d but reached %d", next.Offset, seeked)
		}
	}

	target := p
	if int64(len(p)) > r.remaining {
		target = p[:r.remaining]
	}

	n, err = io.ReadFull(r.src, target)
	r.remaining -= int64(n)
	return n, err
}
