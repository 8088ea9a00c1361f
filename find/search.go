package find

import "io"

// searchWindowSize is the sliding read window contains() uses when scanning a stream for a needle, matching §4.4
// item 6's "Boyer-Moore search over a sliding 4 MiB window".
const searchWindowSize = 4 * 1024 * 1024

// horspoolTable builds the bad-character shift table for Boyer-Moore-Horspool, mapping each byte value to how far
// the search may safely advance when that byte causes a mismatch at the needle's last position.
func horspoolTable(needle []byte) [256]int {
	var table [256]int
	n := len(needle)
	for i := range table {
		table[i] = n
	}
	for i := 0; i < n-1; i++ {
		table[needle[i]] = n - 1 - i
	}
	return table
}

// horspoolIndex returns the offset of the first occurrence of needle in haystack, or -1 if absent, using the
// Boyer-Moore-Horspool algorithm (single-byte bad-character shift, good enough for the short binary/text needles
// this engine searches for).
func horspoolIndex(haystack, needle []byte) int {
	n := len(needle)
	if n == 0 {
		return 0
	}
	if len(haystack) < n {
		return -1
	}
	table := horspoolTable(needle)
	last := n - 1

	pos := 0
	for pos <= len(haystack)-n {
		i := last
		for i >= 0 && haystack[pos+i] == needle[i] {
			i--
		}
		if i < 0 {
			return pos
		}
		pos += table[haystack[pos+last]]
	}
	return -1
}

// contains reports whether needle appears anywhere in r, read in searchWindowSize chunks with a needle_len-1 byte
// overlap carried between windows so a hit straddling a window boundary is never missed.
func contains(r io.Reader, needle []byte) (bool, error) {
	if len(needle) == 0 {
		return true, nil
	}
	overlap := len(needle) - 1
	window := make([]byte, 0, searchWindowSize+overlap)
	buf := make([]byte, searchWindowSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			window = append(window, buf[:n]...)
			if horspoolIndex(window, needle) >= 0 {
				return true, nil
			}
			if len(window) > overlap {
				window = append(window[:0], window[len(window)-overlap:]...)
			}
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
