// Package compress implements the two transparent, in-place decompression schemes this engine needs to reconstruct
// file content from on-disk NTFS structures: LZNT1 (used natively by $DATA attributes whose
// AttributeFlagCompressed bit is set) and the "plain" XPRESS variants used by the Windows Overlay Filter (WOF) to
// store individually-compressed files behind a $REPARSE_POINT and a WofCompressedData stream.
package compress

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAlgorithm is returned by Decompress for an Algorithm value it has no decoder for. LZX, the fourth WOF
// algorithm (which unlike the three XPRESS variants uses a full Huffman-coded LZ77 scheme closer to the one used by
// the DEFLATE and LZX-in-CAB formats), has no Algorithm value in this package, so it never reaches Decompress.
var ErrUnsupportedAlgorithm = errors.New("compress: unsupported algorithm")

// Algorithm identifies a supported decompression scheme.
type Algorithm int

const (
	AlgorithmLZNT1 Algorithm = iota
	AlgorithmXpress4K
	AlgorithmXpress8K
	AlgorithmXpress16K
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmLZNT1:
		return "LZNT1"
	case AlgorithmXpress4K:
		return "XPRESS4K"
	case AlgorithmXpress8K:
		return "XPRESS8K"
	case AlgorithmXpress16K:
		return "XPRESS16K"
	}
	return "unknown"
}

// xpressChunkSize returns the uncompressed unit size an XPRESS algorithm operates on; LZNT1 uses self-describing 4096-byte
// chunks and is not driven by this table.
func (a Algorithm) xpressChunkSize() int {
	switch a {
	case AlgorithmXpress4K:
		return 4096
	case AlgorithmXpress8K:
		return 8192
	case AlgorithmXpress16K:
		return 16384
	}
	return 0
}

// Decompress decompresses the entirety of in using algorithm, returning exactly decompressedSize bytes (the caller
// is expected to know this length in advance, eg. from the attribute's StandardInformation or the WOF reparse
// point's recorded original file size).
func Decompress(algorithm Algorithm, in []byte, decompressedSize int64) ([]byte, error) {
	switch algorithm {
	case AlgorithmLZNT1:
		return decompressLZNT1(in, decompressedSize)
	case AlgorithmXpress4K, AlgorithmXpress8K, AlgorithmXpress16K:
		return decompressXpressStream(in, decompressedSize, algorithm.xpressChunkSize())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
}
