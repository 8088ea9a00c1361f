package compress

import (
	"encoding/binary"
	"fmt"
)

// decompressXpressStream decompresses a WOF "system compression" stream: a chunk table of cumulative compressed-end
// offsets (one uint32 per chunk boundary except the last, whose end is implicitly the end of the input) followed by
// the concatenated per-chunk XPRESS-compressed data. Every chunk decompresses to exactly chunkSize bytes of output,
// except the final chunk, which decompresses to whatever remainder decompressedSize leaves.
func decompressXpressStream(in []byte, decompressedSize int64, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("compress: invalid XPRESS chunk size %d", chunkSize)
	}
	if decompressedSize == 0 {
		return []byte{}, nil
	}

	chunkCount := int((decompressedSize + int64(chunkSize) - 1) / int64(chunkSize))
	tableEntries := chunkCount - 1
	tableBytes := tableEntries * 4
	if len(in) < tableBytes {
		return nil, fmt.Errorf("compress: XPRESS chunk table declares %d entries but input is only %d bytes", tableEntries, len(in))
	}

	boundaries := make([]int, chunkCount)
	for i := 0; i < tableEntries; i++ {
		boundaries[i] = int(binary.LittleEndian.Uint32(in[i*4 : i*4+4]))
	}
	boundaries[chunkCount-1] = len(in) - tableBytes

	out := make([]byte, 0, decompressedSize)
	dataStart := tableBytes
	prevEnd := 0
	for i := 0; i < chunkCount; i++ {
		end := boundaries[i]
		if end < prevEnd || dataStart+end > len(in) {
			return nil, fmt.Errorf("compress: invalid XPRESS chunk boundary at chunk %d", i)
		}
		chunkIn := in[dataStart+prevEnd : dataStart+end]
		prevEnd = end

		want := chunkSize
		if remaining := decompressedSize - int64(len(out)); remaining < int64(chunkSize) {
			want = int(remaining)
		}

		chunkOut, err := decompressXpressChunk(chunkIn, want)
		if err != nil {
			return nil, fmt.Errorf("compress: chunk %d: %w", i, err)
		}
		out = append(out, chunkOut...)
	}

	return out, nil
}

// decompressXpressChunk decompresses one buffer of plain (Huffman-less) XPRESS-encoded data into exactly want
// bytes. The format reads a 32-bit indicator word every 32 tokens, MSB first: a clear bit copies one literal byte,
// a set bit consumes a 16-bit match token encoding a length (low 3 bits, extended by one or two following bytes for
// longer matches) and a 13-bit displacement.
func decompressXpressChunk(in []byte, want int) ([]byte, error) {
	out := make([]byte, 0, want)

	pos := 0
	var indicator uint32
	indicatorBitsLeft := 0

	for len(out) < want {
		if indicatorBitsLeft == 0 {
			if pos+4 > len(in) {
				return nil, fmt.Errorf("truncated indicator word")
			}
			indicator = binary.LittleEndian.Uint32(in[pos : pos+4])
			pos += 4
			indicatorBitsLeft = 32
		}

		isMatch := indicator&0x80000000 != 0
		indicator <<= 1
		indicatorBitsLeft--

		if !isMatch {
			if pos >= len(in) {
				return nil, fmt.Errorf("truncated literal")
			}
			out = append(out, in[pos])
			pos++
			continue
		}

		if pos+2 > len(in) {
			return nil, fmt.Errorf("truncated match token")
		}
		matchBytes := binary.LittleEndian.Uint16(in[pos : pos+2])
		pos += 2

		length := int(matchBytes & 0x0007)
		displacement := int(matchBytes>>3) + 1

		if length == 7 {
			if pos >= len(in) {
				return nil, fmt.Errorf("truncated match length extension")
			}
			extra := int(in[pos])
			pos++
			length += extra
			if extra == 255 {
				if pos+2 > len(in) {
					return nil, fmt.Errorf("truncated 16-bit match length extension")
				}
				length = int(binary.LittleEndian.Uint16(in[pos : pos+2]))
				pos += 2
			}
		}
		length += 3

		if displacement > len(out) {
			return nil, fmt.Errorf("match displacement %d exceeds available output %d", displacement, len(out))
		}
		start := len(out) - displacement
		for i := 0; i < length && len(out) < want; i++ {
			out = append(out, out[start+i])
		}
	}

	return out, nil
}
