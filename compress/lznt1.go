package compress

import (
	"encoding/binary"
	"fmt"
)

const lznt1ChunkSize = 4096

// decompressLZNT1 decompresses an LZNT1 stream (the scheme NTFS itself uses for AttributeFlagCompressed $DATA
// attributes). The stream is a sequence of self-describing chunks, each covering up to 4096 bytes of decompressed
// output; decompression stops once decompressedSize bytes have been produced or the stream is exhausted.
func decompressLZNT1(in []byte, decompressedSize int64) ([]byte, error) {
	out := make([]byte, 0, decompressedSize)

	for len(out) < int(decompressedSize) && len(in) > 0 {
		if len(in) < 2 {
			return nil, fmt.Errorf("compress: truncated LZNT1 chunk header")
		}
		header := binary.LittleEndian.Uint16(in[:2])
		if header == 0 {
			break
		}

		chunkDataLength := int(header&0x0FFF) + 1
		isCompressed := header&0x8000 != 0

		in = in[2:]
		if len(in) < chunkDataLength {
			return nil, fmt.Errorf("compress: LZNT1 chunk declares %d bytes but only %d remain", chunkDataLength, len(in))
		}
		chunkData := in[:chunkDataLength]
		in = in[chunkDataLength:]

		if !isCompressed {
			out = append(out, chunkData...)
			continue
		}

		chunkOut, err := decompressLZNT1Chunk(chunkData)
		if err != nil {
			return nil, err
		}
		out = append(out, chunkOut...)
	}

	if int64(len(out)) > decompressedSize {
		out = out[:decompressedSize]
	}
	if int64(len(out)) < decompressedSize {
		out = append(out, make([]byte, decompressedSize-int64(len(out)))...)
	}
	return out, nil
}

// decompressLZNT1Chunk decompresses a single compressed chunk's token stream into at most lznt1ChunkSize bytes. The
// length/displacement split point of each 2-byte match token depends on how far into the chunk's own output buffer
// the match occurs, which is what distinguishes LZNT1 from the fixed-width XPRESS match token.
func decompressLZNT1Chunk(data []byte) ([]byte, error) {
	out := make([]byte, 0, lznt1ChunkSize)

	pos := 0
	for pos < len(data) && len(out) < lznt1ChunkSize {
		flags := data[pos]
		pos++

		for bit := 0; bit < 8 && pos < len(data) && len(out) < lznt1ChunkSize; bit++ {
			if flags&(1<<uint(bit)) == 0 {
				out = append(out, data[pos])
				pos++
				continue
			}

			if pos+2 > len(data) {
				return nil, fmt.Errorf("compress: truncated LZNT1 match token")
			}
			token := binary.LittleEndian.Uint16(data[pos : pos+2])
			pos += 2

			displacementBits := lznt1SplitBits(len(out))
			lengthBits := 16 - displacementBits
			lengthMask := uint16(1)<<uint(lengthBits) - 1

			length := int(token&lengthMask) + 3
			displacement := int(token>>uint(lengthBits)) + 1

			if displacement > len(out) {
				return nil, fmt.Errorf("compress: LZNT1 match displacement %d exceeds available output %d", displacement, len(out))
			}

			start := len(out) - displacement
			for i := 0; i < length; i++ {
				out = append(out, out[start+i])
			}
		}
	}

	return out, nil
}

// lznt1SplitBits returns the number of high-order bits of a match token that encode the displacement, given the
// current output position within the chunk. The split grows as the chunk fills (more bits are needed to address a
// larger back-reference window), floored at 4 bits of displacement (a token can never encode a length field wider
// than 12 bits).
func lznt1SplitBits(outputPosition int) int {
	bits := 4
	for (1 << uint(bits)) < outputPosition {
		bits++
	}
	return bits
}
