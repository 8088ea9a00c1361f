package walker

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/compress"
	"github.com/dfirkit/ntfscore/mft"
	"github.com/dfirkit/ntfscore/volume"
)

// CompressionPolicy governs how OpenStream handles a compressed $DATA attribute.
type CompressionPolicy int

const (
	// CompressionBestEffort decodes when the algorithm is supported and falls back to the raw (still-compressed)
	// bytes otherwise. This is the default.
	CompressionBestEffort CompressionPolicy = iota
	// CompressionDecompress requires decoding to succeed, returning an error otherwise.
	CompressionDecompress
	// CompressionRawOnly never decodes, always returning the attribute's raw on-disk bytes.
	CompressionRawOnly
)

func (p CompressionPolicy) String() string {
	switch p {
	case CompressionDecompress:
		return "decompress"
	case CompressionRawOnly:
		return "raw-only"
	}
	return "best-effort"
}

// OpenStream returns an io.Reader over attr's logical content, honoring policy for attributes flagged compressed.
// NTFS itself only ever LZNT1-compresses a $DATA attribute directly (WOF compression is a different mechanism,
// carried in an adjacent named stream and reparse point, see mft.IsWofCompressedDataStream); OpenStream does not
// attempt WOF decompression, since that requires the reparse point's declared algorithm, not just the attribute
// flags.
func OpenStream(vol volume.Reader, geom bootsect.Geometry, attr mft.Attribute, policy CompressionPolicy) (io.Reader, error) {
	if attr.Resident {
		return bytes.NewReader(attr.Data), nil
	}

	raw, err := readAttributeBytes(vol, geom, attr)
	if err != nil {
		return nil, fmt.Errorf("walker: unable to read attribute data: %w", err)
	}

	if !attr.Flags.Is(mft.AttributeFlagsCompressed) {
		return bytes.NewReader(raw), nil
	}
	return openCompressedStream(raw, attr.ActualSize, policy)
}

// openCompressedStream applies the requested CompressionPolicy to raw, already-read compressed bytes.
func openCompressedStream(raw []byte, actualSize uint64, policy CompressionPolicy) (io.Reader, error) {
	if policy == CompressionRawOnly {
		return bytes.NewReader(raw), nil
	}
	decoded, err := compress.Decompress(compress.AlgorithmLZNT1, raw, int64(actualSize))
	if err != nil {
		if policy == CompressionDecompress {
			return nil, fmt.Errorf("walker: unable to decompress $DATA: %w", err)
		}
		return bytes.NewReader(raw), nil
	}
	return bytes.NewReader(decoded), nil
}
