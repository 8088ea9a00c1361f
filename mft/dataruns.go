package mft

import (
	"fmt"
)

// Extent represents one decoded, absolute fragment of a non-resident attribute's data: a contiguous run of
// LengthInClusters clusters starting at logical cluster LCN within the volume, covering virtual cluster numbers
// [VCN, VCN+LengthInClusters) of the attribute. IsSparse extents carry no real on-disk clusters; LCN is reported as
// zero and readers are expected to produce zero-filled bytes instead of reading the volume.
type Extent struct {
	VCN              uint64
	LCN              uint64
	LengthInClusters uint64
	IsSparse         bool
}

// DecodeExtents decodes a mapping-pairs byte stream (as stored in a non-resident Attribute's Data) into an ordered
// list of Extents. startVCN is the attribute's LowestVCN, used to seed the running VCN for continuation fragments
// that don't start at VCN 0.
//
// Each mapping pair is <header byte><length bytes><offset bytes>. The header byte's low nibble is the byte count of
// the (unsigned) length field, the high nibble is the byte count of the (signed) offset field. A zero header byte
// terminates the stream. A pair whose decoded offset delta is zero denotes a sparse run, whether the offset field is
// entirely absent (offsetLength == 0) or explicitly encodes zero: the extent carries no LCN and IsSparse is set.
// Otherwise the offset field is a signed delta (sign-extended from its top bit) added to the running absolute LCN.
func DecodeExtents(b []byte, startVCN uint64) ([]Extent, error) {
	runs, err := ParseDataRuns(b)
	if err != nil {
		return nil, err
	}

	extents := make([]Extent, 0, len(runs))
	vcn := startVCN
	lcn := int64(0)
	for _, run := range runs {
		// Per the specification, an offset field whose decoded delta is zero denotes a sparse extent, regardless
		// of whether the delta was explicitly encoded as zero or the offset field was omitted entirely (both decode
		// to the same zero delta here).
		sparse := run.OffsetCluster == 0
		if !sparse {
			lcn += run.OffsetCluster
		}
		extentLCN := uint64(0)
		if !sparse {
			if lcn < 0 {
				return nil, fmt.Errorf("decoded negative absolute LCN %d", lcn)
			}
			extentLCN = uint64(lcn)
		}
		extents = append(extents, Extent{
			VCN:              vcn,
			LCN:              extentLCN,
			LengthInClusters: run.LengthInClusters,
			IsSparse:         sparse,
		})
		vcn += run.LengthInClusters
	}
	return extents, nil
}

// ExtentsClusterCount sums the LengthInClusters of every extent in the list.
func ExtentsClusterCount(extents []Extent) uint64 {
	total := uint64(0)
	for _, e := range extents {
		total += e.LengthInClusters
	}
	return total
}

// ReconcileSize adjusts an assembled extent list (for an attribute's LowestVCN==0 fragment) so that the total
// clusters it describes matches the clusters implied by fileSize, per the specification's "size reconciliation"
// rule: if the extents already cover more than fileSize needs, the tail is trimmed; if they cover less, a synthetic
// trailing sparse extent is appended for the deficit. bytesPerCluster must be the volume's cluster size.
func ReconcileSize(extents []Extent, fileSize uint64, bytesPerCluster uint64) []Extent {
	if bytesPerCluster == 0 {
		return extents
	}
	wantClusters := (fileSize + bytesPerCluster - 1) / bytesPerCluster
	gotClusters := ExtentsClusterCount(extents)

	if gotClusters == wantClusters {
		return extents
	}

	if gotClusters > wantClusters {
		deficit := gotClusters - wantClusters
		trimmed := make([]Extent, 0, len(extents))
		for i := len(extents) - 1; i >= 0; i-- {
			e := extents[i]
			if deficit == 0 {
				trimmed = append([]Extent{e}, trimmed...)
				continue
			}
			if e.LengthInClusters <= deficit {
				deficit -= e.LengthInClusters
				continue
			}
			e.LengthInClusters -= deficit
			deficit = 0
			trimmed = append([]Extent{e}, trimmed...)
		}
		return trimmed
	}

	deficit := wantClusters - gotClusters
	nextVCN := uint64(0)
	if len(extents) > 0 {
		last := extents[len(extents)-1]
		nextVCN = last.VCN + last.LengthInClusters
	}
	return append(extents, Extent{VCN: nextVCN, LCN: 0, LengthInClusters: deficit, IsSparse: true})
}
