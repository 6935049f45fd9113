// Package genome provides the annotation and alignment primitives shared by
// the scrinvex packages.
package genome

import "fmt"

// Strand is +1 (forward) or -1 (reverse).
type Strand int8

const (
	Forward Strand = 1
	Reverse Strand = -1
)

// ParseStrand converts a GTF strand column to a Strand.
func ParseStrand(s string) Strand {
	if s == "-" {
		return Reverse
	}
	return Forward
}

// String returns "+" or "-".
func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// FeatureKind distinguishes the annotation records the counter tracks.
type FeatureKind uint8

const (
	Gene FeatureKind = iota + 1
	Exon
)

func (k FeatureKind) String() string {
	switch k {
	case Gene:
		return "gene"
	case Exon:
		return "exon"
	default:
		return fmt.Sprintf("FeatureKind(%d)", uint8(k))
	}
}

// Feature is an annotated genomic interval. Coordinates are 0-based and
// half-open. For genes ID and GeneID are equal; exons carry the owning
// gene's id in GeneID.
type Feature struct {
	Chrom  ChromID
	Start  int64
	End    int64
	Kind   FeatureKind
	Strand Strand
	ID     string
	GeneID string
}

// IsGene returns true if the feature is a gene record.
func (f *Feature) IsGene() bool {
	return f.Kind == Gene
}

// Len returns the number of bases spanned by the feature.
func (f *Feature) Len() int64 {
	return f.End - f.Start
}

// AlignedBlock is one contiguous reference span of an alignment.
type AlignedBlock struct {
	Chrom  ChromID
	Start  int64
	End    int64
	Strand Strand
}

// Overlap returns the number of bases shared by [aStart,aEnd) and
// [bStart,bEnd), or 0 when they do not intersect.
func Overlap(aStart, aEnd, bStart, bEnd int64) int64 {
	n := min(aEnd, bEnd) - max(aStart, bStart)
	if n < 0 {
		return 0
	}
	return n
}

// Intersects returns true if the feature and block share at least one base.
func (f *Feature) Intersects(b AlignedBlock) bool {
	return f.Start < b.End && b.Start < f.End
}
