package genome

import (
	"fmt"
	"sort"
)

// FeatureSet holds the loaded annotation grouped by chromosome, each group
// sorted by start. Groups are handed out once with Take.
type FeatureSet struct {
	Index   *ChromosomeIndex
	byChrom map[ChromID][]Feature
	count   int
}

// NewFeatureSet creates an empty feature set over the given index.
func NewFeatureSet(index *ChromosomeIndex) *FeatureSet {
	return &FeatureSet{
		Index:   index,
		byChrom: make(map[ChromID][]Feature),
	}
}

// Add appends a feature to its chromosome group. Call Sort once all
// features are added.
func (s *FeatureSet) Add(f Feature) {
	s.byChrom[f.Chrom] = append(s.byChrom[f.Chrom], f)
	s.count++
}

// Sort orders every chromosome group by start. The sort is stable so that
// records with equal starts keep file order.
func (s *FeatureSet) Sort() {
	for _, feats := range s.byChrom {
		sort.SliceStable(feats, func(i, j int) bool {
			return feats[i].Start < feats[j].Start
		})
	}
}

// Len returns the number of features added.
func (s *FeatureSet) Len() int {
	return s.count
}

// Has returns true if any feature remains for the chromosome.
func (s *FeatureSet) Has(chrom ChromID) bool {
	return len(s.byChrom[chrom]) > 0
}

// Chromosomes returns the chromosomes with features, in id order.
func (s *FeatureSet) Chromosomes() []ChromID {
	chroms := make([]ChromID, 0, len(s.byChrom))
	for c := range s.byChrom {
		chroms = append(chroms, c)
	}
	sort.Slice(chroms, func(i, j int) bool { return chroms[i] < chroms[j] })
	return chroms
}

// Features returns the features of a chromosome without removing them.
func (s *FeatureSet) Features(chrom ChromID) []Feature {
	return s.byChrom[chrom]
}

// Take removes and returns the sorted features of a chromosome. A second
// Take for the same chromosome returns nil.
func (s *FeatureSet) Take(chrom ChromID) []Feature {
	feats := s.byChrom[chrom]
	delete(s.byChrom, chrom)
	return feats
}

// Reconcile interns every alignment contig name and returns the id for each,
// in input order. It fails with ErrNoSharedContigs if none of the contigs
// carries annotation.
func (s *FeatureSet) Reconcile(contigs []string) ([]ChromID, error) {
	ids := make([]ChromID, len(contigs))
	shared := 0
	for i, name := range contigs {
		ids[i] = s.Index.Intern(name)
		if s.Has(ids[i]) {
			shared++
		}
	}
	if shared == 0 {
		return nil, fmt.Errorf("%d alignment contigs, %d annotated chromosomes: %w",
			len(contigs), len(s.byChrom), ErrNoSharedContigs)
	}
	return ids, nil
}
