package invex

import "sort"

// Category is the coverage class of one read on one gene.
type Category uint8

const (
	// CategoryIntron: the read covers the gene but none of its exons.
	CategoryIntron Category = iota
	// CategoryJunction: the read covers both exonic and non-exonic bases.
	CategoryJunction
	// CategoryExon: all genic coverage is exonic.
	CategoryExon
)

func (c Category) String() string {
	switch c {
	case CategoryIntron:
		return "intron"
	case CategoryJunction:
		return "junction"
	case CategoryExon:
		return "exon"
	default:
		return "unknown"
	}
}

// Counts holds the five read counters kept per gene and barcode.
type Counts struct {
	Introns   uint64
	Junctions uint64
	Exons     uint64
	Sense     uint64
	Antisense uint64
}

// Add increments the category counter and one of sense/antisense.
func (c *Counts) Add(cat Category, sense bool) {
	switch cat {
	case CategoryIntron:
		c.Introns++
	case CategoryJunction:
		c.Junctions++
	case CategoryExon:
		c.Exons++
	}
	if sense {
		c.Sense++
	} else {
		c.Antisense++
	}
}

// Reads returns the number of classified reads, intron + junction + exon.
func (c Counts) Reads() uint64 {
	return c.Introns + c.Junctions + c.Exons
}

// IsZero returns true if every counter is zero.
func (c Counts) IsZero() bool {
	return c == (Counts{})
}

// Row is one gene/barcode output line.
type Row struct {
	GeneID  string
	Barcode string
	Counts
}

// SummaryRow is the per-barcode total over all genes.
type SummaryRow struct {
	Barcode string
	Counts
	Intergenic uint64
}

// SkipCounts tallies reads dropped before classification.
type SkipCounts struct {
	MissingBarcode    uint64
	MissingUMI        uint64
	BarcodeNotAllowed uint64
}

// Aggregator holds per-gene, per-barcode counts plus the barcode-level
// summary and intergenic tables. Gene rows are created on first increment
// and removed when taken for emission.
type Aggregator struct {
	genes      map[string]map[string]*Counts
	summary    map[string]*Counts
	intergenic map[string]uint64
	skipped    SkipCounts
}

// NewAggregator creates an aggregator. With summary set, every increment is
// mirrored into a per-barcode total.
func NewAggregator(summary bool) *Aggregator {
	a := &Aggregator{
		genes:      make(map[string]map[string]*Counts),
		intergenic: make(map[string]uint64),
	}
	if summary {
		a.summary = make(map[string]*Counts)
	}
	return a
}

// Record counts one classified read for a gene and barcode.
func (a *Aggregator) Record(geneID, barcode string, cat Category, sense bool) {
	byBarcode, ok := a.genes[geneID]
	if !ok {
		byBarcode = make(map[string]*Counts)
		a.genes[geneID] = byBarcode
	}
	c, ok := byBarcode[barcode]
	if !ok {
		c = &Counts{}
		byBarcode[barcode] = c
	}
	c.Add(cat, sense)

	if a.summary != nil {
		s, ok := a.summary[barcode]
		if !ok {
			s = &Counts{}
			a.summary[barcode] = s
		}
		s.Add(cat, sense)
	}
}

// RecordIntergenic counts a read that overlapped no gene.
func (a *Aggregator) RecordIntergenic(barcode string) {
	a.intergenic[barcode]++
}

// RecordMissingBarcode counts a read without a barcode tag.
func (a *Aggregator) RecordMissingBarcode() {
	a.skipped.MissingBarcode++
}

// RecordMissingUMI counts a read without a UMI tag.
func (a *Aggregator) RecordMissingUMI() {
	a.skipped.MissingUMI++
}

// RecordSkippedBarcode counts a read whose barcode is not allowed.
func (a *Aggregator) RecordSkippedBarcode() {
	a.skipped.BarcodeNotAllowed++
}

// Skipped returns the pre-classification skip tallies.
func (a *Aggregator) Skipped() SkipCounts {
	return a.skipped
}

// Intergenic returns the intergenic count for a barcode.
func (a *Aggregator) Intergenic(barcode string) uint64 {
	return a.intergenic[barcode]
}

// Pending returns the number of genes holding unemitted rows.
func (a *Aggregator) Pending() int {
	return len(a.genes)
}

// Take removes the gene's rows and returns the non-zero ones sorted by
// barcode.
func (a *Aggregator) Take(geneID string) []Row {
	byBarcode, ok := a.genes[geneID]
	if !ok {
		return nil
	}
	delete(a.genes, geneID)

	rows := make([]Row, 0, len(byBarcode))
	for bc, c := range byBarcode {
		if c.IsZero() {
			continue
		}
		rows = append(rows, Row{GeneID: geneID, Barcode: bc, Counts: *c})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Barcode < rows[j].Barcode })
	return rows
}

// Summary returns one row per barcode with any non-zero total, sorted by
// barcode. It is empty when the aggregator was built without summary.
func (a *Aggregator) Summary() []SummaryRow {
	if a.summary == nil {
		return nil
	}
	rows := make([]SummaryRow, 0, len(a.summary)+len(a.intergenic))
	for bc, c := range a.summary {
		rows = append(rows, SummaryRow{Barcode: bc, Counts: *c, Intergenic: a.intergenic[bc]})
	}
	for bc, n := range a.intergenic {
		if _, ok := a.summary[bc]; !ok {
			rows = append(rows, SummaryRow{Barcode: bc, Intergenic: n})
		}
	}

	out := rows[:0]
	for _, r := range rows {
		if !r.Counts.IsZero() || r.Intergenic > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out
}
