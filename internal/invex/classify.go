package invex

import (
	"github.com/inodb/scrinvex/internal/barcode"
	"github.com/inodb/scrinvex/internal/genome"
)

// Read is the part of an alignment the classifier looks at.
type Read struct {
	Barcode    string
	HasBarcode bool
	UMI        string
	HasUMI     bool
	Blocks     []genome.AlignedBlock
}

// Outcome reports what a classification pass did with a read.
type Outcome uint8

const (
	OutcomeMissingBarcode Outcome = iota
	OutcomeMissingUMI
	OutcomeBarcodeNotAllowed
	// OutcomeIntergenic: no block overlapped any gene.
	OutcomeIntergenic
	// OutcomeCounted: at least one gene was credited.
	OutcomeCounted
	// OutcomeDuplicate: every overlapped gene had already credited the UMI.
	// Such a read did overlap a gene, so it is not counted as intergenic.
	OutcomeDuplicate
)

// geneLengths accumulates one gene's coverage during a single read.
type geneLengths struct {
	genic  int64
	exonic int64
	sense  bool
	// strandSet pins sense to the first gene block seen for this read.
	strandSet bool
}

// Classifier turns a read's blocks into per-gene category increments.
type Classifier struct {
	ledger *Ledger
	agg    *Aggregator
	allow  barcode.AllowList

	// per-read scratch, reset on every call
	lengths map[string]*geneLengths
	order   []string
	hits    []*genome.Feature
}

// NewClassifier creates a classifier crediting agg and consulting ledger.
// A nil allow-list admits every barcode.
func NewClassifier(ledger *Ledger, agg *Aggregator, allow barcode.AllowList) *Classifier {
	return &Classifier{
		ledger:  ledger,
		agg:     agg,
		allow:   allow,
		lengths: make(map[string]*geneLengths),
	}
}

// Classify credits the genes of w that the read overlaps.
func (c *Classifier) Classify(r Read, w *Window) Outcome {
	if !r.HasBarcode {
		c.agg.RecordMissingBarcode()
		return OutcomeMissingBarcode
	}
	if !r.HasUMI {
		c.agg.RecordMissingUMI()
		return OutcomeMissingUMI
	}
	if !c.allow.Allows(r.Barcode) {
		c.agg.RecordSkippedBarcode()
		return OutcomeBarcodeNotAllowed
	}

	clear(c.lengths)
	c.order = c.order[:0]
	geneHit := false

	for _, b := range r.Blocks {
		c.hits = w.Overlapping(b, c.hits[:0])
		for _, f := range c.hits {
			if f.IsGene() {
				geneHit = true
			}
			if c.ledger.Seen(f.GeneID, r.UMI) {
				continue
			}
			gl := c.entry(f.GeneID)
			n := genome.Overlap(f.Start, f.End, b.Start, b.End)
			switch f.Kind {
			case genome.Exon:
				gl.exonic += n
			case genome.Gene:
				gl.genic += n
				if !gl.strandSet {
					gl.sense = f.Strand == b.Strand
					gl.strandSet = true
				}
			}
		}
	}

	if !geneHit {
		c.agg.RecordIntergenic(r.Barcode)
		return OutcomeIntergenic
	}

	credited := false
	for _, geneID := range c.order {
		gl := c.lengths[geneID]
		if gl.genic == 0 {
			continue
		}
		c.agg.Record(geneID, r.Barcode, categorize(gl.genic, gl.exonic), gl.sense)
		c.ledger.MarkSeen(geneID, r.UMI)
		credited = true
	}
	if !credited {
		return OutcomeDuplicate
	}
	return OutcomeCounted
}

func (c *Classifier) entry(geneID string) *geneLengths {
	gl, ok := c.lengths[geneID]
	if !ok {
		gl = &geneLengths{}
		c.lengths[geneID] = gl
		c.order = append(c.order, geneID)
	}
	return gl
}

// categorize applies the intron/junction/exon rule. Exonic length may exceed
// genic length when exon records of several transcripts cover the same
// bases; that case is exonic.
func categorize(genic, exonic int64) Category {
	if genic > exonic {
		if exonic > 0 {
			return CategoryJunction
		}
		return CategoryIntron
	}
	return CategoryExon
}
