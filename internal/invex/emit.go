package invex

import (
	"fmt"

	"github.com/inodb/scrinvex/internal/genome"
)

// RowWriter receives the rows of each gene as it is flushed.
type RowWriter interface {
	WriteRows(rows []Row) error
	Flush() error
}

// SummaryWriter receives the per-barcode totals once at end of stream.
type SummaryWriter interface {
	WriteSummary(rows []SummaryRow) error
	Flush() error
}

// Emitter writes a gene's counts when the gene leaves the window and then
// releases its aggregator rows and ledger entries.
type Emitter struct {
	agg    *Aggregator
	ledger *Ledger
	w      RowWriter

	genes uint64
	rows  uint64
}

// NewEmitter creates an emitter writing to w.
func NewEmitter(agg *Aggregator, ledger *Ledger, w RowWriter) *Emitter {
	return &Emitter{agg: agg, ledger: ledger, w: w}
}

// Flush emits an evicted feature. Exons carry no rows of their own and are
// dropped.
func (e *Emitter) Flush(f *genome.Feature) error {
	if !f.IsGene() {
		return nil
	}
	rows := e.agg.Take(f.GeneID)
	e.genes++
	if len(rows) > 0 {
		if err := e.w.WriteRows(rows); err != nil {
			return fmt.Errorf("%w: write rows for %s: %w", ErrOutput, f.GeneID, err)
		}
		e.rows += uint64(len(rows))
	}
	e.ledger.Evict(f.GeneID)
	return nil
}

// FlushAll emits every feature in order.
func (e *Emitter) FlushAll(features []genome.Feature) error {
	for i := range features {
		if err := e.Flush(&features[i]); err != nil {
			return err
		}
	}
	return nil
}
