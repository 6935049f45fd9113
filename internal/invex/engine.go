// Package invex classifies single-cell RNA-seq reads as intronic, junction
// or exonic per gene and barcode.
//
// The engine streams position-sorted alignments against a forward-only
// window of annotated features. Genes are emitted and forgotten as soon as
// the stream passes their end, so memory is bounded by the genes that
// overlap the current position rather than by the genome.
package invex

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/scrinvex/internal/alignment"
	"github.com/inodb/scrinvex/internal/barcode"
	"github.com/inodb/scrinvex/internal/genome"
)

// progressInterval is how many alignments pass between progress logs and
// context checks.
const progressInterval = 1 << 20

// Options configures an Engine.
type Options struct {
	Filter    alignment.Filter
	AllowList barcode.AllowList
	// Summary, when non-nil, receives per-barcode totals at end of stream.
	Summary SummaryWriter
}

// Stats describes one run.
type Stats struct {
	Alignments   uint64 // records read
	Filtered     uint64 // dropped by the flag/quality filter
	Processed    uint64 // reached classification
	Counted      uint64 // credited at least one gene
	Intergenic   uint64
	Deduplicated uint64 // overlapped genes but every one had seen the UMI

	SkipCounts

	Unsorted     uint64 // position decreased within a chromosome
	Revisited    uint64 // chromosome seen again after being left
	GenesFlushed uint64
	RowsWritten  uint64
	SummaryRows  uint64
}

// Engine owns the window, ledger and aggregator for a single run. It is not
// safe for concurrent use.
type Engine struct {
	features *genome.FeatureSet
	contigs  []genome.ChromID
	filter   alignment.Filter

	window     *Window
	ledger     *Ledger
	agg        *Aggregator
	classifier *Classifier
	emitter    *Emitter
	rows       RowWriter
	summary    SummaryWriter

	logger  *zap.Logger
	stats   Stats
	lastPos int64
	visited map[genome.ChromID]bool
	blocks  []genome.AlignedBlock
}

// NewEngine creates an engine over the annotation. contigs maps each
// alignment reference id to its chromosome, as returned by
// FeatureSet.Reconcile. Feature groups are taken from the set as their
// chromosome is reached.
func NewEngine(features *genome.FeatureSet, contigs []genome.ChromID, rows RowWriter, opts Options) *Engine {
	ledger := NewLedger()
	agg := NewAggregator(opts.Summary != nil)
	return &Engine{
		features:   features,
		contigs:    contigs,
		filter:     opts.Filter,
		window:     NewWindow(),
		ledger:     ledger,
		agg:        agg,
		classifier: NewClassifier(ledger, agg, opts.AllowList),
		emitter:    NewEmitter(agg, ledger, rows),
		rows:       rows,
		summary:    opts.Summary,
		logger:     zap.NewNop(),
		visited:    make(map[genome.ChromID]bool),
	}
}

// SetLogger sets the logger for warning and progress messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Run processes every alignment of src and then finishes the run. If ctx is
// cancelled the run stops with ctx's error and nothing further is emitted.
func (e *Engine) Run(ctx context.Context, src alignment.Source) (Stats, error) {
	for {
		a, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return e.stats, ctx.Err()
			}
			return e.stats, fmt.Errorf("%w: %w", ErrInput, err)
		}
		if a == nil {
			break
		}
		if err := e.Process(a); err != nil {
			return e.stats, err
		}
		if e.stats.Alignments%progressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return e.stats, err
			}
			e.logger.Debug("progress",
				zap.Uint64("alignments", e.stats.Alignments),
				zap.String("chrom", e.features.Index.Name(e.window.Chrom())),
				zap.Int64("pos", e.lastPos),
				zap.Int("window", e.window.Len()),
				zap.Int("ledger_genes", e.ledger.Len()))
		}
	}
	// An interrupted stream must not be flushed as if it were complete.
	if err := ctx.Err(); err != nil {
		return e.stats, err
	}
	return e.Finish()
}

// Process handles one alignment.
func (e *Engine) Process(a *alignment.Alignment) error {
	e.stats.Alignments++
	if !e.filter.Pass(a) {
		e.stats.Filtered++
		return nil
	}
	if a.RefID >= len(e.contigs) {
		return fmt.Errorf("%w: record %q references contig %d, header has %d",
			ErrInput, a.Name, a.RefID, len(e.contigs))
	}

	chrom := e.contigs[a.RefID]
	if chrom != e.window.Chrom() {
		if err := e.switchChromosome(chrom); err != nil {
			return err
		}
	} else if a.Pos < e.lastPos {
		e.stats.Unsorted++
		e.logger.Warn("alignments are not sorted by position; results will be incorrect",
			zap.String("read", a.Name),
			zap.String("chrom", e.features.Index.Name(chrom)),
			zap.Int64("pos", a.Pos),
			zap.Int64("prev_pos", e.lastPos))
	}
	e.lastPos = a.Pos

	if err := e.emitter.FlushAll(e.window.Advance(a.Pos)); err != nil {
		return err
	}

	e.blocks = a.Blocks(chrom, e.blocks[:0])
	e.stats.Processed++
	switch e.classifier.Classify(Read{
		Barcode:    a.Barcode,
		HasBarcode: a.HasBarcode,
		UMI:        a.UMI,
		HasUMI:     a.HasUMI,
		Blocks:     e.blocks,
	}, e.window) {
	case OutcomeCounted:
		e.stats.Counted++
	case OutcomeIntergenic:
		e.stats.Intergenic++
	case OutcomeDuplicate:
		e.stats.Deduplicated++
	}
	return nil
}

// switchChromosome flushes the residual window and loads the new
// chromosome's features. A chromosome that was already left keeps an empty
// window: its features were flushed and are never reloaded.
func (e *Engine) switchChromosome(chrom genome.ChromID) error {
	if err := e.emitter.FlushAll(e.window.Drain()); err != nil {
		return err
	}
	if e.visited[chrom] {
		e.stats.Revisited++
		e.logger.Warn("chromosome revisited; alignments are not sorted",
			zap.String("chrom", e.features.Index.Name(chrom)))
	}
	e.visited[chrom] = true
	e.window.Load(chrom, e.features.Take(chrom))
	e.lastPos = 0
	return nil
}

// Finish flushes the remaining window, writes the summary and flushes the
// sinks. It returns the run statistics.
func (e *Engine) Finish() (Stats, error) {
	if err := e.emitter.FlushAll(e.window.Drain()); err != nil {
		return e.stats, err
	}
	if err := e.rows.Flush(); err != nil {
		return e.stats, fmt.Errorf("%w: flush rows: %w", ErrOutput, err)
	}

	if e.summary != nil {
		rows := e.agg.Summary()
		if err := e.summary.WriteSummary(rows); err != nil {
			return e.stats, fmt.Errorf("%w: write summary: %w", ErrOutput, err)
		}
		if err := e.summary.Flush(); err != nil {
			return e.stats, fmt.Errorf("%w: flush summary: %w", ErrOutput, err)
		}
		e.stats.SummaryRows = uint64(len(rows))
	}

	e.stats.SkipCounts = e.agg.Skipped()
	e.stats.GenesFlushed = e.emitter.genes
	e.stats.RowsWritten = e.emitter.rows
	e.warnSkipped()
	return e.stats, nil
}

func (e *Engine) warnSkipped() {
	s := e.stats
	if s.MissingBarcode > 0 {
		e.logger.Warn("reads skipped for missing barcode tag", zap.Uint64("reads", s.MissingBarcode))
	}
	if s.MissingUMI > 0 {
		e.logger.Warn("reads skipped for missing UMI tag", zap.Uint64("reads", s.MissingUMI))
	}
	if s.BarcodeNotAllowed > 0 {
		e.logger.Warn("reads skipped for barcodes not in the allow-list", zap.Uint64("reads", s.BarcodeNotAllowed))
	}
	if s.Unsorted > 0 || s.Revisited > 0 {
		e.logger.Warn("input was not coordinate sorted; counts are unreliable",
			zap.Uint64("position_decreases", s.Unsorted),
			zap.Uint64("chromosome_revisits", s.Revisited))
	}
}
