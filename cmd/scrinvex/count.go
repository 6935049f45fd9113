package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/scrinvex/internal/alignment"
	"github.com/inodb/scrinvex/internal/barcode"
	"github.com/inodb/scrinvex/internal/duckdb"
	"github.com/inodb/scrinvex/internal/gtf"
	"github.com/inodb/scrinvex/internal/invex"
	"github.com/inodb/scrinvex/internal/output"
)

// countFlags maps config keys to their command-line flag names.
var countFlags = map[string]string{
	"barcode_tag":      "barcode-tag",
	"umi_tag":          "umi-tag",
	"min_mapq":         "min-mapq",
	"skip_duplicates":  "skip-duplicates",
	"barcodes":         "barcodes",
	"summary":          "summary",
	"duckdb":           "duckdb",
	"annotation_cache": "annotation-cache",
	"strip_chr":        "strip-chr",
	"prefetch":         "prefetch",
	"threads":          "threads",
}

func addCountFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("barcode-tag", alignment.DefaultBarcodeTag, "Alignment tag holding the cell barcode")
	f.String("umi-tag", alignment.DefaultUMITag, "Alignment tag holding the UMI")
	f.Int("min-mapq", 0, "Minimum mapping quality")
	f.Bool("skip-duplicates", false, "Skip alignments flagged as PCR/optical duplicates")
	f.StringP("barcodes", "b", "", "Barcode allow-list, one per line (optionally gzipped)")
	f.StringP("summary", "s", "", "Write per-barcode totals to this file")
	f.String("duckdb", "", "Also store counts in this DuckDB database")
	f.String("annotation-cache", "", "Directory for the parsed annotation snapshot")
	f.Bool("strip-chr", false, "Ignore a leading \"chr\" when matching contig names")
	f.Int("prefetch", 1024, "Alignments to read ahead on a separate goroutine (0 disables)")
	f.Int("threads", 0, "BAM decompression goroutines (0 uses all CPUs)")

	for key, name := range countFlags {
		viper.BindPFlag(key, f.Lookup(name))
	}
}

// countOptions holds the resolved settings of one counting run.
type countOptions struct {
	Annotation string
	Alignments string
	Output     string

	BarcodeTag      string
	UMITag          string
	MinMapQ         int
	SkipDuplicates  bool
	Barcodes        string
	Summary         string
	DuckDB          string
	AnnotationCache string
	StripChr        bool
	Prefetch        int
	Threads         int
}

func countOptionsFromConfig(args []string) (countOptions, error) {
	opts := countOptions{
		Annotation:      args[0],
		Alignments:      args[1],
		BarcodeTag:      viper.GetString("barcode_tag"),
		UMITag:          viper.GetString("umi_tag"),
		MinMapQ:         viper.GetInt("min_mapq"),
		SkipDuplicates:  viper.GetBool("skip_duplicates"),
		Barcodes:        viper.GetString("barcodes"),
		Summary:         viper.GetString("summary"),
		DuckDB:          viper.GetString("duckdb"),
		AnnotationCache: viper.GetString("annotation_cache"),
		StripChr:        viper.GetBool("strip_chr"),
		Prefetch:        viper.GetInt("prefetch"),
		Threads:         viper.GetInt("threads"),
	}
	if len(args) > 2 {
		opts.Output = args[2]
	}
	return opts, opts.validate()
}

func (o countOptions) validate() error {
	switch {
	case len(o.BarcodeTag) != 2:
		return usageError{fmt.Errorf("barcode tag %q must be two characters", o.BarcodeTag)}
	case len(o.UMITag) != 2:
		return usageError{fmt.Errorf("UMI tag %q must be two characters", o.UMITag)}
	case o.MinMapQ < 0 || o.MinMapQ > 255:
		return usageError{fmt.Errorf("min_mapq %d out of range 0-255", o.MinMapQ)}
	case o.Prefetch < 0:
		return usageError{fmt.Errorf("prefetch %d must not be negative", o.Prefetch)}
	case o.Threads < 0:
		return usageError{fmt.Errorf("threads %d must not be negative", o.Threads)}
	case o.Annotation == "-" && o.Alignments == "-":
		return usageError{errors.New("annotation and alignments cannot both be read from stdin")}
	}
	return nil
}

// runCount loads the annotation, streams the alignments through the engine
// and writes every configured sink.
func runCount(ctx context.Context, opts countOptions, logger *zap.Logger) (err error) {
	loader := gtf.NewLoader(opts.Annotation)
	loader.SetStripChr(opts.StripChr)
	loader.SetCacheDir(opts.AnnotationCache)
	loader.SetLogger(logger)

	start := time.Now()
	features, err := loader.Load()
	if err != nil {
		if !errors.Is(err, gtf.ErrMalformed) {
			err = fmt.Errorf("%w: %w", invex.ErrInput, err)
		}
		return fmt.Errorf("load annotation %s: %w", opts.Annotation, err)
	}
	logger.Info("features loaded",
		zap.Int("features", features.Len()),
		zap.Int("chromosomes", len(features.Chromosomes())),
		zap.Duration("elapsed", time.Since(start)))

	reader, err := alignment.Open(opts.Alignments, opts.Threads)
	if err != nil {
		return fmt.Errorf("%w: %w", invex.ErrInput, err)
	}
	var src alignment.Source = reader
	defer func() { src.Close() }()

	if err := reader.SetTags(opts.BarcodeTag, opts.UMITag); err != nil {
		return usageError{err}
	}

	contigs, err := features.Reconcile(reader.Contigs())
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Alignments, err)
	}

	var allow barcode.AllowList
	if opts.Barcodes != "" {
		allow, err = barcode.Load(opts.Barcodes)
		if err != nil {
			return fmt.Errorf("%w: barcode list: %w", invex.ErrInput, err)
		}
		logger.Info("barcode allow-list loaded", zap.Int("barcodes", len(allow)))
	}

	if opts.Output == "" {
		logger.Info("writing counts to stdout")
	}
	out, err := output.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("%w: %w", invex.ErrOutput, err)
	}
	defer closeOutput(out, &err)

	tw := output.NewTabWriter(out)
	if err := tw.WriteHeader(); err != nil {
		return fmt.Errorf("%w: write header: %w", invex.ErrOutput, err)
	}
	sinks := []invex.RowWriter{tw}

	var store *duckdb.Store
	if opts.DuckDB != "" {
		store, err = duckdb.Open(opts.DuckDB)
		if err != nil {
			return fmt.Errorf("%w: %w", invex.ErrOutput, err)
		}
		defer closeOutput(store, &err)
		if err := store.ClearCounts(); err != nil {
			return fmt.Errorf("%w: %w", invex.ErrOutput, err)
		}
		sinks = append(sinks, store)
	}
	sink := output.NewMultiWriter(sinks...)

	if opts.Summary != "" {
		sf, serr := output.Create(opts.Summary)
		if serr != nil {
			return fmt.Errorf("%w: summary: %w", invex.ErrOutput, serr)
		}
		defer closeOutput(sf, &err)
		sw := output.NewSummaryTabWriter(sf)
		if err := sw.WriteHeader(); err != nil {
			return fmt.Errorf("%w: write summary header: %w", invex.ErrOutput, err)
		}
		sink.AddSummary(sw)
	}

	engineOpts := invex.Options{
		Filter: alignment.Filter{
			MinMapQ:        byte(opts.MinMapQ),
			SkipDuplicates: opts.SkipDuplicates,
		},
		AllowList: allow,
	}
	if sink.HasSummary() {
		engineOpts.Summary = sink
	}
	engine := invex.NewEngine(features, contigs, sink, engineOpts)
	engine.SetLogger(logger)

	if opts.Prefetch > 0 {
		src = alignment.Prefetch(ctx, reader, opts.Prefetch)
	}

	start = time.Now()
	stats, err := engine.Run(ctx, src)
	if err != nil {
		return err
	}
	logStats(logger, stats, time.Since(start))

	if store != nil {
		if err := store.WriteRun(duckdb.RunInfo{
			Annotation: opts.Annotation,
			Alignments: opts.Alignments,
			FinishedAt: time.Now(),
			Stats:      stats,
		}); err != nil {
			return fmt.Errorf("%w: %w", invex.ErrOutput, err)
		}
	}
	return nil
}

// closeOutput closes c and records a close failure in *err unless an
// earlier error is already set.
func closeOutput(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("%w: close: %w", invex.ErrOutput, cerr)
	}
}

func logStats(logger *zap.Logger, s invex.Stats, elapsed time.Duration) {
	logger.Info("alignments processed",
		zap.Uint64("alignments", s.Alignments),
		zap.Uint64("filtered", s.Filtered),
		zap.Uint64("classified", s.Processed),
		zap.Duration("elapsed", elapsed))
	logger.Info("reads counted",
		zap.Uint64("counted", s.Counted),
		zap.Uint64("intergenic", s.Intergenic),
		zap.Uint64("deduplicated", s.Deduplicated),
		zap.Uint64("genes", s.GenesFlushed),
		zap.Uint64("rows", s.RowsWritten))
	if s.SummaryRows > 0 {
		logger.Debug("summary written", zap.Uint64("barcodes", s.SummaryRows))
	}
}
