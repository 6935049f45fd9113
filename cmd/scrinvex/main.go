// Package main provides the scrinvex command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/scrinvex/internal/genome"
	"github.com/inodb/scrinvex/internal/gtf"
	"github.com/inodb/scrinvex/internal/invex"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitUsage        = 2
	ExitIO           = 10
	ExitPrecondition = 11
	ExitInterrupted  = 130
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by invalid arguments or settings.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	viper.Reset()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	code := exitCode(err)
	if code == ExitUsage {
		fmt.Fprintf(stderr, "\n%s", root.UsageString())
	}
	return code
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var (
		ue      usageError
		pathErr *fs.PathError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ue):
		return ExitUsage
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, genome.ErrNoSharedContigs), errors.Is(err, gtf.ErrMalformed):
		return ExitPrecondition
	case errors.Is(err, invex.ErrInput), errors.Is(err, invex.ErrOutput), errors.As(err, &pathErr):
		return ExitIO
	default:
		return ExitError
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "scrinvex [flags] <annotation.gtf> <alignments.bam> [output.tsv]",
		Short: "Single-cell intron/junction/exon read counter",
		Long: `Count reads per gene and cell barcode as intronic, junction-spanning or exonic.

The alignments must be sorted by coordinate and carry cell barcode and UMI
tags. Reads are deduplicated per gene by UMI. Counts are written as a
tab-separated table to the output path, or stdout if none is given.`,
		Example: `  scrinvex genes.gtf possorted.bam counts.tsv
  scrinvex --barcodes barcodes.tsv.gz --summary summary.tsv genes.gtf.gz possorted.bam counts.tsv
  scrinvex --duckdb counts.duckdb genes.gtf possorted.bam > counts.tsv`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.RangeArgs(2, 3)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := countOptionsFromConfig(args)
			if err != nil {
				return err
			}
			logger := newLogger(stderr, viper.GetBool("verbose"))
			defer logger.Sync()
			return runCount(cmd.Context(), opts, logger)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.scrinvex.yaml)")
	pf.BoolP("verbose", "v", false, "Log debug messages")
	viper.BindPFlag("verbose", pf.Lookup("verbose"))

	addCountFlags(cmd)

	cmd.AddCommand(newConfigCmd(stdout))
	return cmd
}

// initConfig layers the config file and SCRINVEX_* environment under the
// command-line flags.
func initConfig(cfgFile string) error {
	viper.SetEnvPrefix("SCRINVEX")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".scrinvex")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return usageError{fmt.Errorf("read config: %w", err)}
	}
	return nil
}

// newLogger builds a console logger. Debug messages are shown when verbose
// is set.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core)
}
