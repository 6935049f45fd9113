// Package gtf loads gene and exon features from GTF annotation files.
package gtf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/scrinvex/internal/genome"
	"github.com/inodb/scrinvex/internal/textio"
)

// ErrMalformed is returned for GTF lines that cannot be parsed.
var ErrMalformed = errors.New("malformed GTF")

// Loader loads gene and exon features from a GTF file.
type Loader struct {
	path     string
	stripChr bool
	cacheDir string
	logger   *zap.Logger
}

// NewLoader creates a new GTF loader.
func NewLoader(path string) *Loader {
	return &Loader{
		path:   path,
		logger: zap.NewNop(),
	}
}

// SetStripChr configures whether a "chr" prefix is ignored in contig names.
func (l *Loader) SetStripChr(strip bool) {
	l.stripChr = strip
}

// SetCacheDir enables the feature snapshot cache in dir.
func (l *Loader) SetCacheDir(dir string) {
	l.cacheDir = dir
}

// SetLogger sets the logger for cache and progress messages.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load returns the gene and exon features of the GTF, sorted by start within
// each chromosome.
func (l *Loader) Load() (*genome.FeatureSet, error) {
	var (
		snap *Snapshot
		fp   FileFingerprint
	)
	if l.cacheDir != "" && l.path != "-" {
		var err error
		fp, err = StatFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("stat GTF file: %w", err)
		}
		snap = NewSnapshot(l.cacheDir)
		if snap.Valid(fp, l.stripChr) {
			set, err := snap.Load(l.stripChr)
			if err == nil {
				l.logger.Info("loaded annotation snapshot",
					zap.String("path", snap.dataPath()),
					zap.Int("features", set.Len()))
				return set, nil
			}
			l.logger.Warn("discarding unreadable annotation snapshot", zap.Error(err))
			snap.Clear()
		}
	}

	rc, err := textio.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer rc.Close()

	set, err := Parse(rc, genome.NewChromosomeIndex(l.stripChr))
	if err != nil {
		return nil, err
	}

	if snap != nil {
		if err := snap.Write(set, fp, l.stripChr); err != nil {
			l.logger.Warn("could not write annotation snapshot", zap.Error(err))
		}
	}
	return set, nil
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
}

// Parse reads GTF content and returns its gene and exon features. Other
// feature types are skipped. GTF coordinates (1-based, closed) are converted
// to 0-based half-open.
func Parse(r io.Reader, index *genome.ChromosomeIndex) (*genome.FeatureSet, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	set := genome.NewFeatureSet(index)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		var kind genome.FeatureKind
		switch feat.featureType {
		case "gene":
			kind = genome.Gene
		case "exon":
			kind = genome.Exon
		default:
			continue
		}

		geneID := feat.attributes["gene_id"]
		if geneID == "" {
			return nil, fmt.Errorf("line %d: %s record without gene_id: %w", lineNum, feat.featureType, ErrMalformed)
		}

		id := geneID
		if kind == genome.Exon {
			id = exonID(feat.attributes)
		}

		set.Add(genome.Feature{
			Chrom:  index.Intern(feat.chrom),
			Start:  feat.start - 1,
			End:    feat.end,
			Kind:   kind,
			Strand: genome.ParseStrand(feat.strand),
			ID:     id,
			GeneID: geneID,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	set.Sort()
	return set, nil
}

// exonID prefers exon_id and falls back to transcript_id plus exon_number.
func exonID(attrs map[string]string) string {
	if id := attrs["exon_id"]; id != "" {
		return id
	}
	if tx := attrs["transcript_id"]; tx != "" {
		return tx + ":" + attrs["exon_number"]
	}
	return attrs["gene_id"]
}

// parseLine parses a single GTF line.
func parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("expected 9 fields, got %d: %w", len(fields), ErrMalformed)
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start %q: %w", fields[3], ErrMalformed)
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end %q: %w", fields[4], ErrMalformed)
	}
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid interval %d-%d: %w", start, end, ErrMalformed)
	}

	return &gtfFeature{
		chrom:       fields[0],
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}

		attrs[key] = strings.Trim(strings.TrimSpace(value), "\"")
	}

	return attrs
}
