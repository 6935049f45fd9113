package alignment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/inodb/scrinvex/internal/genome"
)

// Default single-cell tags.
const (
	DefaultBarcodeTag = "CB"
	DefaultUMITag     = "UB"
)

// Reader reads alignments from a BAM or SAM stream.
type Reader struct {
	rr         sam.RecordReader
	bam        *bam.Reader
	file       *os.File
	contigs    []string
	barcodeTag sam.Tag
	umiTag     sam.Tag
	count      int
}

// Open opens a BAM or SAM file. A path of "-" reads stdin. The format is
// detected from the BGZF magic bytes. Concurrency sets the number of BGZF
// decompression goroutines; zero uses GOMAXPROCS.
func Open(path string, concurrency int) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin, concurrency)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alignment file: %w", err)
	}
	r, err := NewReader(f, concurrency)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = f
	return r, nil
}

// NewReader creates a reader over r, which holds BAM or SAM data.
func NewReader(r io.Reader, concurrency int) (*Reader, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty alignment stream")
		}
		return nil, fmt.Errorf("read alignment header: %w", err)
	}

	rd := &Reader{
		barcodeTag: sam.NewTag(DefaultBarcodeTag),
		umiTag:     sam.NewTag(DefaultUMITag),
	}
	var h *sam.Header
	if magic[0] == 0x1f && magic[1] == 0x8b {
		b, err := bam.NewReader(br, concurrency)
		if err != nil {
			return nil, fmt.Errorf("open BAM reader: %w", err)
		}
		rd.rr, rd.bam, h = b, b, b.Header()
	} else {
		s, err := sam.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open SAM reader: %w", err)
		}
		rd.rr, h = s, s.Header()
	}

	for _, ref := range h.Refs() {
		rd.contigs = append(rd.contigs, ref.Name())
	}
	return rd, nil
}

// SetTags overrides the barcode and UMI tag names.
func (r *Reader) SetTags(barcode, umi string) error {
	if len(barcode) != 2 || len(umi) != 2 {
		return fmt.Errorf("tags must be two characters: %q, %q", barcode, umi)
	}
	r.barcodeTag = sam.NewTag(barcode)
	r.umiTag = sam.NewTag(umi)
	return nil
}

// Contigs returns the reference names from the header, in id order.
func (r *Reader) Contigs() []string {
	return r.contigs
}

// Next reads the next alignment.
func (r *Reader) Next() (*Alignment, error) {
	rec, err := r.rr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read record %d: %w", r.count+1, err)
	}
	r.count++
	return r.convert(rec), nil
}

func (r *Reader) convert(rec *sam.Record) *Alignment {
	a := &Alignment{
		Name:   rec.Name,
		RefID:  -1,
		Pos:    int64(rec.Pos),
		Strand: genome.Strand(rec.Strand()),
		MapQ:   rec.MapQ,
		Flags:  rec.Flags,
		Cigar:  rec.Cigar,
	}
	if rec.Ref != nil {
		a.RefID = rec.Ref.ID()
	}
	a.Barcode, a.HasBarcode = tagString(rec, r.barcodeTag)
	a.UMI, a.HasUMI = tagString(rec, r.umiTag)
	return a
}

// tagString returns the value of tag and whether the record carries it.
// Non-string values are formatted so that numeric UMIs still compare.
func tagString(rec *sam.Record, tag sam.Tag) (string, bool) {
	aux := rec.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	switch aux.Type() {
	case 'Z':
		return aux.Value().(string), true
	case 'A':
		return string([]byte{aux.Value().(byte)}), true
	default:
		return fmt.Sprint(aux.Value()), true
	}
}

// Close closes the underlying BAM reader and file.
func (r *Reader) Close() error {
	var err error
	if r.bam != nil {
		err = r.bam.Close()
	}
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
