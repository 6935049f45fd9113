// Package output provides the count table formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/scrinvex/internal/invex"
)

// CountColumns is the header of the per-gene count table.
var CountColumns = []string{
	"gene_id",
	"barcode",
	"introns",
	"junctions",
	"exons",
	"sense",
	"antisense",
}

// SummaryColumns is the header of the per-barcode summary table.
var SummaryColumns = []string{
	"barcode",
	"introns",
	"junctions",
	"exons",
	"sense",
	"antisense",
	"intergenic",
}

// TabWriter writes gene count rows in tab-delimited format.
type TabWriter struct {
	w   *bufio.Writer
	buf []byte
}

// NewTabWriter creates a new tab-delimited count writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(CountColumns, "\t") + "\n")
	return err
}

// WriteRows writes the rows of one gene.
func (tw *TabWriter) WriteRows(rows []invex.Row) error {
	for i := range rows {
		r := &rows[i]
		b := tw.buf[:0]
		b = append(b, r.GeneID...)
		b = append(b, '\t')
		b = append(b, r.Barcode...)
		b = appendCounts(b, r.Counts)
		b = append(b, '\n')
		tw.buf = b
		if _, err := tw.w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// SummaryTabWriter writes per-barcode totals in tab-delimited format.
type SummaryTabWriter struct {
	w *bufio.Writer
}

// NewSummaryTabWriter creates a new tab-delimited summary writer.
func NewSummaryTabWriter(w io.Writer) *SummaryTabWriter {
	return &SummaryTabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (sw *SummaryTabWriter) WriteHeader() error {
	_, err := sw.w.WriteString(strings.Join(SummaryColumns, "\t") + "\n")
	return err
}

// WriteSummary writes every summary row.
func (sw *SummaryTabWriter) WriteSummary(rows []invex.SummaryRow) error {
	var b []byte
	for i := range rows {
		r := &rows[i]
		b = append(b[:0], r.Barcode...)
		b = appendCounts(b, r.Counts)
		b = append(b, '\t')
		b = strconv.AppendUint(b, r.Intergenic, 10)
		b = append(b, '\n')
		if _, err := sw.w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (sw *SummaryTabWriter) Flush() error {
	return sw.w.Flush()
}

// appendCounts appends the five counters, each preceded by a tab.
func appendCounts(b []byte, c invex.Counts) []byte {
	for _, v := range [...]uint64{c.Introns, c.Junctions, c.Exons, c.Sense, c.Antisense} {
		b = append(b, '\t')
		b = strconv.AppendUint(b, v, 10)
	}
	return b
}
