package output

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/scrinvex/internal/invex"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	assert.Equal(t, "gene_id\tbarcode\tintrons\tjunctions\texons\tsense\tantisense\n", buf.String())
}

func TestTabWriter_WriteRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteRows([]invex.Row{
		{GeneID: "G1", Barcode: "AAAA", Counts: invex.Counts{Introns: 1, Exons: 1, Sense: 2}},
		{GeneID: "G1", Barcode: "CCCC", Counts: invex.Counts{Junctions: 12, Antisense: 12}},
	}))
	require.NoError(t, w.WriteRows(nil))
	require.NoError(t, w.WriteRows([]invex.Row{
		{GeneID: "ENSG00000133703.12", Barcode: "", Counts: invex.Counts{Exons: 1000000, Sense: 1000000}},
	}))

	// nothing reaches the writer before Flush
	assert.Empty(t, buf.String())
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "G1\tAAAA\t1\t0\t1\t2\t0", lines[1])
	assert.Equal(t, "G1\tCCCC\t0\t12\t0\t0\t12", lines[2])
	assert.Equal(t, "ENSG00000133703.12\t\t0\t0\t1000000\t1000000\t0", lines[3])

	for _, line := range lines {
		assert.Len(t, strings.Split(line, "\t"), len(CountColumns))
	}
}

func TestSummaryTabWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewSummaryTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteSummary([]invex.SummaryRow{
		{Barcode: "AAAA", Counts: invex.Counts{Introns: 1, Exons: 1, Sense: 2}, Intergenic: 3},
		{Barcode: "TTTT", Intergenic: 1},
	}))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"barcode\tintrons\tjunctions\texons\tsense\tantisense\tintergenic\n"+
			"AAAA\t1\t0\t1\t2\t0\t3\n"+
			"TTTT\t0\t0\t0\t0\t0\t1\n",
		buf.String())
}

type recorder struct {
	rows     []invex.Row
	summary  []invex.SummaryRow
	flushes  int
	writeErr error
	flushErr error
}

func (r *recorder) WriteRows(rows []invex.Row) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *recorder) Flush() error {
	r.flushes++
	return r.flushErr
}

// summaryRecorder accepts both rows and summaries.
type summaryRecorder struct {
	recorder
}

func (r *summaryRecorder) WriteSummary(rows []invex.SummaryRow) error {
	r.summary = append(r.summary, rows...)
	return nil
}

func TestMultiWriter(t *testing.T) {
	plain := &recorder{}
	both := &summaryRecorder{}
	extra := &summaryRecorder{}

	m := NewMultiWriter(plain, both)
	assert.True(t, m.HasSummary())
	m.AddSummary(extra)

	rows := []invex.Row{{GeneID: "G1", Barcode: "AAAA", Counts: invex.Counts{Exons: 1, Sense: 1}}}
	require.NoError(t, m.WriteRows(rows))
	require.NoError(t, m.WriteSummary([]invex.SummaryRow{{Barcode: "AAAA", Intergenic: 1}}))
	require.NoError(t, m.Flush())

	assert.Equal(t, rows, plain.rows)
	assert.Equal(t, rows, both.rows)
	assert.Empty(t, extra.rows)
	assert.Len(t, both.summary, 1)
	assert.Len(t, extra.summary, 1)

	// each sink flushed exactly once
	assert.Equal(t, 1, plain.flushes)
	assert.Equal(t, 1, both.flushes)
	assert.Equal(t, 1, extra.flushes)
}

func TestMultiWriter_Errors(t *testing.T) {
	failing := &recorder{writeErr: errors.New("write failed"), flushErr: errors.New("flush failed")}
	after := &recorder{}

	m := NewMultiWriter(failing, after)
	assert.False(t, m.HasSummary())

	err := m.WriteRows([]invex.Row{{GeneID: "G1"}})
	assert.EqualError(t, err, "write failed")
	assert.Empty(t, after.rows, "stops at the first failing sink")

	err = m.Flush()
	assert.ErrorIs(t, err, failing.flushErr)
	assert.Equal(t, 1, after.flushes, "all sinks are flushed")
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "counts.tsv")
	w, err := Create(path)
	require.NoError(t, err)

	tw := NewTabWriter(w)
	require.NoError(t, tw.WriteHeader())
	require.NoError(t, tw.Flush())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "gene_id\t"))

	stdout, err := Create("-")
	require.NoError(t, err)
	assert.NoError(t, stdout.Close())
}
