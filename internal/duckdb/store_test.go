package duckdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/scrinvex/internal/invex"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteAndQueryGeneCounts(t *testing.T) {
	s := openInMemory(t)

	require.NoError(t, s.WriteRows([]invex.Row{
		{GeneID: "G1", Barcode: "CCCC", Counts: invex.Counts{Junctions: 2, Antisense: 2}},
		{GeneID: "G1", Barcode: "AAAA", Counts: invex.Counts{Introns: 1, Exons: 1, Sense: 2}},
	}))
	require.NoError(t, s.WriteRows(nil))
	require.NoError(t, s.WriteRows([]invex.Row{
		{GeneID: "G2", Barcode: "AAAA", Counts: invex.Counts{Exons: 5, Sense: 5}},
	}))
	require.NoError(t, s.Flush())

	rows, err := s.GeneCounts("G1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, invex.Row{GeneID: "G1", Barcode: "AAAA", Counts: invex.Counts{Introns: 1, Exons: 1, Sense: 2}}, rows[0])
	assert.Equal(t, "CCCC", rows[1].Barcode)

	rows, err = s.GeneCounts("G2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(5), rows[0].Exons)

	rows, err = s.GeneCounts("missing")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteAndQuerySummary(t *testing.T) {
	s := openInMemory(t)

	require.NoError(t, s.WriteSummary([]invex.SummaryRow{
		{Barcode: "TTTT", Intergenic: 4},
		{Barcode: "AAAA", Counts: invex.Counts{Introns: 1, Exons: 1, Sense: 2}, Intergenic: 1},
	}))
	require.NoError(t, s.Flush())

	rows, err := s.BarcodeSummary()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, invex.SummaryRow{Barcode: "AAAA", Counts: invex.Counts{Introns: 1, Exons: 1, Sense: 2}, Intergenic: 1}, rows[0])
	assert.Equal(t, invex.SummaryRow{Barcode: "TTTT", Intergenic: 4}, rows[1])
}

func TestClearCounts(t *testing.T) {
	s := openInMemory(t)

	require.NoError(t, s.WriteRows([]invex.Row{{GeneID: "G1", Barcode: "AAAA", Counts: invex.Counts{Exons: 1, Sense: 1}}}))
	require.NoError(t, s.WriteSummary([]invex.SummaryRow{{Barcode: "AAAA", Intergenic: 1}}))
	require.NoError(t, s.Flush())

	require.NoError(t, s.ClearCounts())

	rows, err := s.GeneCounts("G1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	summary, err := s.BarcodeSummary()
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestRuns(t *testing.T) {
	s := openInMemory(t)

	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.WriteRun(RunInfo{
		Annotation: "genes.gtf",
		Alignments: "possorted.bam",
		FinishedAt: finished,
		Stats: invex.Stats{
			Alignments:   100,
			Counted:      60,
			Intergenic:   30,
			Deduplicated: 10,
			GenesFlushed: 7,
			RowsWritten:  12,
		},
	}))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, "genes.gtf", r.Annotation)
	assert.Equal(t, "possorted.bam", r.Alignments)
	assert.True(t, finished.Equal(r.FinishedAt))
	assert.Equal(t, uint64(100), r.Stats.Alignments)
	assert.Equal(t, uint64(60), r.Stats.Counted)
	assert.Equal(t, uint64(12), r.Stats.RowsWritten)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "counts.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteRows([]invex.Row{{GeneID: "G1", Barcode: "AAAA", Counts: invex.Counts{Introns: 3, Antisense: 3}}}))
	// Close flushes pending rows
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.GeneCounts("G1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(3), rows[0].Introns)
}
