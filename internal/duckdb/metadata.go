package duckdb

import (
	"fmt"
	"time"

	"github.com/inodb/scrinvex/internal/invex"
)

// RunInfo identifies the inputs and outcome of one counting run.
type RunInfo struct {
	Annotation string
	Alignments string
	FinishedAt time.Time
	Stats      invex.Stats
}

// WriteRun records a finished run in the runs table.
func (s *Store) WriteRun(info RunInfo) error {
	st := info.Stats
	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Annotation, info.Alignments, info.FinishedAt,
		int64(st.Alignments), int64(st.Counted), int64(st.Intergenic),
		int64(st.Deduplicated), int64(st.GenesFlushed), int64(st.RowsWritten))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Runs returns the recorded runs, oldest first.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT
		annotation, alignments, finished_at,
		alignments_read, reads_counted, reads_intergenic, reads_deduplicated,
		genes_flushed, rows_written
		FROM runs
		ORDER BY finished_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		st := &r.Stats
		if err := rows.Scan(
			&r.Annotation, &r.Alignments, &r.FinishedAt,
			&st.Alignments, &st.Counted, &st.Intergenic, &st.Deduplicated,
			&st.GenesFlushed, &st.RowsWritten,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
