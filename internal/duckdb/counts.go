package duckdb

import (
	"fmt"

	"github.com/inodb/scrinvex/internal/invex"
)

// WriteRows appends one gene's rows to gene_counts. Rows become visible to
// queries after Flush.
func (s *Store) WriteRows(rows []invex.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if s.counts == nil {
		a, err := s.newAppender("gene_counts")
		if err != nil {
			return err
		}
		s.counts = a
	}

	for _, r := range rows {
		if err := s.counts.AppendRow(
			r.GeneID, r.Barcode,
			int64(r.Introns), int64(r.Junctions), int64(r.Exons),
			int64(r.Sense), int64(r.Antisense),
		); err != nil {
			return fmt.Errorf("append gene count: %w", err)
		}
	}
	return nil
}

// WriteSummary appends the per-barcode totals to barcode_summary.
func (s *Store) WriteSummary(rows []invex.SummaryRow) error {
	if len(rows) == 0 {
		return nil
	}
	if s.summary == nil {
		a, err := s.newAppender("barcode_summary")
		if err != nil {
			return err
		}
		s.summary = a
	}

	for _, r := range rows {
		if err := s.summary.AppendRow(
			r.Barcode,
			int64(r.Introns), int64(r.Junctions), int64(r.Exons),
			int64(r.Sense), int64(r.Antisense), int64(r.Intergenic),
		); err != nil {
			return fmt.Errorf("append barcode summary: %w", err)
		}
	}
	return nil
}

// Flush commits appended rows.
func (s *Store) Flush() error {
	if s.counts != nil {
		if err := s.counts.Flush(); err != nil {
			return fmt.Errorf("flush gene counts: %w", err)
		}
	}
	if s.summary != nil {
		if err := s.summary.Flush(); err != nil {
			return fmt.Errorf("flush barcode summary: %w", err)
		}
	}
	return nil
}

// ClearCounts removes all gene rows and barcode totals.
func (s *Store) ClearCounts() error {
	for _, table := range []string{"gene_counts", "barcode_summary"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// GeneCounts returns the stored rows of a gene ordered by barcode.
func (s *Store) GeneCounts(geneID string) ([]invex.Row, error) {
	rows, err := s.db.Query(`SELECT
		gene_id, barcode, introns, junctions, exons, sense, antisense
		FROM gene_counts
		WHERE gene_id=?
		ORDER BY barcode`, geneID)
	if err != nil {
		return nil, fmt.Errorf("query gene counts: %w", err)
	}
	defer rows.Close()

	var out []invex.Row
	for rows.Next() {
		var r invex.Row
		if err := rows.Scan(
			&r.GeneID, &r.Barcode,
			&r.Introns, &r.Junctions, &r.Exons, &r.Sense, &r.Antisense,
		); err != nil {
			return nil, fmt.Errorf("scan gene count: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene counts: %w", err)
	}
	return out, nil
}

// BarcodeSummary returns the stored per-barcode totals ordered by barcode.
func (s *Store) BarcodeSummary() ([]invex.SummaryRow, error) {
	rows, err := s.db.Query(`SELECT
		barcode, introns, junctions, exons, sense, antisense, intergenic
		FROM barcode_summary
		ORDER BY barcode`)
	if err != nil {
		return nil, fmt.Errorf("query barcode summary: %w", err)
	}
	defer rows.Close()

	var out []invex.SummaryRow
	for rows.Next() {
		var r invex.SummaryRow
		if err := rows.Scan(
			&r.Barcode,
			&r.Introns, &r.Junctions, &r.Exons, &r.Sense, &r.Antisense, &r.Intergenic,
		); err != nil {
			return nil, fmt.Errorf("scan barcode summary: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate barcode summary: %w", err)
	}
	return out, nil
}
