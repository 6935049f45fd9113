package output

import (
	"errors"

	"github.com/inodb/scrinvex/internal/invex"
)

// MultiWriter fans rows and summaries out to several sinks in order. A
// summary is only forwarded to sinks that accept one.
type MultiWriter struct {
	rows    []invex.RowWriter
	summary []invex.SummaryWriter
}

// NewMultiWriter creates a writer over the given row sinks. Sinks that also
// implement invex.SummaryWriter receive summaries.
func NewMultiWriter(sinks ...invex.RowWriter) *MultiWriter {
	m := &MultiWriter{rows: sinks}
	for _, s := range sinks {
		if sw, ok := s.(invex.SummaryWriter); ok {
			m.summary = append(m.summary, sw)
		}
	}
	return m
}

// AddSummary adds a summary-only sink.
func (m *MultiWriter) AddSummary(sw invex.SummaryWriter) {
	m.summary = append(m.summary, sw)
}

// HasSummary returns true if any sink takes summaries.
func (m *MultiWriter) HasSummary() bool {
	return len(m.summary) > 0
}

// WriteRows writes rows to every row sink, stopping at the first error.
func (m *MultiWriter) WriteRows(rows []invex.Row) error {
	for _, w := range m.rows {
		if err := w.WriteRows(rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes rows to every summary sink, stopping at the first
// error.
func (m *MultiWriter) WriteSummary(rows []invex.SummaryRow) error {
	for _, w := range m.summary {
		if err := w.WriteSummary(rows); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every sink once and joins the errors.
func (m *MultiWriter) Flush() error {
	var errs []error
	seen := make(map[any]bool)
	for _, w := range m.rows {
		seen[w] = true
		errs = append(errs, w.Flush())
	}
	for _, w := range m.summary {
		if !seen[w] {
			errs = append(errs, w.Flush())
		}
	}
	return errors.Join(errs...)
}
