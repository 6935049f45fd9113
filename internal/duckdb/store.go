// Package duckdb persists count tables in DuckDB.
// Gene rows and barcode totals are appended as the run emits them, so the
// database can be queried with SQL once the run finishes.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding count results.
type Store struct {
	db *sql.DB

	// conn pins the appenders to one connection until Close.
	conn    *sql.Conn
	counts  *goduckdb.Appender
	summary *goduckdb.Appender
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close flushes pending rows and closes the database connection.
func (s *Store) Close() error {
	err := s.closeAppenders()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
		s.conn = nil
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS gene_counts (
			gene_id VARCHAR,
			barcode VARCHAR,
			introns BIGINT,
			junctions BIGINT,
			exons BIGINT,
			sense BIGINT,
			antisense BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS barcode_summary (
			barcode VARCHAR,
			introns BIGINT,
			junctions BIGINT,
			exons BIGINT,
			sense BIGINT,
			antisense BIGINT,
			intergenic BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			annotation VARCHAR,
			alignments VARCHAR,
			finished_at TIMESTAMP,
			alignments_read BIGINT,
			reads_counted BIGINT,
			reads_intergenic BIGINT,
			reads_deduplicated BIGINT,
			genes_flushed BIGINT,
			rows_written BIGINT
		)`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// newAppender creates an appender for table on the store's pinned
// connection.
func (s *Store) newAppender(table string) (*goduckdb.Appender, error) {
	if s.conn == nil {
		conn, err := s.db.Conn(context.Background())
		if err != nil {
			return nil, fmt.Errorf("get connection: %w", err)
		}
		s.conn = conn
	}

	var appender *goduckdb.Appender
	if err := s.conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return nil, fmt.Errorf("create %s appender: %w", table, err)
	}
	return appender, nil
}

func (s *Store) closeAppenders() error {
	var err error
	for _, a := range []**goduckdb.Appender{&s.counts, &s.summary} {
		if *a == nil {
			continue
		}
		if cerr := (*a).Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close appender: %w", cerr)
		}
		*a = nil
	}
	return err
}
