// Package buildstore persists downstream build results in a local SQLite
// database. The store is an accumulating history log: rows are inserted once
// and never mutated or deleted. It assumes single-writer operation, one
// aggregation run at a time against a given database file.
package buildstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// NotAvailable is returned by history lookups that find no matching row.
const NotAvailable = "N/A"

// Record is one downstream build result. (Family, Number) identifies a record
// for the store's whole lifetime. Date is the calendar date (YYYY-MM-DD) the
// aggregation run associated with the record, not the build's own timestamp.
type Record struct {
	Family string
	Number int
	OS     string
	VM     string
	Result string
	URL    string
	Date   string
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open build db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Exists reports whether a build has already been recorded.
func (s *Store) Exists(family string, number int) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM nightly WHERE family = ? AND number = ?`,
		family, number,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query build %s #%d: %w", family, number, err)
	}
	return true, nil
}

// Insert records a build result. Callers are expected to check Exists first;
// inserting a (family, number) pair twice fails on the primary key.
func (s *Store) Insert(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO nightly(family, number, os, vm, result, url, date)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		r.Family, r.Number, r.OS, r.VM, nilIfEmpty(r.Result), r.URL, r.Date,
	)
	if err != nil {
		return fmt.Errorf("insert build %s #%d: %w", r.Family, r.Number, err)
	}
	return nil
}

// ListByDate returns every record for the given report date, ordered by
// (family, os, vm) ascending. Insertion order never affects the result.
func (s *Store) ListByDate(date string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT family, number, os, vm, result, url, date
		 FROM nightly
		 WHERE date = ?
		 ORDER BY family, os, vm`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list builds for %s: %w", date, err)
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var r Record
		var result sql.NullString
		if err := rows.Scan(&r.Family, &r.Number, &r.OS, &r.VM, &result, &r.URL, &r.Date); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		r.Result = result.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// HistoryResult returns the result recorded for the same (family, os, vm)
// combination on the given date, or NotAvailable if there is none.
func (s *Store) HistoryResult(family, os, vm, date string) (string, error) {
	var result sql.NullString
	err := s.db.QueryRow(
		`SELECT result FROM nightly
		 WHERE family = ? AND os = ? AND vm = ? AND date = ?`,
		family, os, vm, date,
	).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return NotAvailable, nil
	}
	if err != nil {
		return "", fmt.Errorf("query history for %s/%s/%s on %s: %w", family, os, vm, date, err)
	}
	return result.String, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
