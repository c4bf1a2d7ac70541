package buildstore

// schemaSQL defines the SQLite schema for the nightly build result table.
// The primary key makes the (family, number) uniqueness invariant structural:
// a racing double-insert fails loudly instead of silently duplicating a row.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS nightly (
    family TEXT NOT NULL,
    number INTEGER NOT NULL,
    os     TEXT NOT NULL,
    vm     TEXT NOT NULL,
    result TEXT,
    url    TEXT NOT NULL,
    date   TEXT NOT NULL,
    PRIMARY KEY (family, number)
);

CREATE INDEX IF NOT EXISTS idx_nightly_date ON nightly(date);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaSQL)
	return err
}
