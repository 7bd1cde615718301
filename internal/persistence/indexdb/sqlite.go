// Package indexdb keeps a small SQLite read-model next to the save files:
// which snapshots exist, where they live, and coarse world stats. It is an
// index, not the source of truth; losing it costs nothing but convenience.
package indexdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteIndex struct {
	db *sql.DB
}

// SnapshotRow describes one written snapshot file.
type SnapshotRow struct {
	Revision      uint64
	Path          string
	Chunks        int
	UniformChunks int
	DenseChunks   int
	PaletteDigest string
	CreatedAt     string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("indexdb: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is a fine
	// durability tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			revision INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			uniform_chunks INTEGER NOT NULL,
			dense_chunks INTEGER NOT NULL,
			palette_digest TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, key, value)
	return err
}

func (s *SQLiteIndex) GetMeta(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// RecordSnapshot upserts one snapshot row. CreatedAt defaults to now (UTC,
// RFC3339) when empty.
func (s *SQLiteIndex) RecordSnapshot(row SnapshotRow) error {
	if row.CreatedAt == "" {
		row.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO snapshots(revision, path, chunks, uniform_chunks, dense_chunks, palette_digest, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(revision) DO UPDATE SET
		   path=excluded.path,
		   chunks=excluded.chunks,
		   uniform_chunks=excluded.uniform_chunks,
		   dense_chunks=excluded.dense_chunks,
		   palette_digest=excluded.palette_digest,
		   created_at=excluded.created_at;`,
		row.Revision, row.Path, row.Chunks, row.UniformChunks, row.DenseChunks, row.PaletteDigest, row.CreatedAt)
	return err
}

// LatestSnapshot returns the highest-revision row, if any.
func (s *SQLiteIndex) LatestSnapshot() (SnapshotRow, bool, error) {
	var row SnapshotRow
	err := s.db.QueryRow(
		`SELECT revision, path, chunks, uniform_chunks, dense_chunks, palette_digest, created_at
		 FROM snapshots ORDER BY revision DESC LIMIT 1;`).Scan(
		&row.Revision, &row.Path, &row.Chunks, &row.UniformChunks, &row.DenseChunks, &row.PaletteDigest, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, err
	}
	return row, true, nil
}

// Snapshots lists rows newest-first, up to limit (<=0 means all).
func (s *SQLiteIndex) Snapshots(limit int) ([]SnapshotRow, error) {
	q := `SELECT revision, path, chunks, uniform_chunks, dense_chunks, palette_digest, created_at
	      FROM snapshots ORDER BY revision DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(q+` LIMIT ?;`, limit)
	} else {
		rows, err = s.db.Query(q + `;`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		if err := rows.Scan(&row.Revision, &row.Path, &row.Chunks, &row.UniformChunks, &row.DenseChunks, &row.PaletteDigest, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
