// Package index handles SQLite storage of the media library.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/crate/internal/record"
)

// Database is the SQLite database handle.
type Database struct {
	db *sql.DB

	mu     sync.RWMutex
	schema *record.Schema
}

var (
	// ErrIndexLocked indicates another process is rebuilding the index.
	ErrIndexLocked = errors.New("index is locked for rebuild")
)

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 1

// DB returns the underlying sql.DB for advanced queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Open opens or creates the database at dbPath. An index written by an
// incompatible version is discarded and recreated empty.
func Open(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	if _, err := os.Stat(dbPath); err == nil && !isSchemaCompatible(dbPath) {
		if err := removeDatabaseFiles(dbPath); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newDatabase(db)
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*Database, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	return newDatabase(db)
}

func newDatabase(db *sql.DB) (*Database, error) {
	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.loadSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

func removeDatabaseFiles(dbPath string) error {
	paths := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// isSchemaCompatible reports whether the database at dbPath was written with
// the current schema version.
func isSchemaCompatible(dbPath string) bool {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return false
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = 'version'").Scan(&version); err != nil {
		return false
	}
	return version == strconv.Itoa(CurrentDBVersion)
}

// initialize creates the database schema.
func (d *Database) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		-- Metadata table for version tracking
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		-- One row per top-level library record; nested children live in doc
		CREATE TABLE IF NOT EXISTS records (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT,
			parent_key TEXT,
			position INTEGER NOT NULL,
			doc TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS named_sets (
			name TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS named_set_members (
			set_name TEXT NOT NULL,
			record_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (set_name, position)
		);

		-- Attribute and child vocabulary observed while indexing
		CREATE TABLE IF NOT EXISTS vocabulary (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			is_child INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (kind, name, is_child)
		);

		CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, position);
		CREATE INDEX IF NOT EXISTS idx_records_parent ON records(parent_key);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)", strconv.Itoa(CurrentDBVersion))
	return err
}

// ReplaceAll swaps the indexed library for lib in a single transaction.
func (d *Database) ReplaceAll(ctx context.Context, lib *Library) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearLibrary(ctx, tx); err != nil {
		return err
	}

	schema := record.NewSchema()

	recordStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (key, kind, title, parent_key, position, doc)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer recordStmt.Close()

	for i, r := range lib.Records {
		if r.Key() == "" {
			return fmt.Errorf("%s record %q has no key", r.Kind(), r.Title())
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r, err)
		}
		var parentKey any
		if pk := r.Attrs().Get(record.AttrParentKey).String(); pk != "" {
			parentKey = pk
		}
		if _, err := recordStmt.ExecContext(ctx, r.Key(), r.Kind().String(), r.Title(), parentKey, i, string(doc)); err != nil {
			return fmt.Errorf("insert %s: %w", r, err)
		}
		schema.Observe(r)
	}

	setStmt, err := tx.PrepareContext(ctx, "INSERT INTO named_sets (name, position) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer setStmt.Close()

	memberStmt, err := tx.PrepareContext(ctx, "INSERT INTO named_set_members (set_name, record_key, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer memberStmt.Close()

	for i, set := range lib.Sets {
		if _, err := setStmt.ExecContext(ctx, set.Name, i); err != nil {
			return fmt.Errorf("insert named set %q: %w", set.Name, err)
		}
		for j, key := range set.Keys {
			if _, err := memberStmt.ExecContext(ctx, set.Name, key, j); err != nil {
				return fmt.Errorf("insert named set %q member: %w", set.Name, err)
			}
		}
	}

	if err := insertVocabulary(ctx, tx, schema); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit library: %w", err)
	}

	return d.loadSchema(ctx)
}

func insertVocabulary(ctx context.Context, e execer, schema *record.Schema) error {
	for _, kind := range record.QueryableKinds() {
		for _, name := range schema.Attributes(kind) {
			if _, err := e.ExecContext(ctx, "INSERT OR IGNORE INTO vocabulary (kind, name, is_child) VALUES (?, ?, 0)", kind.String(), name); err != nil {
				return fmt.Errorf("insert vocabulary: %w", err)
			}
		}
		for _, tag := range schema.Children(kind) {
			if _, err := e.ExecContext(ctx, "INSERT OR IGNORE INTO vocabulary (kind, name, is_child) VALUES (?, ?, 1)", kind.String(), tag); err != nil {
				return fmt.Errorf("insert vocabulary: %w", err)
			}
		}
	}
	return nil
}

// loadSchema rebuilds the cached schema from the built-in vocabulary plus
// everything observed at index time.
func (d *Database) loadSchema(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, "SELECT kind, name, is_child FROM vocabulary")
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}

	type entry struct {
		kind    string
		name    string
		isChild bool
	}
	entries, err := collect(rows, func(rows *sql.Rows) (entry, error) {
		var e entry
		err := rows.Scan(&e.kind, &e.name, &e.isChild)
		return e, err
	})
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}

	schema := record.DefaultSchema()
	for _, e := range entries {
		kind, err := record.ParseKind(e.kind)
		if err != nil {
			continue
		}
		if e.isChild {
			schema.AddChild(kind, e.name)
		} else {
			schema.AddAttribute(kind, e.name)
		}
	}

	d.mu.Lock()
	d.schema = schema
	d.mu.Unlock()
	return nil
}

// Schema returns the attribute vocabulary of the indexed library.
func (d *Database) Schema() *record.Schema {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.schema
}

// Records returns the indexed records of kind in library order.
func (d *Database) Records(ctx context.Context, kind record.Kind) ([]*record.Record, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT doc FROM records WHERE kind = ? ORDER BY position", kind.String())
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", kind, err)
	}
	return collect(rows, scanRecord)
}

// Lookup returns the records with the given keys, in the order the keys are given.
// Unknown keys are skipped.
func (d *Database) Lookup(ctx context.Context, keys []string) ([]*record.Record, error) {
	in, args := placeholders(keys)
	rows, err := d.db.QueryContext(ctx, "SELECT doc FROM records WHERE key IN ("+in+")", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup records: %w", err)
	}
	found, err := collect(rows, scanRecord)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*record.Record, len(found))
	for _, r := range found {
		byKey[r.Key()] = r
	}
	out := make([]*record.Record, 0, len(found))
	for _, k := range keys {
		if r, ok := byKey[k]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (*record.Record, error) {
	var doc string
	if err := rows.Scan(&doc); err != nil {
		return nil, err
	}
	var r record.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}

// NamedSets returns every named set name in library order.
func (d *Database) NamedSets(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name FROM named_sets ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query named sets: %w", err)
	}
	return collect(rows, scanString)
}

// MatchNamedSets returns the named sets whose name matches the regular expression pattern.
func (d *Database) MatchNamedSets(ctx context.Context, pattern string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name FROM named_sets WHERE name REGEXP ? ORDER BY position", pattern)
	if err != nil {
		return nil, fmt.Errorf("match named sets: %w", err)
	}
	return collect(rows, scanString)
}

// NamedSetMembers returns the member keys of the set with the exact name.
func (d *Database) NamedSetMembers(ctx context.Context, name string) ([]string, error) {
	var exists int
	err := d.db.QueryRowContext(ctx, "SELECT 1 FROM named_sets WHERE name = ?", name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("named set %q: %w", name, record.ErrNamedSetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query named set %q: %w", name, err)
	}

	rows, err := d.db.QueryContext(ctx, "SELECT record_key FROM named_set_members WHERE set_name = ? ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("query named set %q: %w", name, err)
	}
	keys, err := collect(rows, scanString)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err
}

// IndexStats contains index statistics.
type IndexStats struct {
	Records   map[string]int `json:"records"`
	NamedSets int            `json:"named_sets"`
	Members   int            `json:"named_set_members"`
}

// Stats returns record counts per kind and named set totals.
func (d *Database) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{Records: make(map[string]int)}

	rows, err := d.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM records GROUP BY kind")
	if err != nil {
		return nil, err
	}
	type count struct {
		kind string
		n    int
	}
	counts, err := collect(rows, func(rows *sql.Rows) (count, error) {
		var c count
		err := rows.Scan(&c.kind, &c.n)
		return c, err
	})
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.Records[c.kind] = c.n
	}

	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM named_sets").Scan(&stats.NamedSets); err != nil {
		return nil, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM named_set_members").Scan(&stats.Members); err != nil {
		return nil, err
	}
	return stats, nil
}
