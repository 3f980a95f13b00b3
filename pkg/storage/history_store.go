package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// HistoryStore persists panel log lines and instrument snapshots
type HistoryStore struct {
	db         *sql.DB
	dbPath     string
	maxEntries int
}

// NewHistoryStore creates a history store with SQLite backend. maxEntries
// bounds each table; zero keeps everything.
func NewHistoryStore(dbPath string, maxEntries int) (*HistoryStore, error) {
	store := &HistoryStore{
		dbPath:     dbPath,
		maxEntries: maxEntries,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	return store, nil
}

// initialize sets up the database connection and creates tables
func (hs *HistoryStore) initialize() error {
	if hs.dbPath == "" {
		hs.dbPath = "./rfpanel.db"
	}

	if err := os.MkdirAll(filepath.Dir(hs.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := hs.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	hs.db = db

	if err := hs.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := hs.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.Infof("storage", "History store initialized: %s (max %d entries)", hs.dbPath, hs.maxEntries)
	return nil
}

func (hs *HistoryStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS log_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL CHECK (level IN ('info', 'warn', 'error')),
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		instrument TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS history_stats (
		id INTEGER PRIMARY KEY,
		total_log_entries INTEGER NOT NULL DEFAULT 0,
		total_snapshots INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO history_stats (id, total_log_entries, total_snapshots)
	VALUES (1, 0, 0);
	`

	_, err := hs.db.Exec(schema)
	return err
}

func (hs *HistoryStore) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_log_entries_level ON log_entries(level)",
		"CREATE INDEX IF NOT EXISTS idx_snapshots_instrument ON snapshots(instrument, timestamp DESC)",
	}

	for _, indexSQL := range indexes {
		if _, err := hs.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// RecordLog stores one panel log line
func (hs *HistoryStore) RecordLog(t time.Time, level, text string) error {
	return hs.insert("log_entries", "total_log_entries",
		"INSERT INTO log_entries (timestamp, level, text) VALUES (?, ?, ?)",
		t.UTC(), level, text)
}

// RecordSnapshot stores the raw state an instrument reported
func (hs *HistoryStore) RecordSnapshot(t time.Time, instrument string, payload []byte) error {
	return hs.insert("snapshots", "total_snapshots",
		"INSERT INTO snapshots (timestamp, instrument, payload) VALUES (?, ?, ?)",
		t.UTC(), instrument, string(payload))
}

func (hs *HistoryStore) insert(table, counter, query string, args ...interface{}) error {
	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	statsQuery := fmt.Sprintf(
		"UPDATE history_stats SET %s = %s + 1, updated_at = CURRENT_TIMESTAMP WHERE id = 1",
		counter, counter)
	if _, err := tx.Exec(statsQuery); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if err := hs.cleanupTable(tx, table); err != nil {
		logging.Warnf("storage", "Failed to cleanup %s: %v", table, err)
	}

	return tx.Commit()
}

// CleanupOldEntries trims both tables to the configured maximum
func (hs *HistoryStore) CleanupOldEntries() error {
	tx, err := hs.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"log_entries", "snapshots"} {
		if err := hs.cleanupTable(tx, table); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (hs *HistoryStore) cleanupTable(tx *sql.Tx, table string) error {
	if hs.maxEntries <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		return err
	}
	if count <= hs.maxEntries {
		return nil
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id IN (
			SELECT id FROM %s
			ORDER BY id ASC
			LIMIT ?
		)`, table, table)
	if _, err := tx.Exec(query, count-hs.maxEntries); err != nil {
		return err
	}

	_, err := tx.Exec("UPDATE history_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Close closes the database connection
func (hs *HistoryStore) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}
