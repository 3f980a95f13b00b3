package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// LogQuery represents query parameters for retrieving log lines
type LogQuery struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Level  string // "info", "warn", "error", or "" for all
	Search string
}

// SnapshotQuery represents query parameters for retrieving snapshots
type SnapshotQuery struct {
	Instrument string
	Limit      int
	Since      *time.Time
}

// LogRecord is a stored panel log line
type LogRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
}

// Snapshot is a stored instrument state
type Snapshot struct {
	ID         int64           `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Instrument string          `json:"instrument"`
	Payload    json.RawMessage `json:"payload"`
}

// HistoryStats represents database statistics
type HistoryStats struct {
	TotalLogEntries int       `json:"total_log_entries"`
	TotalSnapshots  int       `json:"total_snapshots"`
	LastCleanup     time.Time `json:"last_cleanup"`
}

// GetLogEntries retrieves log lines, newest first
func (hs *HistoryStore) GetLogEntries(query LogQuery) ([]LogRecord, error) {
	var args []interface{}
	sqlQuery := `
		SELECT id, timestamp, level, text
		FROM log_entries
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, query.Since.UTC())
	}
	if query.Until != nil {
		sqlQuery += " AND timestamp <= ?"
		args = append(args, query.Until.UTC())
	}
	if query.Level != "" {
		sqlQuery += " AND level = ?"
		args = append(args, query.Level)
	}
	if query.Search != "" {
		sqlQuery += " AND text LIKE ?"
		args = append(args, "%"+query.Search+"%")
	}

	sqlQuery += " ORDER BY timestamp DESC, id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := hs.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var records []LogRecord
	for rows.Next() {
		var rec LogRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Level, &rec.Text); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetSnapshots retrieves instrument snapshots, newest first
func (hs *HistoryStore) GetSnapshots(query SnapshotQuery) ([]Snapshot, error) {
	var args []interface{}
	sqlQuery := `
		SELECT id, timestamp, instrument, payload
		FROM snapshots
		WHERE 1=1
	`

	if query.Instrument != "" {
		sqlQuery += " AND instrument = ?"
		args = append(args, query.Instrument)
	}
	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, query.Since.UTC())
	}

	sqlQuery += " ORDER BY timestamp DESC, id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := hs.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var payload string
		if err := rows.Scan(&snap.ID, &snap.Timestamp, &snap.Instrument, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Payload = json.RawMessage(payload)
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// LatestSnapshot returns the newest snapshot of an instrument, or nil when
// none was stored
func (hs *HistoryStore) LatestSnapshot(instrument string) (*Snapshot, error) {
	snapshots, err := hs.GetSnapshots(SnapshotQuery{Instrument: instrument, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// GetInstruments lists the instruments that have stored snapshots
func (hs *HistoryStore) GetInstruments() ([]string, error) {
	rows, err := hs.db.Query("SELECT DISTINCT instrument FROM snapshots ORDER BY instrument")
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, name)
	}
	return instruments, rows.Err()
}

// GetHistoryStats retrieves database statistics
func (hs *HistoryStore) GetHistoryStats() (*HistoryStats, error) {
	var stats HistoryStats
	var lastCleanup sql.NullTime

	err := hs.db.QueryRow(`
		SELECT total_log_entries, total_snapshots, last_cleanup
		FROM history_stats WHERE id = 1
	`).Scan(&stats.TotalLogEntries, &stats.TotalSnapshots, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}

	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	return &stats, nil
}

// GetLogCount returns the number of stored log lines
func (hs *HistoryStore) GetLogCount() (int, error) {
	var count int
	err := hs.db.QueryRow("SELECT COUNT(*) FROM log_entries").Scan(&count)
	return count, err
}

// GetSnapshotCount returns the number of stored snapshots
func (hs *HistoryStore) GetSnapshotCount() (int, error) {
	var count int
	err := hs.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count)
	return count, err
}
