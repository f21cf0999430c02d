// Package ledger keeps a SQLite record of the issues paperboy has
// downloaded. The record is informational: whether an issue is downloaded
// again depends only on its file being present in the output directory.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Ledger stores completed downloads.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Entry is one completed download.
type Entry struct {
	EntryID      uuid.UUID `json:"entry_id"`
	Newspaper    string    `json:"newspaper"`
	ReleaseDate  string    `json:"release_date"` // DD.MM.YYYY, as shown by the portal
	Filename     string    `json:"filename"`
	Bytes        int64     `json:"bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// NewLedger opens (and if necessary creates) the ledger database at dbPath.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Ledger{db: db, now: time.Now}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return l, nil
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		entry_id TEXT PRIMARY KEY,
		newspaper TEXT NOT NULL,
		release_date TEXT NOT NULL,
		filename TEXT NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		downloaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_downloaded_at ON downloads(downloaded_at);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a completed download and returns the new entry.
func (l *Ledger) Record(newspaper, releaseDate, filename string, bytes int64) (*Entry, error) {
	entry := &Entry{
		EntryID:      uuid.New(),
		Newspaper:    newspaper,
		ReleaseDate:  releaseDate,
		Filename:     filename,
		Bytes:        bytes,
		DownloadedAt: l.now().UTC(),
	}

	query := `
		INSERT INTO downloads (
			entry_id, newspaper, release_date, filename, bytes, downloaded_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := l.db.Exec(query,
		entry.EntryID.String(),
		entry.Newspaper,
		entry.ReleaseDate,
		entry.Filename,
		entry.Bytes,
		formatTime(entry.DownloadedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert download: %w", err)
	}

	return entry, nil
}

// List returns every recorded download, most recent first.
func (l *Ledger) List() ([]Entry, error) {
	query := `
		SELECT entry_id, newspaper, release_date, filename, bytes, downloaded_at
		FROM downloads
		ORDER BY downloaded_at DESC, filename ASC
	`

	rows, err := l.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var entryIDStr, downloadedAtStr string
		if err := rows.Scan(
			&entryIDStr, &entry.Newspaper, &entry.ReleaseDate,
			&entry.Filename, &entry.Bytes, &downloadedAtStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}

		entry.EntryID, err = uuid.Parse(entryIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid entry_id %q: %w", entryIDStr, err)
		}
		entry.DownloadedAt = parseTime(downloadedAtStr)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate downloads: %w", err)
	}

	return entries, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
