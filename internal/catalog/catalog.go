// Package catalog keeps a history of site backups in a SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spbackup/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS site_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_timestamp TEXT NOT NULL,
	site TEXT NOT NULL,
	status TEXT NOT NULL,
	failed_stage TEXT,
	error TEXT,
	archive_path TEXT,
	archive_size INTEGER,
	uploaded_key TEXT,
	files_downloaded INTEGER,
	files_failed INTEGER,
	bytes_downloaded INTEGER,
	started_at TEXT,
	duration TEXT
);
CREATE INDEX IF NOT EXISTS site_runs_site ON site_runs (site, id);`

const DefaultLimit = 20

type Catalog struct {
	db *sql.DB
}

// Open creates the database file and its schema if needed.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Record stores the outcome of one site.
func (c *Catalog) Record(ctx context.Context, runTimestamp string, result models.SiteResult) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO site_runs (run_timestamp, site, status, failed_stage, error, archive_path,
			archive_size, uploaded_key, files_downloaded, files_failed, bytes_downloaded, started_at, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runTimestamp, result.Site, string(result.Status), string(result.FailedStage), result.Error,
		result.ArchivePath, result.ArchiveSize, result.UploadedKey, result.FilesDownloaded,
		result.FilesFailed, result.BytesDownloaded, result.StartedAt.UTC().Format(time.RFC3339),
		result.Duration.Round(time.Millisecond).String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", result.Site, err)
	}
	return nil
}

// List returns the newest entries first. An empty site lists every site.
func (c *Catalog) List(ctx context.Context, site string, limit int) ([]models.CatalogEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, run_timestamp, site, status, failed_stage, error, archive_path, archive_size,
		uploaded_key, files_downloaded, files_failed, bytes_downloaded, started_at, duration
		FROM site_runs`
	args := []any{}
	if site != "" {
		query += ` WHERE site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	entries := make([]models.CatalogEntry, 0)
	for rows.Next() {
		var e models.CatalogEntry
		var status, failedStage string
		if err := rows.Scan(&e.ID, &e.RunTimestamp, &e.Site, &status, &failedStage, &e.Error,
			&e.ArchivePath, &e.ArchiveSize, &e.UploadedKey, &e.FilesDownloaded, &e.FilesFailed,
			&e.BytesDownloaded, &e.StartedAt, &e.Duration); err != nil {
			return nil, fmt.Errorf("failed to read catalog row: %w", err)
		}
		e.Status = models.Status(status)
		e.FailedStage = models.Stage(failedStage)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return entries, nil
}
