// internal/storage/sqlite_repository.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
)

// SQLiteRepository keeps one row per map with the snapshot as JSON.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (and migrates) the database at path.
func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStorageError("create sqlite dir", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, apperrors.NewStorageError("configure sqlite", err)
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("migrate sqlite", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS story_maps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			revision INTEGER NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_story_maps_updated ON story_maps(updated_at_unixms);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Save(ctx context.Context, m *models.StoryMap) error {
	if err := validMapID(m.ID); err != nil {
		return err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return apperrors.NewStorageError("encode story map", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO story_maps (id, name, payload_json, revision, created_at_unixms, updated_at_unixms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payload_json = excluded.payload_json,
			revision = excluded.revision,
			updated_at_unixms = excluded.updated_at_unixms`,
		m.ID, m.Name, string(payload), m.Revision, unixMS(m.CreatedAt), unixMS(m.UpdatedAt))
	if err != nil {
		return apperrors.NewStorageError("save story map", err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context, id string) (*models.StoryMap, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload_json FROM story_maps WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.MapNotFound(id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("load story map", err)
	}
	return decodeMap(payload)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM story_maps WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewStorageError("delete story map", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.MapNotFound(id)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.StoryMap, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT payload_json FROM story_maps ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStorageError("list story maps", err)
	}
	defer rows.Close()

	var maps []*models.StoryMap
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperrors.NewStorageError("scan story map", err)
		}
		m, err := decodeMap(payload)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list story maps", err)
	}
	return maps, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func decodeMap(payload string) (*models.StoryMap, error) {
	var m models.StoryMap
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, apperrors.NewStorageError("decode story map", err)
	}
	return &m, nil
}

func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}
