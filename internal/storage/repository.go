// internal/storage/repository.go
package storage

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
)

// Backend 持久化后端
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Repository persists whole story map snapshots.
type Repository interface {
	// Save inserts or replaces a map.
	Save(ctx context.Context, m *models.StoryMap) error
	// Load returns a NotFound AppError for unknown ids.
	Load(ctx context.Context, id string) (*models.StoryMap, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.StoryMap, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    Backend
	DataDir    string
	SQLitePath string
}

// Open builds the repository named by opts.Backend. Empty means file.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case "", BackendFile:
		fs, err := NewFileStorage(opts.DataDir)
		if err != nil {
			return nil, apperrors.NewStorageError("open file storage", err)
		}
		return NewFileRepository(fs), nil
	case BackendSQLite:
		return OpenSQLiteRepository(ctx, opts.SQLitePath)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown storage backend %q", opts.Backend), nil)
	}
}

// validMapID rejects ids that could escape the storage root.
func validMapID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid map id %q", id), nil)
	}
	return nil
}
