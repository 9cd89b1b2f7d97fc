// internal/storage/file_repository.go
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
)

const (
	mapsDir     = "maps"
	mapFileName = "map.json"
)

// FileRepository stores each map as maps/{id}/map.json under the storage root.
type FileRepository struct {
	fs *FileStorage
}

// NewFileRepository wraps a FileStorage.
func NewFileRepository(fs *FileStorage) *FileRepository {
	return &FileRepository{fs: fs}
}

// Storage exposes the underlying file storage.
func (r *FileRepository) Storage() *FileStorage {
	return r.fs
}

func (r *FileRepository) Save(ctx context.Context, m *models.StoryMap) error {
	if err := validMapID(m.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.fs.SaveJSONFile(filepath.Join(mapsDir, m.ID), mapFileName, m); err != nil {
		return apperrors.NewStorageError("save story map", err)
	}
	return nil
}

func (r *FileRepository) Load(ctx context.Context, id string) (*models.StoryMap, error) {
	if err := validMapID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var m models.StoryMap
	if err := r.fs.LoadJSONFile(filepath.Join(mapsDir, id), mapFileName, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.MapNotFound(id)
		}
		return nil, apperrors.NewStorageError("load story map", err)
	}
	return &m, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if err := validMapID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.fs.DeleteDir(filepath.Join(mapsDir, id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.MapNotFound(id)
		}
		return apperrors.NewStorageError("delete story map", err)
	}
	return nil
}

// List skips directories without a readable map file.
func (r *FileRepository) List(ctx context.Context) ([]*models.StoryMap, error) {
	dirs, err := r.fs.ListDirs(mapsDir)
	if err != nil {
		return nil, apperrors.NewStorageError("list story maps", err)
	}
	sort.Strings(dirs)

	maps := make([]*models.StoryMap, 0, len(dirs))
	for _, id := range dirs {
		m, err := r.Load(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		maps = append(maps, m)
	}
	return maps, nil
}

func (r *FileRepository) Close() error {
	return nil
}
