// internal/services/export_service.go
package services

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/exchange"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/storage"
	"github.com/Corphon/StoryMap/internal/utils"
)

const exportDir = "exports"

type ExportService struct {
	maps    *StoryMapService
	files   *storage.FileStorage
	logger  *utils.Logger
	metrics *utils.MetricsCollector
	now     func() time.Time
}

// NewExportService 创建导出服务；files 为空时只生成内容不落盘
func NewExportService(maps *StoryMapService, files *storage.FileStorage, logger *utils.Logger, metrics *utils.MetricsCollector) *ExportService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &ExportService{
		maps:    maps,
		files:   files,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// ExportMap 将地图序列化为 JSON 或 CSV。save 为 true 时同时写入 data/exports/{mapID}/
func (s *ExportService) ExportMap(ctx context.Context, mapID string, format exchange.Format, save bool) (*models.ExportResult, error) {
	m, err := s.maps.GetMap(ctx, mapID)
	if err != nil {
		return nil, err
	}

	content, err := exchange.Encode(format, models.Dataset{Scenes: m.Scenes, PlotThreads: m.PlotThreads})
	if err != nil {
		return nil, apperrors.NewProcessingError("encode export", err)
	}

	result := &models.ExportResult{
		MapID:       m.ID,
		Title:       m.Name,
		Format:      string(format),
		Content:     string(content),
		GeneratedAt: s.now().UTC(),
		FileSize:    int64(len(content)),
		SceneCount:  len(m.Scenes),
		ThreadCount: len(m.PlotThreads),
	}

	if save && s.files != nil {
		filePath, err := s.saveExport(result, format)
		if err != nil {
			return nil, err
		}
		result.FilePath = filePath
	}

	s.metrics.IncrementCounter(utils.MetricExports)
	s.logger.Info("story map exported", map[string]interface{}{
		"map_id": mapID,
		"format": result.Format,
		"file":   result.FilePath,
	})
	return result, nil
}

// FileName is the download name for an export titled title.
func FileName(title string, format exchange.Format, at time.Time) string {
	return fmt.Sprintf("%s_%s%s", slug(title), at.Format("20060102_150405"), format.Extension())
}

func (s *ExportService) saveExport(result *models.ExportResult, format exchange.Format) (string, error) {
	dir := path.Join(exportDir, result.MapID)
	name := FileName(result.Title, format, result.GeneratedAt)
	if err := s.files.SaveTextFile(dir, name, []byte(result.Content)); err != nil {
		return "", apperrors.NewStorageError("save export", err)
	}
	return filepath.Join(s.files.BaseDir, dir, name), nil
}

// slug keeps letters and digits, everything else becomes '-'.
func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "storymap"
	}
	return out
}
