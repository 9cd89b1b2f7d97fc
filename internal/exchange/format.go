// internal/exchange/format.go
package exchange

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
)

// Format 导入导出格式
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type used when serving an export.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat accepts "json" or "csv" in any case. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unsupported format %q", s), nil)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("cannot infer format of %q", path), nil)
	}
	return ParseFormat(ext)
}

// Decode parses data in the given format. existing is only consulted by CSV,
// which carries no thread definitions of its own.
func Decode(format Format, data []byte, existing []models.PlotThread) (models.Dataset, error) {
	switch format {
	case FormatCSV:
		return DecodeCSV(data, CSVOptions{Existing: existing})
	case FormatJSON:
		return DecodeJSON(data)
	default:
		return models.Dataset{}, apperrors.NewValidationError(fmt.Sprintf("unsupported format %q", format), nil)
	}
}

// Encode serializes a dataset. CSV carries scenes only.
func Encode(format Format, ds models.Dataset) ([]byte, error) {
	switch format {
	case FormatCSV:
		return EncodeCSV(ds.Scenes)
	case FormatJSON:
		return EncodeJSON(ds)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported format %q", format), nil)
	}
}
