// internal/api/error_codes.go
package api

import (
	"net/http"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
)

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorValidation    = "VALIDATION_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 地图相关错误
	ErrorMapNotFound = "MAP_NOT_FOUND"
	ErrorMapInvalid  = "MAP_INVALID"

	// 情节线与场景
	ErrorThreadNotFound = "THREAD_NOT_FOUND"
	ErrorSceneNotFound  = "SCENE_NOT_FOUND"
	ErrorThreadInvalid  = "THREAD_INVALID"
	ErrorSceneInvalid   = "SCENE_INVALID"
	ErrorOrderInvalid   = "ORDER_INVALID"
	ErrorSettingInvalid = "SETTING_INVALID"

	// 导入导出
	ErrorImportInvalid       = "IMPORT_INVALID"
	ErrorExportFailed        = "EXPORT_FAILED"
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"
	ErrorFileUploadFailed    = "FILE_UPLOAD_FAILED"

	// 存储
	ErrorStorageFailed = "STORAGE_FAILED"
)

// statusForError maps an AppError type to an HTTP status and default code.
func statusForError(err error) (int, string) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorValidation
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, ErrorConflict
	case apperrors.ErrorTypeStorage:
		return http.StatusInternalServerError, ErrorStorageFailed
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, ErrorInternalError
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}
