// internal/api/handlers.go
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryMap/internal/config"
	"github.com/Corphon/StoryMap/internal/di"
	"github.com/Corphon/StoryMap/internal/exchange"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/services"
	"github.com/Corphon/StoryMap/internal/storymap"
	"github.com/Corphon/StoryMap/internal/utils"
)

// maxImportSize 导入文件大小上限
const maxImportSize = 10 << 20

// Handler 处理API请求
type Handler struct {
	Maps       *services.StoryMapService  // 故事地图
	Structures *services.StructureService // 结构模板与节拍指南
	Exports    *services.ExportService    // 导出
	Metrics    *utils.MetricsCollector    // 指标
	WebSocket  *WebSocketManager          // 实时图推送
	Response   *ResponseHelper            // 响应助手

	logger    *utils.Logger
	startedAt time.Time
}

// NewHandler 从容器中取出服务创建处理器
func NewHandler(container *di.Container) (*Handler, error) {
	maps, err := di.Resolve[*services.StoryMapService](container, di.ServiceStoryMaps)
	if err != nil {
		return nil, err
	}
	guide, err := di.Resolve[*services.StructureService](container, di.ServiceGuide)
	if err != nil {
		return nil, err
	}
	exports, err := di.Resolve[*services.ExportService](container, di.ServiceExport)
	if err != nil {
		return nil, err
	}
	metrics, err := di.Resolve[*utils.MetricsCollector](container, di.ServiceMetrics)
	if err != nil {
		return nil, err
	}
	logger, err := di.Resolve[*utils.Logger](container, di.ServiceLogger)
	if err != nil {
		return nil, err
	}
	ws, err := di.Resolve[*WebSocketManager](container, di.ServiceWebSocket)
	if err != nil {
		return nil, err
	}

	return &Handler{
		Maps:       maps,
		Structures: guide,
		Exports:    exports,
		Metrics:    metrics,
		WebSocket:  ws,
		Response:   NewResponseHelper(utils.NewAPIMetrics(metrics, logger)),
		logger:     logger,
		startedAt:  time.Now(),
	}, nil
}

// CreateMapRequest 创建地图
type CreateMapRequest struct {
	Name        string `json:"name"`
	StructureID string `json:"structureId"`
}

// RenameMapRequest 重命名地图
type RenameMapRequest struct {
	Name string `json:"name"`
}

// ReorderRequest 移动场景
type ReorderRequest struct {
	Order *int `json:"order"`
}

// SetStructureRequest 选择结构模板，空字符串表示清除
type SetStructureRequest struct {
	StructureID *string `json:"structureId"`
}

// ========================================
// 系统
// ========================================

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"ws_clients":     h.WebSocket.ClientCount(""),
	})
}

// GetMetrics 返回全部指标
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.GetMetrics())
}

// GetSettings 返回画布设置
func (h *Handler) GetSettings(c *gin.Context) {
	h.Response.Success(c, config.GetCurrentConfig().Layout)
}

// UpdateSettings 修改画布设置，立即作用于之后新建的场景和地图
func (h *Handler) UpdateSettings(c *gin.Context) {
	var layout config.LayoutConfig
	if err := c.ShouldBindJSON(&layout); err != nil {
		h.Response.BadRequest(c, ErrorSettingInvalid, "invalid settings", err.Error())
		return
	}
	if layout.HorizontalSpacing <= 0 {
		h.Response.BadRequest(c, ErrorSettingInvalid, "horizontal_spacing must be positive")
		return
	}
	if layout.DefaultStructureID != "" {
		if _, err := h.Structures.Get(layout.DefaultStructureID); err != nil {
			h.Response.BadRequest(c, ErrorSettingInvalid, err.Error())
			return
		}
	}
	if err := config.UpdateLayout(layout); err != nil {
		h.Response.InternalError(c, "save settings failed", err.Error())
		return
	}
	h.Maps.SetLayout(storymap.Placement{
		HorizontalSpacing: layout.HorizontalSpacing,
		LaneY:             layout.LaneY,
	}, layout.DefaultStructureID)
	h.Response.Success(c, layout, "settings saved")
}

// ========================================
// 地图
// ========================================

// ListMaps 地图列表
func (h *Handler) ListMaps(c *gin.Context) {
	maps, err := h.Maps.ListMaps(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, maps)
}

// CreateMap 创建地图
func (h *Handler) CreateMap(c *gin.Context) {
	var req CreateMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, ErrorMapInvalid, "invalid request body", err.Error())
		return
	}
	m, err := h.Maps.CreateMap(c.Request.Context(), req.Name, req.StructureID)
	if err != nil {
		h.Response.FromError(c, err, ErrorMapInvalid)
		return
	}
	h.Response.Created(c, m, "map created")
}

// GetMap 地图详情，场景按顺序排列
func (h *Handler) GetMap(c *gin.Context) {
	m, err := h.Maps.GetMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, m)
}

// RenameMap 重命名地图
func (h *Handler) RenameMap(c *gin.Context) {
	var req RenameMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, ErrorMapInvalid, "invalid request body", err.Error())
		return
	}
	m, err := h.Maps.RenameMap(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.Response.FromError(c, err, ErrorMapInvalid)
		return
	}
	h.Response.Success(c, m)
}

// DeleteMap 删除地图
func (h *Handler) DeleteMap(c *gin.Context) {
	if err := h.Maps.DeleteMap(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, gin.H{"deleted": true}, "map deleted")
}

// ========================================
// 情节线
// ========================================

// ListThreads 情节线列表
func (h *Handler) ListThreads(c *gin.Context) {
	threads, err := h.Maps.ListThreads(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, threads)
}

// AddThread 新建情节线
func (h *Handler) AddThread(c *gin.Context) {
	var in services.ThreadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.Response.BadRequest(c, ErrorThreadInvalid, "invalid request body", err.Error())
		return
	}
	thread, err := h.Maps.AddThread(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.Response.FromError(c, err, ErrorThreadInvalid)
		return
	}
	h.Response.Created(c, thread)
}

// UpdateThread 修改情节线
func (h *Handler) UpdateThread(c *gin.Context) {
	var in services.ThreadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.Response.BadRequest(c, ErrorThreadInvalid, "invalid request body", err.Error())
		return
	}
	thread, err := h.Maps.UpdateThread(c.Request.Context(), c.Param("id"), c.Param("threadId"), in)
	if err != nil {
		h.Response.FromError(c, err, ErrorThreadInvalid)
		return
	}
	h.Response.Success(c, thread)
}

// DeleteThread 删除情节线，不存在时 deleted=false
func (h *Handler) DeleteThread(c *gin.Context) {
	deleted, err := h.Maps.DeleteThread(c.Request.Context(), c.Param("id"), c.Param("threadId"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, gin.H{"deleted": deleted})
}

// ========================================
// 场景
// ========================================

// ListScenes 场景列表（按顺序）
func (h *Handler) ListScenes(c *gin.Context) {
	scenes, err := h.Maps.ListScenes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, scenes)
}

// AddScene 新建场景
func (h *Handler) AddScene(c *gin.Context) {
	var in services.SceneInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.Response.BadRequest(c, ErrorSceneInvalid, "invalid request body", err.Error())
		return
	}
	scene, err := h.Maps.AddScene(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.Response.FromError(c, err, ErrorSceneInvalid)
		return
	}
	h.Response.Created(c, scene)
}

// UpdateScene 修改场景，未提供 position 时保留原位置
func (h *Handler) UpdateScene(c *gin.Context) {
	var in services.SceneInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.Response.BadRequest(c, ErrorSceneInvalid, "invalid request body", err.Error())
		return
	}
	scene, err := h.Maps.UpdateScene(c.Request.Context(), c.Param("id"), c.Param("sceneId"), in)
	if err != nil {
		h.Response.FromError(c, err, ErrorSceneInvalid)
		return
	}
	h.Response.Success(c, scene)
}

// DeleteScene 删除场景，不存在时 deleted=false
func (h *Handler) DeleteScene(c *gin.Context) {
	deleted, err := h.Maps.DeleteScene(c.Request.Context(), c.Param("id"), c.Param("sceneId"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, gin.H{"deleted": deleted})
}

// ReplaceScenes 整体替换场景
func (h *Handler) ReplaceScenes(c *gin.Context) {
	var scenes []models.Scene
	if err := c.ShouldBindJSON(&scenes); err != nil {
		h.Response.BadRequest(c, ErrorSceneInvalid, "expected an array of scenes", err.Error())
		return
	}
	out, err := h.Maps.ReplaceScenes(c.Request.Context(), c.Param("id"), scenes)
	if err != nil {
		h.Response.FromError(c, err, ErrorSceneInvalid)
		return
	}
	h.Response.Success(c, out)
}

// ReorderScene 移动场景到新的顺序位置
func (h *Handler) ReorderScene(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Order == nil {
		h.Response.BadRequest(c, ErrorOrderInvalid, "order must be an integer")
		return
	}
	scenes, err := h.Maps.ReorderScene(c.Request.Context(), c.Param("id"), c.Param("sceneId"), *req.Order)
	if err != nil {
		h.Response.FromError(c, err, ErrorOrderInvalid)
		return
	}
	h.Response.Success(c, scenes)
}

// GetGraph 返回节点与连线
func (h *Handler) GetGraph(c *gin.Context) {
	graph, revision, err := h.Maps.Graph(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, gin.H{"revision": revision, "graph": graph})
}

// ========================================
// 导入导出
// ========================================

// ExportMap 导出地图。download=true 时返回文件，save=true 时同时写入 data/exports
func (h *Handler) ExportMap(c *gin.Context) {
	format, err := exchange.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		h.Response.BadRequest(c, ErrorExportFormatInvalid, err.Error())
		return
	}
	download := queryBool(c, "download")
	result, err := h.Exports.ExportMap(c.Request.Context(), c.Param("id"), format, queryBool(c, "save"))
	if err != nil {
		h.Response.FromError(c, err, ErrorExportFailed)
		return
	}
	h.Response.ExportResponse(c, result, format, download)
}

// ImportMap 导入 JSON 或 CSV，替换地图的情节线和场景。
// 请求体可以是文件内容，也可以是 multipart 表单中的 file 字段
func (h *Handler) ImportMap(c *gin.Context) {
	data, filename, err := readImportBody(c)
	if err != nil {
		h.Response.BadRequest(c, ErrorFileUploadFailed, "read import data failed", err.Error())
		return
	}

	formatParam := c.Query("format")
	if formatParam == "" && filename != "" {
		if f, err := exchange.FormatFromPath(filename); err == nil {
			formatParam = string(f)
		}
	}
	format, err := exchange.ParseFormat(formatParam)
	if err != nil {
		h.Response.BadRequest(c, ErrorImportInvalid, err.Error())
		return
	}

	m, err := h.Maps.ImportDataset(c.Request.Context(), c.Param("id"), format, data)
	if err != nil {
		h.Response.FromError(c, err, ErrorImportInvalid)
		return
	}
	h.Response.Success(c, m, fmt.Sprintf("imported %d scenes and %d threads", len(m.Scenes), len(m.PlotThreads)))
}

func readImportBody(c *gin.Context) ([]byte, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)

	// 只有 multipart 请求才解析表单，其他请求体原样读取
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return data, file.Filename, err
	}

	data, err := io.ReadAll(c.Request.Body)
	return data, "", err
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// ========================================
// 故事结构
// ========================================

// ListStructures 结构模板列表
func (h *Handler) ListStructures(c *gin.Context) {
	h.Response.Success(c, h.Structures.List())
}

// GetStructure 结构模板详情
func (h *Handler) GetStructure(c *gin.Context) {
	structure, err := h.Structures.Get(c.Param("structureId"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, structure)
}

// SetMapStructure 为地图选择结构模板
func (h *Handler) SetMapStructure(c *gin.Context) {
	var req SetStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StructureID == nil {
		h.Response.BadRequest(c, ErrorMapInvalid, "structureId is required")
		return
	}
	m, err := h.Maps.SetStructure(c.Request.Context(), c.Param("id"), *req.StructureID)
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, m)
}

// GetStructureGuide 节拍指南
func (h *Handler) GetStructureGuide(c *gin.Context) {
	guide, err := h.Structures.Guide(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, guide)
}

// SuggestScene 为缺失的节拍创建场景
func (h *Handler) SuggestScene(c *gin.Context) {
	scene, err := h.Maps.SuggestScene(c.Request.Context(), c.Param("id"), c.Param("beatId"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Created(c, scene)
}

// ApplyStructureThreads 添加结构模板建议的情节线
func (h *Handler) ApplyStructureThreads(c *gin.Context) {
	threads, err := h.Maps.ApplyStructureThreads(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err, "")
		return
	}
	h.Response.Success(c, threads)
}
