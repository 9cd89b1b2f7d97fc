// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryMap/internal/config"
	"github.com/Corphon/StoryMap/internal/di"
	"github.com/Corphon/StoryMap/internal/utils"
)

// Router 包含路由和需要后台运行的限流器
type Router struct {
	Engine  *gin.Engine
	Limiter *RateLimiter
	Handler *Handler
}

// SetupRouter 配置HTTP路由，服务只从容器中获取
func SetupRouter(container *di.Container) (*Router, error) {
	cfg := config.GetCurrentConfig()

	handler, err := NewHandler(container)
	if err != nil {
		return nil, err
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(AccessLogMiddleware(handler.logger, utils.NewAPIMetrics(handler.Metrics, handler.logger)))
	r.Use(corsMiddleware())

	// WebSocket 不计入限流
	r.GET("/ws/maps/:id", handler.MapWebSocket)

	api := r.Group("/api")
	api.Use(RateLimitByIP(limiter, handler.Response))
	registerRoutes(api, handler)

	r.NoRoute(func(c *gin.Context) {
		handler.Response.Error(c, 404, ErrorNotFound, "route not found")
	})

	return &Router{Engine: r, Limiter: limiter, Handler: handler}, nil
}

func registerRoutes(api *gin.RouterGroup, handler *Handler) {
	// ===============================
	// 系统
	// ===============================
	api.GET("/health", handler.Health)
	api.GET("/metrics", handler.GetMetrics)
	api.GET("/ws/status", handler.GetWebSocketStatus)

	settingsGroup := api.Group("/settings")
	{
		settingsGroup.GET("", handler.GetSettings)
		settingsGroup.PUT("", handler.UpdateSettings)
	}

	// ===============================
	// 结构模板
	// ===============================
	structuresGroup := api.Group("/structures")
	{
		structuresGroup.GET("", handler.ListStructures)
		structuresGroup.GET("/:structureId", handler.GetStructure)
	}

	// ===============================
	// 故事地图
	// ===============================
	mapsGroup := api.Group("/maps")
	{
		mapsGroup.GET("", handler.ListMaps)
		mapsGroup.POST("", handler.CreateMap)
		mapsGroup.GET("/:id", handler.GetMap)
		mapsGroup.PATCH("/:id", handler.RenameMap)
		mapsGroup.DELETE("/:id", handler.DeleteMap)

		threadsGroup := mapsGroup.Group("/:id/threads")
		{
			threadsGroup.GET("", handler.ListThreads)
			threadsGroup.POST("", handler.AddThread)
			threadsGroup.PUT("/:threadId", handler.UpdateThread)
			threadsGroup.DELETE("/:threadId", handler.DeleteThread)
		}

		scenesGroup := mapsGroup.Group("/:id/scenes")
		{
			scenesGroup.GET("", handler.ListScenes)
			scenesGroup.POST("", handler.AddScene)
			scenesGroup.PUT("", handler.ReplaceScenes)
			scenesGroup.PUT("/:sceneId", handler.UpdateScene)
			scenesGroup.DELETE("/:sceneId", handler.DeleteScene)
			scenesGroup.POST("/:sceneId/reorder", handler.ReorderScene)
		}

		mapsGroup.GET("/:id/graph", handler.GetGraph)
		mapsGroup.GET("/:id/export", handler.ExportMap)
		mapsGroup.POST("/:id/import", handler.ImportMap)

		structureGroup := mapsGroup.Group("/:id/structure")
		{
			structureGroup.PUT("", handler.SetMapStructure)
			structureGroup.GET("/guide", handler.GetStructureGuide)
			structureGroup.POST("/beats/:beatId/scene", handler.SuggestScene)
			structureGroup.POST("/threads", handler.ApplyStructureThreads)
		}
	}
}
