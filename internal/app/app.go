// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Corphon/StoryMap/internal/api"
	"github.com/Corphon/StoryMap/internal/config"
	"github.com/Corphon/StoryMap/internal/di"
	"github.com/Corphon/StoryMap/internal/services"
	"github.com/Corphon/StoryMap/internal/storage"
	"github.com/Corphon/StoryMap/internal/storymap"
	"github.com/Corphon/StoryMap/internal/structures"
	"github.com/Corphon/StoryMap/internal/utils"
)

const (
	lockCleanupInterval      = 5 * time.Minute
	rateLimitCleanupInterval = time.Minute
	cacheCleanupInterval     = 2 * time.Minute
	metricsReportInterval    = 5 * time.Minute
	shutdownTimeout          = 30 * time.Second
	structureReloadDebounce  = 300 * time.Millisecond
)

// App 表示应用程序实例
type App struct {
	config    *config.AppConfig
	container *di.Container
	logger    *utils.Logger
	repo      storage.Repository
	files     *storage.FileStorage
	router    *api.Router
	server    *http.Server
	watcher   *structures.Watcher

	unsubscribe func()
}

// New 创建应用，服务在 Initialize 中注册到 container
func New(cfg *config.AppConfig, container *di.Container) *App {
	if container == nil {
		container = di.GetContainer()
	}
	return &App{config: cfg, container: container}
}

// Initialize 初始化日志、服务和路由
func (a *App) Initialize(ctx context.Context) error {
	level := utils.INFO
	if a.config.DebugMode {
		level = utils.DEBUG
	}
	logger, err := utils.NewLogger(level, filepath.Join(a.config.LogDir, "storymap.log"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger

	if err := InitServices(ctx, a.config, a.container, logger); err != nil {
		return err
	}

	a.repo, _ = di.Resolve[storage.Repository](a.container, di.ServiceRepository)
	a.files, _ = di.Resolve[*storage.FileStorage](a.container, di.ServiceFiles)

	maps, _ := di.Resolve[*services.StoryMapService](a.container, di.ServiceStoryMaps)
	ws, _ := di.Resolve[*api.WebSocketManager](a.container, di.ServiceWebSocket)
	a.unsubscribe = maps.Subscribe(ws.OnMapEvent)

	registry, _ := di.Resolve[*structures.Registry](a.container, di.ServiceStructures)
	a.watcher, err = structures.NewWatcher(registry, structureReloadDebounce, func() {
		logger.Info("story structures reloaded", map[string]interface{}{"count": len(registry.List())})
	})
	if err != nil {
		logger.Warn("structure watcher unavailable", map[string]interface{}{"error": err})
		a.watcher = nil
	}

	router, err := api.SetupRouter(a.container)
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}
	a.router = router
	a.server = &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("application initialized", map[string]interface{}{
		"port":     a.config.Port,
		"data_dir": a.config.DataDir,
		"backend":  a.config.StorageBackend,
		"services": a.container.GetNames(),
	})
	return nil
}

// InitServices 按依赖顺序创建服务并注册到容器
func InitServices(ctx context.Context, cfg *config.AppConfig, container *di.Container, logger *utils.Logger) error {
	metrics := utils.GetMetricsCollector()
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)

	repo, err := storage.Open(ctx, storage.Options{
		Backend:    storage.Backend(cfg.StorageBackend),
		DataDir:    cfg.DataDir,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	container.Register(di.ServiceRepository, repo)

	// 导出文件总是写在数据目录下；文件后端直接复用它的 FileStorage
	var files *storage.FileStorage
	if fr, ok := repo.(*storage.FileRepository); ok {
		files = fr.Storage()
	} else if files, err = storage.NewFileStorage(cfg.DataDir); err != nil {
		return fmt.Errorf("open file storage: %w", err)
	}
	container.Register(di.ServiceFiles, files)

	registry := structures.NewRegistry(cfg.StructuresDir, logger)
	if err := registry.Load(); err != nil {
		return fmt.Errorf("load story structures: %w", err)
	}
	container.Register(di.ServiceStructures, registry)

	locks := services.NewLockManager()
	container.Register(di.ServiceLocks, locks)

	maps := services.NewStoryMapService(repo, registry, locks, logger, metrics)
	defaultStructure := cfg.Layout.DefaultStructureID
	if _, ok := registry.Get(defaultStructure); defaultStructure != "" && !ok {
		logger.Warn("default structure not found, ignoring", map[string]interface{}{"structure_id": defaultStructure})
		defaultStructure = ""
	}
	maps.SetLayout(storymap.Placement{
		HorizontalSpacing: cfg.Layout.HorizontalSpacing,
		LaneY:             cfg.Layout.LaneY,
	}, defaultStructure)
	container.Register(di.ServiceStoryMaps, maps)

	container.Register(di.ServiceGuide, services.NewStructureService(registry, maps))
	container.Register(di.ServiceExport, services.NewExportService(maps, files, logger, metrics))
	container.Register(di.ServiceWebSocket, api.NewWebSocketManager(logger, metrics))

	logger.Info("services registered", map[string]interface{}{"count": len(container.GetNames())})
	return nil
}

// Handler 返回 HTTP 处理器
func (a *App) Handler() http.Handler {
	return a.router.Engine
}

// Run 启动服务器和所有后台任务，直到 ctx 结束或任一任务失败
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve 与 Run 相同，但使用调用方提供的监听器
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	locks, _ := di.Resolve[*services.LockManager](a.container, di.ServiceLocks)
	ws, _ := di.Resolve[*api.WebSocketManager](a.container, di.ServiceWebSocket)
	metrics, _ := di.Resolve[*utils.MetricsCollector](a.container, di.ServiceMetrics)

	g.Go(func() error {
		locks.RunCleanup(ctx, lockCleanupInterval)
		return nil
	})
	g.Go(func() error {
		a.router.Limiter.RunCleanup(ctx, rateLimitCleanupInterval)
		return nil
	})
	g.Go(func() error {
		a.files.RunCacheCleanup(ctx, cacheCleanupInterval)
		return nil
	})
	g.Go(func() error {
		ws.Run(ctx)
		return nil
	})
	g.Go(func() error {
		utils.NewAPIMetrics(metrics, a.logger).StartMetricsCollection(ctx, metricsReportInterval)
		return nil
	})

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn("structure watcher not started", map[string]interface{}{"error": err})
		} else {
			g.Go(func() error {
				<-ctx.Done()
				a.watcher.Stop()
				return nil
			})
		}
	}

	g.Go(func() error {
		a.logger.Info("server listening", map[string]interface{}{"addr": ln.Addr().String()})
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down server", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Cleanup 释放资源
func (a *App) Cleanup() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil && a.logger != nil {
			a.logger.Error("close repository failed", map[string]interface{}{"error": err})
		}
		a.repo = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer 获取依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return a.container
}

// IsDebugMode 检查是否为调试模式
func (a *App) IsDebugMode() bool {
	return a.config != nil && a.config.DebugMode
}
