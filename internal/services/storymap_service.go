// internal/services/storymap_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/exchange"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/storage"
	"github.com/Corphon/StoryMap/internal/storymap"
	"github.com/Corphon/StoryMap/internal/structures"
	"github.com/Corphon/StoryMap/internal/utils"
)

// 推送给订阅者的事件类型
const (
	EventGraph        = "graph"
	EventSceneDeleted = "scene_deleted"
	EventMapDeleted   = "map_deleted"
)

// MapEvent 地图变更通知
type MapEvent struct {
	Type     string        `json:"type"`
	MapID    string        `json:"map_id"`
	Revision int64         `json:"revision"`
	Graph    *models.Graph `json:"graph,omitempty"`
	SceneID  string        `json:"scene_id,omitempty"`
}

// ThreadInput 新建或更新情节线的请求
type ThreadInput struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	IsMain bool   `json:"isMain"`
	MDQ    string `json:"mdq"`
	LDQ    string `json:"ldq"`
}

// SceneInput 新建或更新场景的请求；Order 与 Position 为空时分别保留/自动计算
type SceneInput struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	PlotThreads  []string         `json:"plotThreads"`
	Order        *int             `json:"order,omitempty"`
	Position     *models.Position `json:"position,omitempty"`
	SelectedBeat string           `json:"selectedBeat,omitempty"`
}

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// mapState is an immutable snapshot of one map. Mutations swap in a new one.
type mapState struct {
	meta  models.StoryMap // threads and scenes live in board
	board storymap.Board

	graphOnce sync.Once
	graph     models.Graph
	projected atomic.Bool
}

func (st *mapState) snapshot() *models.StoryMap {
	m := st.meta
	m.PlotThreads = st.board.Threads()
	m.Scenes = st.board.SortedScenes()
	return &m
}

// StoryMapService 是所有故事地图的唯一控制器：持有每个地图的当前快照，
// 串行化同一地图的修改，持久化新快照并通知订阅者
type StoryMapService struct {
	repo       storage.Repository
	structures *structures.Registry
	locks      *LockManager
	logger     *utils.Logger
	metrics    *utils.MetricsCollector
	now        func() time.Time

	mu        sync.RWMutex
	maps      map[string]*mapState
	loadedAll bool

	layoutMu         sync.RWMutex
	placement        storymap.Placement
	defaultStructure string

	subMu       sync.RWMutex
	subscribers map[int]func(MapEvent)
	nextSubID   int
}

// NewStoryMapService 创建故事地图服务
func NewStoryMapService(repo storage.Repository, registry *structures.Registry, locks *LockManager, logger *utils.Logger, metrics *utils.MetricsCollector) *StoryMapService {
	if locks == nil {
		locks = NewLockManager()
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &StoryMapService{
		repo:        repo,
		structures:  registry,
		locks:       locks,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		maps:        make(map[string]*mapState),
		placement:   storymap.DefaultPlacement(),
		subscribers: make(map[int]func(MapEvent)),
	}
}

// SetLayout changes the placement used for scenes created from now on and
// the structure attached to newly created maps.
func (s *StoryMapService) SetLayout(p storymap.Placement, defaultStructureID string) {
	s.layoutMu.Lock()
	defer s.layoutMu.Unlock()
	s.placement = p
	s.defaultStructure = defaultStructureID
}

func (s *StoryMapService) layout() (storymap.Placement, string) {
	s.layoutMu.RLock()
	defer s.layoutMu.RUnlock()
	return s.placement, s.defaultStructure
}

// Subscribe registers fn for every map event. fn runs while the map is
// locked and must not block.
func (s *StoryMapService) Subscribe(fn func(MapEvent)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *StoryMapService) hasSubscribers() bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers) > 0
}

func (s *StoryMapService) publish(ev MapEvent) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		fn(ev)
	}
}

// ==================== 地图 ====================

// CreateMap 创建空地图；structureID 为空时使用默认结构模板
func (s *StoryMapService) CreateMap(ctx context.Context, name, structureID string) (*models.StoryMap, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("map name is required", nil)
	}
	placement, defaultStructure := s.layout()
	if structureID == "" {
		structureID = defaultStructure
	}
	if structureID != "" {
		if _, ok := s.structure(structureID); !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown story structure %q", structureID), nil)
		}
	}

	now := s.now().UTC()
	st := &mapState{
		meta: models.StoryMap{
			ID:          storymap.NewMapID(),
			Name:        name,
			StructureID: structureID,
			Revision:    1,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		board: storymap.NewBoard(nil, nil, placement),
	}

	err := s.locks.ExecuteWithMapLock(st.meta.ID, func() error {
		if err := s.repo.Save(ctx, st.snapshot()); err != nil {
			return err
		}
		s.mu.Lock()
		s.maps[st.meta.ID] = st
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter(utils.MetricMapsCreated)
	s.logger.Info("story map created", map[string]interface{}{"map_id": st.meta.ID, "name": name})
	return st.snapshot(), nil
}

// ListMaps 返回所有地图的摘要，按创建时间排序
func (s *StoryMapService) ListMaps(ctx context.Context) ([]models.StoryMapSummary, error) {
	if err := s.loadAll(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	summaries := make([]models.StoryMapSummary, 0, len(s.maps))
	for _, st := range s.maps {
		summaries = append(summaries, st.snapshot().Summary())
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// GetMap 返回地图快照，场景按顺序排列
func (s *StoryMapService) GetMap(ctx context.Context, mapID string) (*models.StoryMap, error) {
	st, err := s.state(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return st.snapshot(), nil
}

// RenameMap 修改地图名称
func (s *StoryMapService) RenameMap(ctx context.Context, mapID, name string) (*models.StoryMap, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("map name is required", nil)
	}
	st, err := s.mutate(ctx, mapID, "rename_map", func(cur *mapState) (*mapState, error) {
		next := cur.derive(cur.board)
		next.meta.Name = name
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return st.snapshot(), nil
}

// DeleteMap 删除地图
func (s *StoryMapService) DeleteMap(ctx context.Context, mapID string) error {
	err := s.locks.ExecuteWithMapLock(mapID, func() error {
		if err := s.repo.Delete(ctx, mapID); err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.maps, mapID)
		s.mu.Unlock()
		s.publish(MapEvent{Type: EventMapDeleted, MapID: mapID})
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementCounter(utils.MetricMapsDeleted)
	s.logger.Info("story map deleted", map[string]interface{}{"map_id": mapID})
	return nil
}

// ==================== 情节线 ====================

// ListThreads 返回地图中的情节线
func (s *StoryMapService) ListThreads(ctx context.Context, mapID string) ([]models.PlotThread, error) {
	st, err := s.state(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return st.board.Threads(), nil
}

// AddThread 添加情节线；空地图中的第一条情节线自动成为主线
func (s *StoryMapService) AddThread(ctx context.Context, mapID string, in ThreadInput) (models.PlotThread, error) {
	thread, err := threadFromInput(storymap.NewThreadID(), in)
	if err != nil {
		return models.PlotThread{}, err
	}
	st, err := s.mutate(ctx, mapID, "add_thread", func(cur *mapState) (*mapState, error) {
		return cur.derive(cur.board.AddThread(thread)), nil
	})
	if err != nil {
		return models.PlotThread{}, err
	}
	s.metrics.IncrementCounter(utils.MetricThreadsAdded)
	added, _ := st.board.Thread(thread.ID)
	return added, nil
}

// UpdateThread 替换情节线；设为主线时其他情节线取消主线标记
func (s *StoryMapService) UpdateThread(ctx context.Context, mapID, threadID string, in ThreadInput) (models.PlotThread, error) {
	thread, err := threadFromInput(threadID, in)
	if err != nil {
		return models.PlotThread{}, err
	}
	st, err := s.mutate(ctx, mapID, "update_thread", func(cur *mapState) (*mapState, error) {
		board, ok := cur.board.UpdateThread(thread)
		if !ok {
			return nil, apperrors.ThreadNotFound(threadID)
		}
		return cur.derive(board), nil
	})
	if err != nil {
		return models.PlotThread{}, err
	}
	updated, _ := st.board.Thread(threadID)
	return updated, nil
}

// DeleteThread 删除情节线并从所有场景中移除；不存在时不做任何修改
func (s *StoryMapService) DeleteThread(ctx context.Context, mapID, threadID string) (bool, error) {
	deleted := false
	_, err := s.mutate(ctx, mapID, "delete_thread", func(cur *mapState) (*mapState, error) {
		board, ok := cur.board.DeleteThread(threadID)
		if !ok {
			return nil, nil
		}
		deleted = true
		return cur.derive(board), nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.metrics.IncrementCounter(utils.MetricThreadsDeleted)
	}
	return deleted, nil
}

// ==================== 场景 ====================

// ListScenes 返回按顺序排列的场景
func (s *StoryMapService) ListScenes(ctx context.Context, mapID string) ([]models.Scene, error) {
	st, err := s.state(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return st.board.SortedScenes(), nil
}

// AddScene 添加场景。未指定顺序时追加到末尾，未指定位置时按摆放规则计算
func (s *StoryMapService) AddScene(ctx context.Context, mapID string, in SceneInput) (models.Scene, error) {
	id := storymap.NewSceneID()
	st, err := s.mutate(ctx, mapID, "add_scene", func(cur *mapState) (*mapState, error) {
		scene, err := cur.sceneFromInput(s, id, in, nil)
		if err != nil {
			return nil, err
		}
		return cur.derive(cur.board.AddScene(scene)), nil
	})
	if err != nil {
		return models.Scene{}, err
	}
	s.metrics.IncrementCounter(utils.MetricScenesAdded)
	added, _ := st.board.Scene(id)
	return added, nil
}

// UpdateScene 替换场景。Position 为空时保留原位置，Order 为空时保留原顺序；
// 顺序变化时由重排引擎移动中间的场景
func (s *StoryMapService) UpdateScene(ctx context.Context, mapID, sceneID string, in SceneInput) (models.Scene, error) {
	st, err := s.mutate(ctx, mapID, "update_scene", func(cur *mapState) (*mapState, error) {
		prev, ok := cur.board.Scene(sceneID)
		if !ok {
			return nil, apperrors.SceneNotFound(sceneID)
		}
		scene, err := cur.sceneFromInput(s, sceneID, in, &prev)
		if err != nil {
			return nil, err
		}
		board, _ := cur.board.UpdateScene(scene)
		return cur.derive(board), nil
	})
	if err != nil {
		return models.Scene{}, err
	}
	updated, _ := st.board.Scene(sceneID)
	return updated, nil
}

// DeleteScene 删除场景并填补顺序空缺；不存在时不做任何修改
func (s *StoryMapService) DeleteScene(ctx context.Context, mapID, sceneID string) (bool, error) {
	deleted := false
	_, err := s.mutate(ctx, mapID, "delete_scene", func(cur *mapState) (*mapState, error) {
		board, ok := cur.board.DeleteScene(sceneID)
		if !ok {
			return nil, nil
		}
		deleted = true
		return cur.derive(board), nil
	}, MapEvent{Type: EventSceneDeleted, SceneID: sceneID})
	if err != nil {
		return false, err
	}
	if deleted {
		s.metrics.IncrementCounter(utils.MetricScenesDeleted)
	}
	return deleted, nil
}

// ReplaceScenes 整体替换场景集合，情节线保持不变
func (s *StoryMapService) ReplaceScenes(ctx context.Context, mapID string, scenes []models.Scene) ([]models.Scene, error) {
	seen := make(map[string]bool, len(scenes))
	incoming := make([]models.Scene, 0, len(scenes))
	for i, sc := range scenes {
		sc = sc.Clone()
		if sc.ID == "" {
			sc.ID = storymap.NewSceneID()
		}
		if seen[sc.ID] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("duplicate scene id %q", sc.ID), nil)
		}
		seen[sc.ID] = true
		if sc.Order < 1 {
			sc.Order = i + 1
		}
		incoming = append(incoming, sc)
	}

	st, err := s.mutate(ctx, mapID, "replace_scenes", func(cur *mapState) (*mapState, error) {
		return cur.derive(cur.board.ReplaceScenes(incoming)), nil
	})
	if err != nil {
		return nil, err
	}
	return st.board.SortedScenes(), nil
}

// ReorderScene 将场景移动到 newOrder（越界时截断到 [1, N]）
func (s *StoryMapService) ReorderScene(ctx context.Context, mapID, sceneID string, newOrder int) ([]models.Scene, error) {
	st, err := s.mutate(ctx, mapID, "reorder_scene", func(cur *mapState) (*mapState, error) {
		board, ok := cur.board.ReorderScene(sceneID, newOrder)
		if !ok {
			return nil, apperrors.SceneNotFound(sceneID)
		}
		return cur.derive(board), nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter(utils.MetricScenesReordered)
	return st.board.SortedScenes(), nil
}

// ==================== 导入 / 投影 ====================

// ImportDataset 解析数据并一次性替换两个集合；解析失败时地图保持不变
func (s *StoryMapService) ImportDataset(ctx context.Context, mapID string, format exchange.Format, data []byte) (*models.StoryMap, error) {
	st, err := s.mutate(ctx, mapID, "import", func(cur *mapState) (*mapState, error) {
		ds, err := exchange.Decode(format, data, cur.board.Threads())
		if err != nil {
			return nil, err
		}
		return cur.derive(cur.board.ReplaceAll(ds.PlotThreads, ds.Scenes)), nil
	})
	if err != nil {
		s.metrics.IncrementCounter(utils.MetricImportsFailed)
		s.logger.Warn("import failed", map[string]interface{}{
			"map_id": mapID,
			"format": string(format),
			"error":  err,
		})
		return nil, err
	}
	s.metrics.IncrementCounter(utils.MetricImportsOK)
	s.logger.Info("dataset imported", map[string]interface{}{
		"map_id":  mapID,
		"format":  string(format),
		"scenes":  len(st.board.Scenes()),
		"threads": len(st.board.Threads()),
	})
	return st.snapshot(), nil
}

// Graph 返回地图的节点/连线投影，同一版本只计算一次
func (s *StoryMapService) Graph(ctx context.Context, mapID string) (models.Graph, int64, error) {
	st, err := s.state(ctx, mapID)
	if err != nil {
		return models.Graph{}, 0, err
	}
	return s.graphOf(st), st.meta.Revision, nil
}

func (s *StoryMapService) graphOf(st *mapState) models.Graph {
	if st.projected.Load() {
		s.metrics.IncrementCounter(utils.MetricGraphCacheHits)
	}
	st.graphOnce.Do(func() {
		st.graph = st.board.Graph()
		st.projected.Store(true)
		s.metrics.IncrementCounter(utils.MetricGraphProjections)
	})
	return st.graph
}

// ==================== 故事结构 ====================

// SetStructure 为地图选择结构模板；空字符串表示清除
func (s *StoryMapService) SetStructure(ctx context.Context, mapID, structureID string) (*models.StoryMap, error) {
	if structureID != "" {
		if _, ok := s.structure(structureID); !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("story structure %q not found", structureID), nil)
		}
	}
	st, err := s.mutate(ctx, mapID, "set_structure", func(cur *mapState) (*mapState, error) {
		next := cur.derive(cur.board)
		next.meta.StructureID = structureID
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return st.snapshot(), nil
}

// SuggestScene 为缺失的节拍创建场景，追加到末尾
func (s *StoryMapService) SuggestScene(ctx context.Context, mapID, beatID string) (models.Scene, error) {
	id := storymap.NewSceneID()
	st, err := s.mutate(ctx, mapID, "suggest_scene", func(cur *mapState) (*mapState, error) {
		structure, err := cur.activeStructure(s)
		if err != nil {
			return nil, err
		}
		beat, ok := structure.Beat(beatID)
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("beat %q not found in %s", beatID, structure.ID), nil)
		}
		beat = storymap.ResolveBeatThreads(structure, beat, cur.board.Threads())
		return cur.derive(cur.board.AddScene(storymap.SceneFromBeat(id, beat))), nil
	})
	if err != nil {
		return models.Scene{}, err
	}
	s.metrics.IncrementCounter(utils.MetricScenesAdded)
	scene, _ := st.board.Scene(id)
	return scene, nil
}

// ApplyStructureThreads 添加结构模板建议的、地图中尚未存在的情节线（按 ID 或名称判断）
func (s *StoryMapService) ApplyStructureThreads(ctx context.Context, mapID string) ([]models.PlotThread, error) {
	st, err := s.mutate(ctx, mapID, "apply_structure_threads", func(cur *mapState) (*mapState, error) {
		structure, err := cur.activeStructure(s)
		if err != nil {
			return nil, err
		}
		board := cur.board
		for _, ct := range structure.CommonThreads {
			if hasThreadLike(board.Threads(), ct) {
				continue
			}
			id := ct.ID
			if id == "" {
				id = storymap.NewThreadID()
			}
			board = board.AddThread(models.PlotThread{
				ID:     id,
				Name:   ct.Name,
				Color:  ct.Color,
				IsMain: ct.IsMain,
			})
		}
		return cur.derive(board), nil
	})
	if err != nil {
		return nil, err
	}
	return st.board.Threads(), nil
}

// Structure returns the structure attached to a map, if any.
func (s *StoryMapService) Structure(ctx context.Context, mapID string) (*models.StoryStructure, error) {
	st, err := s.state(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return st.activeStructure(s)
}

func hasThreadLike(threads []models.PlotThread, ct models.CommonThread) bool {
	_, ok := storymap.MatchCommonThread(threads, ct)
	return ok
}

func (s *StoryMapService) structure(id string) (*models.StoryStructure, bool) {
	if s.structures == nil {
		return nil, false
	}
	return s.structures.Get(id)
}

// ==================== 内部 ====================

// mutate runs fn under the map's write lock. fn returns the next state, or
// nil for a no-op. The new state is persisted before it becomes visible;
// on any error the current state is kept.
func (s *StoryMapService) mutate(ctx context.Context, mapID, op string, fn func(cur *mapState) (*mapState, error), extra ...MapEvent) (*mapState, error) {
	var result *mapState
	err := s.locks.ExecuteWithMapLock(mapID, func() error {
		cur, err := s.state(ctx, mapID)
		if err != nil {
			return err
		}
		placement, _ := s.layout()
		next, err := fn(&mapState{meta: cur.meta, board: cur.board.WithPlacement(placement)})
		if err != nil {
			return err
		}
		if next == nil {
			result = cur
			return nil
		}

		next.meta.Revision = cur.meta.Revision + 1
		next.meta.UpdatedAt = s.now().UTC()
		if err := s.repo.Save(ctx, next.snapshot()); err != nil {
			return err
		}

		s.mu.Lock()
		s.maps[mapID] = next
		s.mu.Unlock()
		result = next

		for _, ev := range extra {
			ev.MapID = mapID
			ev.Revision = next.meta.Revision
			s.publish(ev)
		}
		if s.hasSubscribers() {
			g := s.graphOf(next)
			s.publish(MapEvent{Type: EventGraph, MapID: mapID, Revision: next.meta.Revision, Graph: &g})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("story map mutated", map[string]interface{}{
		"map_id":   mapID,
		"op":       op,
		"revision": result.meta.Revision,
	})
	return result, nil
}

// state returns the current snapshot, loading it from the repository on
// first access.
func (s *StoryMapService) state(ctx context.Context, mapID string) (*mapState, error) {
	s.mu.RLock()
	st, ok := s.maps[mapID]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	m, err := s.repo.Load(ctx, mapID)
	if err != nil {
		return nil, err
	}
	loaded := s.fromStored(m)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.maps[mapID]; ok {
		return existing, nil
	}
	s.maps[mapID] = loaded
	return loaded, nil
}

func (s *StoryMapService) loadAll(ctx context.Context) error {
	s.mu.RLock()
	done := s.loadedAll
	s.mu.RUnlock()
	if done {
		return nil
	}

	stored, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range stored {
		if _, ok := s.maps[m.ID]; !ok {
			s.maps[m.ID] = s.fromStored(m)
		}
	}
	s.loadedAll = true
	return nil
}

// fromStored normalizes a persisted map the same way an import would.
func (s *StoryMapService) fromStored(m *models.StoryMap) *mapState {
	placement, _ := s.layout()
	meta := *m
	meta.PlotThreads = nil
	meta.Scenes = nil
	return &mapState{
		meta:  meta,
		board: storymap.NewBoard(m.PlotThreads, m.Scenes, placement),
	}
}

// derive starts the next snapshot from st with a new board.
func (st *mapState) derive(board storymap.Board) *mapState {
	return &mapState{meta: st.meta, board: board}
}

func (st *mapState) activeStructure(s *StoryMapService) (*models.StoryStructure, error) {
	if st.meta.StructureID == "" {
		return nil, apperrors.NewValidationError("map has no story structure", nil)
	}
	structure, ok := s.structure(st.meta.StructureID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("story structure %q not found", st.meta.StructureID), nil)
	}
	return structure, nil
}

// sceneFromInput validates in against the map and builds the scene. prev is
// the stored scene for updates.
func (st *mapState) sceneFromInput(s *StoryMapService, id string, in SceneInput, prev *models.Scene) (models.Scene, error) {
	threads := storymap.DedupeThreadIDs(in.PlotThreads)
	for _, tid := range threads {
		if _, ok := st.board.Thread(tid); !ok {
			// a membership already stored may stay dangling
			if prev != nil && prev.HasThread(tid) {
				continue
			}
			return models.Scene{}, apperrors.NewValidationError(fmt.Sprintf("unknown plot thread %q", tid), nil)
		}
	}

	scene := models.Scene{
		ID:           id,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		PlotThreads:  threads,
		SelectedBeat: in.SelectedBeat,
	}
	if in.Position != nil {
		p := *in.Position
		scene.Position = &p
	}
	switch {
	case in.Order != nil:
		scene.Order = *in.Order
	case prev != nil:
		scene.Order = prev.Order
	}

	if in.SelectedBeat != "" && st.meta.StructureID != "" {
		if structure, ok := s.structure(st.meta.StructureID); ok {
			if beat, ok := structure.Beat(in.SelectedBeat); ok {
				beat = storymap.ResolveBeatThreads(structure, beat, st.board.Threads())
				scene = storymap.ApplyBeat(scene, beat)
			}
		}
	}
	return scene, nil
}

func threadFromInput(id string, in ThreadInput) (models.PlotThread, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.PlotThread{}, apperrors.NewValidationError("thread name is required", nil)
	}
	color := strings.TrimSpace(in.Color)
	if color != "" && !colorPattern.MatchString(color) {
		return models.PlotThread{}, apperrors.NewValidationError(fmt.Sprintf("invalid color %q", in.Color), nil)
	}
	return models.PlotThread{
		ID:     id,
		Name:   name,
		Color:  color,
		IsMain: in.IsMain,
		MDQ:    in.MDQ,
		LDQ:    in.LDQ,
	}, nil
}
