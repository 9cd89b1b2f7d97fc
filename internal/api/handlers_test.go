package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Corphon/StoryMap/internal/config"
	"github.com/Corphon/StoryMap/internal/di"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/services"
	"github.com/Corphon/StoryMap/internal/storage"
	"github.com/Corphon/StoryMap/internal/structures"
	"github.com/Corphon/StoryMap/internal/utils"
)

type testServer struct {
	router *Router
	maps   *services.StoryMapService
	ws     *WebSocketManager
}

func newTestServer(t *testing.T, rateLimit string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("STRUCTURES_DIR", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("HORIZONTAL_SPACING", "")
	t.Setenv("DEFAULT_LANE_Y", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", rateLimit)
	require.NoError(t, config.InitConfig(dataDir))

	logger := utils.NewLoggerFromZap(zap.NewNop())
	metrics := utils.NewMetricsCollector()

	repo, err := storage.Open(ctx, storage.Options{Backend: storage.BackendFile, DataDir: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	files := repo.(*storage.FileRepository).Storage()

	reg := structures.NewRegistry(filepath.Join(dir, "structures"), logger)
	require.NoError(t, reg.Load())

	maps := services.NewStoryMapService(repo, reg, services.NewLockManager(), logger, metrics)
	ws := NewWebSocketManager(logger, metrics)
	t.Cleanup(maps.Subscribe(ws.OnMapEvent))

	container := di.NewContainer()
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServiceStoryMaps, maps)
	container.Register(di.ServiceGuide, services.NewStructureService(reg, maps))
	container.Register(di.ServiceExport, services.NewExportService(maps, files, logger, metrics))
	container.Register(di.ServiceWebSocket, ws)

	router, err := SetupRouter(container)
	require.NoError(t, err)
	return &testServer{router: router, maps: maps, ws: ws}
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Message string          `json:"message"`
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (s *testServer) createMap(t *testing.T, name string) string {
	t.Helper()
	rec, resp := s.do(t, http.MethodPost, "/api/maps", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.StoryMap](t, resp.Data).ID
}

func TestMapLifecycle(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createMap(t, "Heist")

	rec, resp := s.do(t, http.MethodPatch, "/api/maps/"+id, `{"name":"The Heist"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The Heist", decode[models.StoryMap](t, resp.Data).Name)

	rec, resp = s.do(t, http.MethodGet, "/api/maps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.StoryMapSummary](t, resp.Data), 1)

	rec, _ = s.do(t, http.MethodDelete, "/api/maps/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/maps/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorMapNotFound, resp.Error.Code)
	assert.False(t, resp.Success)
}

func TestCreateMapValidation(t *testing.T) {
	s := newTestServer(t, "")

	rec, resp := s.do(t, http.MethodPost, "/api/maps", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorMapInvalid, resp.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/maps", `{"name":"x","structureId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThreadAndSceneEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createMap(t, "Heist")
	base := "/api/maps/" + id

	rec, resp := s.do(t, http.MethodPost, base+"/threads", `{"name":"A","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorThreadInvalid, resp.Error.Code)

	rec, resp = s.do(t, http.MethodPost, base+"/threads", `{"name":"A","color":"#f00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	thread := decode[models.PlotThread](t, resp.Data)
	assert.True(t, thread.IsMain)

	body := `{"title":"Opening","plotThreads":["` + thread.ID + `"]}`
	rec, resp = s.do(t, http.MethodPost, base+"/scenes", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.Scene](t, resp.Data)
	assert.Equal(t, 1, first.Order)
	require.NotNil(t, first.Position)
	assert.Equal(t, models.Position{X: 250, Y: 100}, *first.Position)

	rec, _ = s.do(t, http.MethodPost, base+"/scenes", `{"title":"Job","plotThreads":["`+thread.ID+`"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = s.do(t, http.MethodGet, base+"/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode[struct {
		Revision int64        `json:"revision"`
		Graph    models.Graph `json:"graph"`
	}](t, resp.Data)
	assert.Len(t, payload.Graph.Nodes, 2)
	require.Len(t, payload.Graph.Edges, 1)
	assert.Equal(t, 4, payload.Graph.Edges[0].StrokeWidth)

	rec, resp = s.do(t, http.MethodPut, base+"/scenes/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorSceneNotFound, resp.Error.Code)

	rec, resp = s.do(t, http.MethodDelete, base+"/threads/"+thread.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true}`, string(resp.Data))

	rec, resp = s.do(t, http.MethodDelete, base+"/threads/"+thread.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":false}`, string(resp.Data))
}

func TestReorderScene(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createMap(t, "Heist")
	base := "/api/maps/" + id

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		_, resp := s.do(t, http.MethodPost, base+"/scenes", `{"title":"`+title+`"}`)
		ids = append(ids, decode[models.Scene](t, resp.Data).ID)
	}

	for _, body := range []string{`{}`, `{"order":"2"}`, `{"order":1.5}`} {
		rec, resp := s.do(t, http.MethodPost, base+"/scenes/"+ids[0]+"/reorder", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, ErrorOrderInvalid, resp.Error.Code, body)
	}

	rec, resp := s.do(t, http.MethodPost, base+"/scenes/"+ids[0]+"/reorder", `{"order":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var titles []string
	for _, sc := range decode[[]models.Scene](t, resp.Data) {
		titles = append(titles, sc.Title)
	}
	assert.Equal(t, []string{"B", "C", "A"}, titles)

	rec, _ = s.do(t, http.MethodPost, base+"/scenes/nope/reorder", `{"order":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportExport(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createMap(t, "Heist")
	base := "/api/maps/" + id

	csvData := "ID,Order,Title,Description,Plot Threads,Type,Position X,Position Y\n" +
		"s1,1,Opening,,t1,local,100,300\n" +
		"s2,2,Job,,t1,local,300,300\n"
	req := httptest.NewRequest(http.MethodPost, base+"/import?format=csv", strings.NewReader(csvData))
	rec := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp := s.do(t, http.MethodGet, base+"/export?format=json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.ExportResult](t, resp.Data)
	assert.Equal(t, 2, result.SceneCount)
	assert.Contains(t, result.Content, `"Opening"`)

	rec, _ = s.do(t, http.MethodGet, base+"/export?format=csv&download=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ID,Order,Title"))

	rec, resp = s.do(t, http.MethodGet, base+"/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorExportFormatInvalid, resp.Error.Code)

	rec, resp = s.do(t, http.MethodPost, base+"/import?format=json", `{"scenes":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorImportInvalid, resp.Error.Code)

	scenes, err := s.maps.ListScenes(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, scenes, 2)
}

func TestImportMultipartFile(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createMap(t, "Heist")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "story.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`{"plotThreads":[{"id":"t1","name":"Main","color":"#ff0000","isMain":true}],
		"scenes":[{"id":"s1","order":1,"title":"Opening","plotThreads":["t1"],"position":{"x":10,"y":20}}]}`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/maps/"+id+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	threads, err := s.maps.ListThreads(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Main", threads[0].Name)
}

func TestStructureEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createMap(t, "Heist")
	base := "/api/maps/" + id

	rec, resp := s.do(t, http.MethodGet, "/api/structures", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]models.StoryStructure](t, resp.Data))

	rec, _ = s.do(t, http.MethodGet, "/api/structures/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPut, base+"/structure", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPut, base+"/structure", `{"structureId":"three-act"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = s.do(t, http.MethodPost, base+"/structure/beats/midpoint/scene", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "midpoint", decode[models.Scene](t, resp.Data).SelectedBeat)

	rec, resp = s.do(t, http.MethodGet, base+"/structure/guide", "")
	require.Equal(t, http.StatusOK, rec.Code)
	guide := decode[models.StructureGuide](t, resp.Data)
	assert.NotEmpty(t, guide.Beats)

	rec, _ = s.do(t, http.MethodPost, base+"/structure/threads", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, "")

	rec, resp := s.do(t, http.MethodPut, "/api/settings", `{"horizontal_spacing":0,"lane_y":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorSettingInvalid, resp.Error.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/settings", `{"horizontal_spacing":100,"lane_y":40}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = s.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, decode[config.LayoutConfig](t, resp.Data).HorizontalSpacing)

	id := s.createMap(t, "Heist")
	_, resp = s.do(t, http.MethodPost, "/api/maps/"+id+"/scenes", `{"title":"A"}`)
	scene := decode[models.Scene](t, resp.Data)
	require.NotNil(t, scene.Position)
	assert.Equal(t, models.Position{X: 100, Y: 40}, *scene.Position)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, "2")

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodGet, "/api/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := s.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ErrorRateLimited, resp.Error.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestNoRoute(t *testing.T) {
	s := newTestServer(t, "")
	rec, resp := s.do(t, http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorNotFound, resp.Error.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc-123", resp.RequestID)
}
