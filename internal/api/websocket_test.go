package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryMap/internal/services"
)

func dialMap(t *testing.T, srv *httptest.Server, mapID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/maps/" + mapID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) services.MapEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev services.MapEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketGraphFeed(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	ctx := context.Background()
	id := s.createMap(t, "Heist")
	conn := dialMap(t, srv, id)

	initial := readEvent(t, conn)
	assert.Equal(t, services.EventGraph, initial.Type)
	assert.Equal(t, id, initial.MapID)
	require.NotNil(t, initial.Graph)
	assert.Empty(t, initial.Graph.Nodes)

	require.Eventually(t, func() bool { return s.ws.ClientCount(id) == 1 }, time.Second, 10*time.Millisecond)

	scene, err := s.maps.AddScene(ctx, id, services.SceneInput{Title: "Opening"})
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, services.EventGraph, ev.Type)
	assert.Greater(t, ev.Revision, initial.Revision)
	require.NotNil(t, ev.Graph)
	require.Len(t, ev.Graph.Nodes, 1)
	assert.Equal(t, "1. Opening", ev.Graph.Nodes[0].Label)

	_, err = s.maps.DeleteScene(ctx, id, scene.ID)
	require.NoError(t, err)
	ev = readEvent(t, conn)
	assert.Equal(t, services.EventSceneDeleted, ev.Type)
	assert.Equal(t, scene.ID, ev.SceneID)
	ev = readEvent(t, conn)
	assert.Equal(t, services.EventGraph, ev.Type)
}

func TestWebSocketPingAndRefresh(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	id := s.createMap(t, "Heist")
	conn := dialMap(t, srv, id)
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh"}))
	ev := readEvent(t, conn)
	assert.Equal(t, services.EventGraph, ev.Type)
}

func TestWebSocketClosedWhenMapDeleted(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	id := s.createMap(t, "Heist")
	conn := dialMap(t, srv, id)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return s.ws.ClientCount(id) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.maps.DeleteMap(context.Background(), id))

	ev := readEvent(t, conn)
	assert.Equal(t, services.EventMapDeleted, ev.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, s.ws.ClientCount(id))
}

func TestWebSocketUnknownMap(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/maps/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
