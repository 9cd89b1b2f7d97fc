// internal/api/websocket_handlers.go
package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/StoryMap/internal/services"
)

// clientMessage 客户端可以发送的消息
type clientMessage struct {
	Type string `json:"type"`
}

// MapWebSocket 订阅地图的实时图更新。连接建立后先推送当前图
func (h *Handler) MapWebSocket(c *gin.Context) {
	mapID := c.Param("id")
	if _, err := h.Maps.GetMap(c.Request.Context(), mapID); err != nil {
		h.Response.FromError(c, err, "")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", map[string]interface{}{"map_id": mapID, "error": err})
		return
	}

	client := newWebSocketClient(conn, mapID)
	h.WebSocket.registerClient(client)
	defer h.WebSocket.unregisterClient(client)

	go h.writePump(client)

	// registered first so no mutation between the snapshot and the
	// subscription is lost; clients drop messages with an older revision
	graph, revision, err := h.Maps.Graph(c.Request.Context(), mapID)
	if err != nil {
		return
	}
	h.sendJSON(client, services.MapEvent{
		Type:     services.EventGraph,
		MapID:    mapID,
		Revision: revision,
		Graph:    &graph,
	})

	h.readPump(client)
}

// readPump 读取客户端消息直到连接断开
func (h *Handler) readPump(client *WebSocketClient) {
	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", map[string]interface{}{"map_id": client.mapID, "error": err})
			}
			return
		}
		client.UpdatePing()

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendJSON(client, gin.H{"type": "error", "error": "invalid message"})
			continue
		}
		switch msg.Type {
		case "ping":
			h.sendJSON(client, gin.H{"type": "pong", "timestamp": time.Now().Unix()})
		case "refresh":
			graph, revision, err := h.Maps.Graph(context.Background(), client.mapID)
			if err != nil {
				h.sendJSON(client, gin.H{"type": "error", "error": err.Error()})
				continue
			}
			h.sendJSON(client, services.MapEvent{Type: services.EventGraph, MapID: client.mapID, Revision: revision, Graph: &graph})
		default:
			h.sendJSON(client, gin.H{"type": "error", "error": "unknown message type " + msg.Type})
		}
	}
}

// writePump 串行写入队列中的消息并定期发送 ping
func (h *Handler) writePump(client *WebSocketClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if message == nil {
				_ = client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "map deleted"))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}

// sendJSON 发送单条消息给一个客户端，队列已满时断开
func (h *Handler) sendJSON(client *WebSocketClient, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if !client.enqueue(data) {
		h.WebSocket.unregisterClient(client)
	}
}

// GetWebSocketStatus 获取 WebSocket 连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := h.WebSocket.GetStatus()
	status["ping_timeout_seconds"] = int(pongWait.Seconds())
	h.Response.Success(c, status)
}
