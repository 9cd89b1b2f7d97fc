// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/StoryMap/internal/services"
	"github.com/Corphon/StoryMap/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketClient 表示一个订阅某个地图的连接
type WebSocketClient struct {
	conn      *websocket.Conn
	mapID     string
	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	lastPing  atomic.Int64 // unix nano
	createdAt time.Time
}

func newWebSocketClient(conn *websocket.Conn, mapID string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		mapID:     mapID,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close 安全关闭客户端连接，可重复调用
func (client *WebSocketClient) Close() {
	if client.closed.CompareAndSwap(false, true) {
		close(client.done)
		if client.conn != nil {
			_ = client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return client.closed.Load()
}

// UpdatePing 更新最后活跃时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// enqueue never blocks. A full queue means the client cannot keep up.
func (client *WebSocketClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// WebSocketManager 按地图 ID 管理所有连接并转发地图事件
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // mapID -> clients
	mutex       sync.RWMutex
	pingTimeout time.Duration
	logger      *utils.Logger
	metrics     *utils.MetricsCollector
}

// NewWebSocketManager 创建连接管理器
func NewWebSocketManager(logger *utils.Logger, metrics *utils.MetricsCollector) *WebSocketManager {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		pingTimeout: pongWait,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run 定期清理过期连接，ctx 结束时关闭所有连接
func (manager *WebSocketManager) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.cleanupExpiredConnections()
		case <-ctx.Done():
			manager.shutdown()
			return
		}
	}
}

// registerClient 注册新客户端
func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.mapID] == nil {
		manager.connections[client.mapID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.mapID][client] = struct{}{}
	manager.metrics.IncGauge(utils.MetricWSClients)

	manager.logger.Info("websocket client connected", map[string]interface{}{"map_id": client.mapID})
}

// unregisterClient 注销并关闭客户端
func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	manager.mutex.Lock()
	removed := manager.removeLocked(client)
	manager.mutex.Unlock()

	client.Close()
	if removed {
		manager.logger.Info("websocket client disconnected", map[string]interface{}{"map_id": client.mapID})
	}
}

func (manager *WebSocketManager) removeLocked(client *WebSocketClient) bool {
	connections, exists := manager.connections[client.mapID]
	if !exists {
		return false
	}
	if _, ok := connections[client]; !ok {
		return false
	}
	delete(connections, client)
	if len(connections) == 0 {
		delete(manager.connections, client.mapID)
	}
	manager.metrics.DecGauge(utils.MetricWSClients)
	return true
}

// cleanupExpiredConnections 清理过期和已关闭的连接
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	var expired []*WebSocketClient
	for _, connections := range manager.connections {
		for client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				expired = append(expired, client)
			}
		}
	}
	for _, client := range expired {
		manager.removeLocked(client)
	}
	manager.mutex.Unlock()

	for _, client := range expired {
		client.Close()
	}
}

// BroadcastToMap 向订阅指定地图的客户端广播消息；队列已满的客户端被断开
func (manager *WebSocketManager) BroadcastToMap(mapID string, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		manager.logger.Error("encode websocket message", map[string]interface{}{"map_id": mapID, "error": err})
		return
	}

	manager.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(manager.connections[mapID]))
	for client := range manager.connections[mapID] {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msgBytes) {
			manager.logger.Warn("websocket send queue full, dropping client", map[string]interface{}{"map_id": mapID})
			manager.unregisterClient(client)
		}
	}
}

// OnMapEvent forwards a map event to its subscribers. A deleted map also
// disconnects them.
func (manager *WebSocketManager) OnMapEvent(ev services.MapEvent) {
	manager.BroadcastToMap(ev.MapID, ev)
	if ev.Type != services.EventMapDeleted {
		return
	}

	manager.mutex.Lock()
	var clients []*WebSocketClient
	for client := range manager.connections[ev.MapID] {
		clients = append(clients, client)
	}
	for _, client := range clients {
		manager.removeLocked(client)
	}
	manager.mutex.Unlock()

	// a nil message tells the writer to send a close frame after the queue drains
	for _, client := range clients {
		if !client.enqueue(nil) {
			client.Close()
		}
	}
}

// shutdown 关闭所有连接
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	var clients []*WebSocketClient
	for _, connections := range manager.connections {
		for client := range connections {
			clients = append(clients, client)
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
	manager.metrics.SetGauge(utils.MetricWSClients, 0)
	manager.mutex.Unlock()

	for _, client := range clients {
		client.Close()
	}
	manager.logger.Info("websocket manager stopped", map[string]interface{}{"closed": len(clients)})
}

// ClientCount returns the number of clients subscribed to mapID, or to any
// map when mapID is empty.
func (manager *WebSocketManager) ClientCount(mapID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	if mapID != "" {
		return len(manager.connections[mapID])
	}
	total := 0
	for _, connections := range manager.connections {
		total += len(connections)
	}
	return total
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	maps := make(map[string]interface{}, len(manager.connections))
	total := 0
	for mapID, connections := range manager.connections {
		maps[mapID] = map[string]interface{}{"client_count": len(connections)}
		total += len(connections)
	}
	return map[string]interface{}{
		"total_maps":        len(manager.connections),
		"total_connections": total,
		"maps":              maps,
	}
}
