package websocket

import (
	"sync"
)

// Hub 连接注册表
// 双向索引: 连接 ID → 客户端,承包商 ID → 连接集合
// 只保存路由信息,进程重启后由客户端重连重建
type Hub struct {
	// 连接 ID → 客户端
	clients map[string]*Client

	// 承包商 ID → 连接集合
	byContractor map[string]map[string]*Client

	// 互斥锁,保护两个索引
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		byContractor: make(map[string]map[string]*Client),
	}
}

// Register 注册客户端
// 连接与断开事件来自独立的 goroutine,注册必须并发安全
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	conns, ok := h.byContractor[client.ContractorID]
	if !ok {
		conns = make(map[string]*Client)
		h.byContractor[client.ContractorID] = conns
	}
	conns[client.ID] = client
}

// Unregister 注销客户端并关闭其发送通道
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)

	if conns, ok := h.byContractor[client.ContractorID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.byContractor, client.ContractorID)
		}
	}

	client.Close()
}

// Get 根据连接 ID 查找客户端
func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	return client, ok
}

// ConnectionsFor 返回承包商的所有连接
// 同一承包商可以持有多个连接(多设备)
func (h *Hub) ConnectionsFor(contractorID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.byContractor[contractorID]
	if !ok {
		return nil
	}
	result := make([]*Client, 0, len(conns))
	for _, c := range conns {
		result = append(result, c)
	}
	return result
}

// All 返回所有连接
func (h *Hub) All() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		result = append(result, c)
	}
	return result
}

// IsOnline 判断承包商是否在线
func (h *Hub) IsOnline(contractorID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.byContractor[contractorID]) > 0
}

// Count 获取连接数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
