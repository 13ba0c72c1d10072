package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClient(connID, contractorID string, skills ...string) *Client {
	return NewClient(connID, contractorID, "Contractor "+contractorID, skills, nil)
}

// TestHubRegisterAndGet 测试连接注册与查询
func TestHubRegisterAndGet(t *testing.T) {
	hub := NewHub()

	client := newTestClient("conn-1", "contractor-a")
	hub.Register(client)

	found, ok := hub.Get("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "contractor-a", found.ContractorID)

	_, ok = hub.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, hub.Count())
}

// TestHubMultipleConnectionsPerContractor 测试同一承包商多设备连接
func TestHubMultipleConnectionsPerContractor(t *testing.T) {
	hub := NewHub()

	hub.Register(newTestClient("conn-1", "contractor-a"))
	hub.Register(newTestClient("conn-2", "contractor-a"))
	hub.Register(newTestClient("conn-3", "contractor-b"))

	assert.Len(t, hub.ConnectionsFor("contractor-a"), 2)
	assert.Len(t, hub.ConnectionsFor("contractor-b"), 1)
	assert.Empty(t, hub.ConnectionsFor("contractor-c"))
	assert.Equal(t, 3, hub.Count())

	// 注销一个连接,另一个仍在线
	hub.Unregister("conn-1")
	assert.Len(t, hub.ConnectionsFor("contractor-a"), 1)
	assert.True(t, hub.IsOnline("contractor-a"))

	hub.Unregister("conn-2")
	assert.False(t, hub.IsOnline("contractor-a"))
	assert.True(t, hub.IsOnline("contractor-b"))
}

// TestHubUnregisterClosesClient 测试注销时关闭客户端
func TestHubUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient("conn-1", "contractor-a")
	hub.Register(client)

	hub.Unregister("conn-1")

	assert.ErrorIs(t, client.Deliver([]byte("late")), ErrConnectionClosed)

	// 重复注销无副作用
	hub.Unregister("conn-1")
	assert.Equal(t, 0, hub.Count())
}

// TestHubAll 测试全量连接快照
func TestHubAll(t *testing.T) {
	hub := NewHub()
	hub.Register(newTestClient("conn-1", "contractor-a"))
	hub.Register(newTestClient("conn-2", "contractor-b"))

	all := hub.All()
	assert.Len(t, all, 2)
}

// TestHubConcurrentAccess 测试并发注册注销
func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", n)
			contractorID := fmt.Sprintf("contractor-%d", n%5)
			hub.Register(newTestClient(connID, contractorID))
			hub.IsOnline(contractorID)
			if n%2 == 0 {
				hub.Unregister(connID)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, hub.Count())
}
