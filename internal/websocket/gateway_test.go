package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway() *Gateway {
	return NewGateway(NewHub(), DefaultOptions(), nil)
}

// drain 取出客户端缓冲中的所有事件
func drain(t *testing.T, client *Client) []*Event {
	t.Helper()
	var events []*Event
	for {
		select {
		case raw := <-client.Send:
			var e Event
			require.NoError(t, json.Unmarshal(raw, &e))
			events = append(events, &e)
		default:
			return events
		}
	}
}

// TestGatewayPublish 测试单连接推送
func TestGatewayPublish(t *testing.T) {
	g := newTestGateway()
	client := newTestClient("conn-1", "contractor-a")
	g.Hub().Register(client)

	err := g.Publish("conn-1", EventTaskAssigned, map[string]string{"task_id": "task-001"})
	require.NoError(t, err)

	events := drain(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventTaskAssigned, events[0].Type)
	assert.NotZero(t, events[0].Timestamp)

	err = g.Publish("missing", EventTaskAssigned, nil)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

// TestGatewayBroadcastAll 测试全量广播
func TestGatewayBroadcastAll(t *testing.T) {
	g := newTestGateway()
	a := newTestClient("conn-1", "contractor-a")
	b := newTestClient("conn-2", "contractor-b")
	g.Hub().Register(a)
	g.Hub().Register(b)

	require.NoError(t, g.Broadcast(EventTaskAvailable, map[string]string{"task_id": "task-001"}, SelectAll()))

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
}

// TestGatewayBroadcastAllExcept 测试排除指定承包商的全量广播
// 被排除承包商的所有连接都收不到,其他连接照常
func TestGatewayBroadcastAllExcept(t *testing.T) {
	g := newTestGateway()
	a1 := newTestClient("conn-1", "contractor-a")
	a2 := newTestClient("conn-2", "contractor-a")
	b := newTestClient("conn-3", "contractor-b")
	g.Hub().Register(a1)
	g.Hub().Register(a2)
	g.Hub().Register(b)

	require.NoError(t, g.Broadcast(EventTaskClaimed, nil, SelectAllExcept("contractor-a")))

	assert.Empty(t, drain(t, a1))
	assert.Empty(t, drain(t, a2))
	assert.Len(t, drain(t, b), 1)
}

// TestGatewayBroadcastContractor 测试按承包商寻址
// 同一承包商的每个连接各收到一份,其他承包商不受影响
func TestGatewayBroadcastContractor(t *testing.T) {
	g := newTestGateway()
	a1 := newTestClient("conn-1", "contractor-a")
	a2 := newTestClient("conn-2", "contractor-a")
	b := newTestClient("conn-3", "contractor-b")
	g.Hub().Register(a1)
	g.Hub().Register(a2)
	g.Hub().Register(b)

	require.NoError(t, g.Broadcast(EventTaskAssigned, nil, SelectContractor("contractor-a")))

	assert.Len(t, drain(t, a1), 1)
	assert.Len(t, drain(t, a2), 1)
	assert.Empty(t, drain(t, b))
}

// TestGatewayBroadcastSkill 测试按技能寻址
func TestGatewayBroadcastSkill(t *testing.T) {
	g := newTestGateway()
	plumber := newTestClient("conn-1", "contractor-a", "plumbing")
	electrician := newTestClient("conn-2", "contractor-b", "electrical")
	both := newTestClient("conn-3", "contractor-c", "plumbing", "electrical")
	g.Hub().Register(plumber)
	g.Hub().Register(electrician)
	g.Hub().Register(both)

	require.NoError(t, g.Broadcast(EventTaskAvailable, nil, SelectSkill("plumbing")))

	assert.Len(t, drain(t, plumber), 1)
	assert.Empty(t, drain(t, electrician))
	assert.Len(t, drain(t, both), 1)
}

// TestGatewayBroadcastPartialFailure 测试失败连接不影响其他投递
func TestGatewayBroadcastPartialFailure(t *testing.T) {
	g := newTestGateway()
	healthy := newTestClient("conn-1", "contractor-a")
	dead := newTestClient("conn-2", "contractor-b")
	g.Hub().Register(healthy)
	g.Hub().Register(dead)

	dead.Close()

	err := g.Broadcast(EventTaskAvailable, nil, SelectAll())
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	// 健康连接照常收到
	assert.Len(t, drain(t, healthy), 1)
}

// TestGatewayIsOnline 测试在线判定
func TestGatewayIsOnline(t *testing.T) {
	g := newTestGateway()
	assert.False(t, g.IsOnline("contractor-a"))

	g.Hub().Register(newTestClient("conn-1", "contractor-a"))
	assert.True(t, g.IsOnline("contractor-a"))
}

// TestGatewayHandleClientEventRateLimit 测试上行事件限流
// 超限事件被丢弃但连接保持注册
func TestGatewayHandleClientEventRateLimit(t *testing.T) {
	g := NewGateway(NewHub(), Options{
		RateLimit:     3,
		RateWindow:    time.Minute,
		SweepInterval: time.Minute,
		AuthTimeout:   10 * time.Second,
	}, nil)
	client := newTestClient("conn-1", "contractor-a")
	g.Hub().Register(client)

	ping := []byte(`{"type":"ping"}`)
	for i := 0; i < 3; i++ {
		g.HandleClientEvent(client, ping)
	}
	events := drain(t, client)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, EventPong, e.Type)
	}

	// 第 4 条被丢弃,无响应,连接仍在
	g.HandleClientEvent(client, ping)
	assert.Empty(t, drain(t, client))
	_, ok := g.Hub().Get("conn-1")
	assert.True(t, ok)
}

// TestGatewayHandleClientEventMalformed 测试畸形上行事件被丢弃
func TestGatewayHandleClientEventMalformed(t *testing.T) {
	g := newTestGateway()
	client := newTestClient("conn-1", "contractor-a")
	g.Hub().Register(client)

	g.HandleClientEvent(client, []byte("not json"))
	assert.Empty(t, drain(t, client))
}

// TestGatewayHandleDisconnect 测试断开清理
func TestGatewayHandleDisconnect(t *testing.T) {
	g := newTestGateway()
	client := newTestClient("conn-1", "contractor-a")
	g.Hub().Register(client)
	g.HandleClientEvent(client, []byte(`{"type":"ping"}`))

	g.HandleDisconnect(client)

	_, ok := g.Hub().Get("conn-1")
	assert.False(t, ok)
	assert.False(t, g.IsOnline("contractor-a"))
	assert.Equal(t, 0, g.limiter.WindowCount())
}
