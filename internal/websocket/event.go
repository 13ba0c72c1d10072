package websocket

import (
	"encoding/json"
	"time"
)

// 下行事件类型
const (
	// EventConnected 连接建立确认
	EventConnected = "connected"
	// EventPong 心跳应答
	EventPong = "pong"
	// EventTaskAvailable 新任务可认领
	EventTaskAvailable = "task:available"
	// EventTaskAssigned 任务分配给本人
	EventTaskAssigned = "task:assigned"
	// EventTaskClaimed 任务已被他人认领
	EventTaskClaimed = "task:claimed"
	// EventTaskStatusChanged 任务状态变更
	EventTaskStatusChanged = "task:status_changed"
	// EventTaskCompleted 任务完成
	EventTaskCompleted = "task:completed"
	// EventTaskCancelled 任务取消
	EventTaskCancelled = "task:cancelled"
	// EventNotificationSystem 系统通知
	EventNotificationSystem = "notification:system"
	// EventNotificationPersonal 个人通知
	EventNotificationPersonal = "notification:personal"
)

// Event 下行事件信封
type Event struct {
	// Type 事件类型
	Type string `json:"type"`

	// Data 业务载荷
	Data interface{} `json:"data,omitempty"`

	// Timestamp 事件产生时间(Unix 秒)
	Timestamp int64 `json:"timestamp"`
}

// NewEvent 创建事件
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// Encode 序列化事件
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ClientEvent 客户端上行事件
type ClientEvent struct {
	// Type 事件类型
	Type string `json:"type"`

	// Data 业务载荷
	Data json.RawMessage `json:"data,omitempty"`
}
