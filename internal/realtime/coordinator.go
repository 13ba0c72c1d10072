package realtime

import (
	"sync"
	"time"

	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/bounce/dispatch-gin/internal/websocket"
)

// Broadcaster 协调器对网关的依赖
// 调度引擎通过协调器发布领域事件,从不直接触碰 socket
type Broadcaster interface {
	Publish(connID string, eventType string, data interface{}) error
	Broadcast(eventType string, data interface{}, sel websocket.Selector) error
	IsOnline(contractorID string) bool
}

var (
	mu      sync.RWMutex
	gateway Broadcaster
)

// Init 绑定网关实例
// 每个进程初始化一次;进程启动期间网关可能尚不存在,
// 初始化之前的调用全部安全忽略
func Init(gw Broadcaster) {
	mu.Lock()
	defer mu.Unlock()
	gateway = gw
}

// current 返回当前绑定的网关,未初始化时为 nil
func current() Broadcaster {
	mu.RLock()
	defer mu.RUnlock()
	return gateway
}

// IsOnline 判断承包商是否在线
func IsOnline(contractorID string) bool {
	gw := current()
	if gw == nil {
		return false
	}
	return gw.IsOnline(contractorID)
}

// TaskAvailable 广播新任务可认领
// 任务限定技能时只推给持有该技能的承包商
func TaskAvailable(task *model.TaskModel) {
	gw := current()
	if gw == nil {
		return
	}
	sel := websocket.SelectAll()
	if task.RequiredSkill != "" {
		sel = websocket.SelectSkill(task.RequiredSkill)
	}
	_ = gw.Broadcast(websocket.EventTaskAvailable, taskPayload(task), sel)
}

// TaskAssigned 向新任务持有者的所有连接确认分配
func TaskAssigned(task *model.TaskModel) {
	gw := current()
	if gw == nil {
		return
	}
	_ = gw.Broadcast(websocket.EventTaskAssigned, taskPayload(task),
		websocket.SelectContractor(task.AssignedContractorID))
}

// TaskClaimed 向其他在线承包商广播任务已被认领
// 仍把任务当作可认领展示的设备据此移除它;
// 胜者被排除在外,它的连接已经收到 task:assigned
func TaskClaimed(task *model.TaskModel) {
	gw := current()
	if gw == nil {
		return
	}
	_ = gw.Broadcast(websocket.EventTaskClaimed, map[string]interface{}{
		"task_id":   task.ID,
		"order_id":  task.OrderID,
		"status":    task.Status,
		"timestamp": time.Now().Unix(),
	}, websocket.SelectAllExcept(task.AssignedContractorID))
}

// TaskStatusChanged 向任务持有者广播状态变更
func TaskStatusChanged(task *model.TaskModel) {
	gw := current()
	if gw == nil {
		return
	}
	_ = gw.Broadcast(websocket.EventTaskStatusChanged, taskPayload(task),
		websocket.SelectContractor(task.AssignedContractorID))
}

// TaskCompleted 广播任务完成
func TaskCompleted(task *model.TaskModel) {
	gw := current()
	if gw == nil {
		return
	}
	_ = gw.Broadcast(websocket.EventTaskCompleted, taskPayload(task),
		websocket.SelectContractor(task.AssignedContractorID))
}

// TaskCancelled 向原任务持有者广播任务取消
// contractorID 为取消前持有任务的承包商,可能与任务当前字段不同
func TaskCancelled(task *model.TaskModel, contractorID string) {
	gw := current()
	if gw == nil || contractorID == "" {
		return
	}
	_ = gw.Broadcast(websocket.EventTaskCancelled, map[string]interface{}{
		"task_id":  task.ID,
		"order_id": task.OrderID,
		"status":   task.Status,
	}, websocket.SelectContractor(contractorID))
}

// SystemNotification 向所有连接广播系统通知
func SystemNotification(n *model.NotificationModel) {
	gw := current()
	if gw == nil {
		return
	}
	_ = gw.Broadcast(websocket.EventNotificationSystem, notificationPayload(n), websocket.SelectAll())
}

// PersonalNotification 向指定承包商推送个人通知
// 返回是否至少有一个连接接收成功;未初始化或离线时返回 false,不报错
func PersonalNotification(n *model.NotificationModel) bool {
	gw := current()
	if gw == nil {
		return false
	}
	if !gw.IsOnline(n.ContractorID) {
		return false
	}
	err := gw.Broadcast(websocket.EventNotificationPersonal, notificationPayload(n),
		websocket.SelectContractor(n.ContractorID))
	return err == nil
}

// taskPayload 构造任务事件载荷
func taskPayload(task *model.TaskModel) map[string]interface{} {
	payload := map[string]interface{}{
		"task_id":        task.ID,
		"order_id":       task.OrderID,
		"status":         task.Status,
		"payment_amount": task.PaymentAmount,
		"address":        task.Address,
		"description":    task.Description,
		"latitude":       task.Latitude,
		"longitude":      task.Longitude,
	}
	if task.RequiredSkill != "" {
		payload["required_skill"] = task.RequiredSkill
	}
	if task.ScheduledTime != nil {
		payload["scheduled_time"] = task.ScheduledTime.Unix()
	}
	if task.CompletedAt != nil {
		payload["completed_at"] = task.CompletedAt.Unix()
	}
	return payload
}

// notificationPayload 构造通知事件载荷
func notificationPayload(n *model.NotificationModel) map[string]interface{} {
	payload := map[string]interface{}{
		"notification_id": n.ID,
		"type":            n.Type,
		"priority":        n.Priority,
		"title":           n.Title,
		"message":         n.Message,
	}
	if n.Data != "" {
		payload["data"] = n.Data
	}
	if n.ExpiresAt != nil {
		payload["expires_at"] = n.ExpiresAt.Unix()
	}
	return payload
}
