package model

import (
	"errors"
	"time"
)

// NotificationType 通知类型
type NotificationType string

const (
	// NotificationTypeTask 任务相关通知
	NotificationTypeTask NotificationType = "task"
	// NotificationTypeSystem 系统通知
	NotificationTypeSystem NotificationType = "system"
	// NotificationTypePersonal 个人通知
	NotificationTypePersonal NotificationType = "personal"
)

// NotificationPriority 通知优先级
type NotificationPriority string

const (
	// PriorityCritical 紧急
	PriorityCritical NotificationPriority = "critical"
	// PriorityHigh 高
	PriorityHigh NotificationPriority = "high"
	// PriorityNormal 普通
	PriorityNormal NotificationPriority = "normal"
	// PriorityLow 低
	PriorityLow NotificationPriority = "low"
)

// IsValid 判断通知类型是否合法
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeTask, NotificationTypeSystem, NotificationTypePersonal:
		return true
	}
	return false
}

// IsValid 判断优先级是否合法
func (p NotificationPriority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// NotificationModel 通知数据模型
type NotificationModel struct {
	ID           string               `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ContractorID string               `gorm:"type:varchar(64);not null;index" json:"contractor_id"`
	Type         NotificationType     `gorm:"type:varchar(32);not null;index" json:"type"`
	Priority     NotificationPriority `gorm:"type:varchar(32);not null;index" json:"priority"`
	Title        string               `gorm:"type:varchar(255);not null" json:"title"`
	Message      string               `gorm:"type:text" json:"message"`
	Data         string               `gorm:"type:text" json:"data"` // 不透明的业务载荷(JSON)
	Delivered    bool                 `gorm:"not null;default:false;index" json:"delivered"`
	DeliveredAt  *time.Time           `json:"delivered_at"`
	Read         bool                 `gorm:"not null;default:false;index" json:"read"`
	ReadAt       *time.Time           `json:"read_at"`
	ExpiresAt    *time.Time           `gorm:"index" json:"expires_at"`
	CreatedAt    time.Time            `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

// Validate 验证通知模型
func (n *NotificationModel) Validate() error {
	if n.ID == "" {
		return errors.New("notification ID is required")
	}
	if n.ContractorID == "" {
		return errors.New("contractor ID is required")
	}
	if !n.Type.IsValid() {
		return errors.New("notification type is invalid")
	}
	if !n.Priority.IsValid() {
		return errors.New("notification priority is invalid")
	}
	if n.Title == "" {
		return errors.New("notification title is required")
	}
	return nil
}
