package model

import (
	"encoding/json"
	"errors"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// TaskStatusPending 待认领
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned 已分配
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusInProgress 执行中
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted 已完成
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusCancelled 已取消
	TaskStatusCancelled TaskStatus = "cancelled"
)

const (
	// MaxCompletionNotesLen 完成备注最大长度
	MaxCompletionNotesLen = 2000
	// MaxCompletionPhotos 完成照片最大数量
	MaxCompletionPhotos = 5
)

// IsTerminal 判断状态是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// IsValid 判断状态是否合法
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskModel 任务数据模型
type TaskModel struct {
	ID                   string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrderID              string     `gorm:"type:varchar(64);index" json:"order_id"` // 外部订单 ID
	Status               TaskStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	AssignedContractorID string     `gorm:"type:varchar(64);index" json:"assigned_contractor_id"` // 当前持有任务的承包商
	PaymentAmount        float64    `gorm:"type:decimal(10,2)" json:"payment_amount"`
	ScheduledTime        *time.Time `gorm:"index" json:"scheduled_time"`
	Latitude             float64    `json:"latitude"`
	Longitude            float64    `json:"longitude"`
	Address              string     `gorm:"type:varchar(255)" json:"address"`
	Description          string     `gorm:"type:text" json:"description"`
	RequiredSkill        string     `gorm:"type:varchar(64);index" json:"required_skill"` // 需要的技能标签,为空表示不限
	CompletionNotes      string     `gorm:"type:text" json:"completion_notes"`
	CompletionPhotos     string     `gorm:"type:text" json:"-"` // JSON 数组,最多 5 张
	AssignedAt           *time.Time `json:"assigned_at"`
	StartedAt            *time.Time `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at"`
	CreatedAt            time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null;index" json:"updated_at"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (t *TaskModel) Validate() error {
	if t.ID == "" {
		return errors.New("task ID is required")
	}
	if !t.Status.IsValid() {
		return errors.New("task status is invalid")
	}
	// 不变量: 已分配承包商当且仅当状态为 assigned/in_progress/completed
	assigned := t.AssignedContractorID != ""
	switch t.Status {
	case TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted:
		if !assigned {
			return errors.New("task in assigned state must have a contractor")
		}
	case TaskStatusPending:
		if assigned {
			return errors.New("pending task must not have a contractor")
		}
	}
	return nil
}

// PhotoURLs 返回完成照片 URL 列表
func (t *TaskModel) PhotoURLs() []string {
	if t.CompletionPhotos == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(t.CompletionPhotos), &urls); err != nil {
		return nil
	}
	return urls
}

// EncodePhotoURLs 序列化照片 URL 列表
func EncodePhotoURLs(urls []string) (string, error) {
	if len(urls) == 0 {
		return "", nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
