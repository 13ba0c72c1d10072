package dispatch

import "github.com/bounce/dispatch-gin/internal/model"

// Reason 操作失败原因
// 冲突和非法迁移是常规业务结果,调用方需要对它们分支,
// 所以引擎返回带标签的结果而不是 error
type Reason string

const (
	// ReasonNotFound 任务不存在
	ReasonNotFound Reason = "not_found"
	// ReasonUnauthorized 调用者不是任务持有者
	ReasonUnauthorized Reason = "unauthorized"
	// ReasonConflict 认领竞争失败,任务已被他人持有
	ReasonConflict Reason = "conflict"
	// ReasonInvalidTransition 状态图不允许该迁移
	ReasonInvalidTransition Reason = "invalid_transition"
	// ReasonValidation 输入非法
	ReasonValidation Reason = "validation"
	// ReasonUnavailable 任务存储不可达,调用方可自行重试
	ReasonUnavailable Reason = "unavailable"
)

// Result 调度操作结果
type Result struct {
	// Success 操作是否成功
	Success bool `json:"success"`

	// Task 成功时的最新任务状态
	Task *model.TaskModel `json:"task,omitempty"`

	// Reason 失败原因
	Reason Reason `json:"reason,omitempty"`

	// Message 面向调用方的失败说明
	Message string `json:"message,omitempty"`
}

// succeeded 构造成功结果
func succeeded(task *model.TaskModel) Result {
	return Result{Success: true, Task: task}
}

// failed 构造失败结果
func failed(reason Reason, message string) Result {
	return Result{Success: false, Reason: reason, Message: message}
}
