package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/bounce/dispatch-gin/internal/metrics"
	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/bounce/dispatch-gin/internal/realtime"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/bounce/dispatch-gin/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// legalTransitions 任务状态图
// 初态 pending,终态 completed / cancelled
var legalTransitions = map[model.TaskStatus]map[model.TaskStatus]bool{
	model.TaskStatusPending: {
		model.TaskStatusAssigned:  true,
		model.TaskStatusCancelled: true,
	},
	model.TaskStatusAssigned: {
		model.TaskStatusInProgress: true,
		model.TaskStatusCancelled:  true,
	},
	model.TaskStatusInProgress: {
		model.TaskStatusCompleted: true,
		model.TaskStatusCancelled: true,
	},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to model.TaskStatus) bool {
	return legalTransitions[from][to]
}

// CompletionData 任务完成数据
type CompletionData struct {
	// Notes 自由文本备注,最长 2000 字符
	Notes string `json:"notes"`

	// PhotoURLs 完成照片,最多 5 张
	PhotoURLs []string `json:"photo_urls"`
}

// Engine 任务调度引擎
// 持有任务状态机,保证同一任务最多一个承包商认领成功
type Engine struct {
	tasks           repository.TaskRepository
	logger          *logrus.Logger
	notifyCancelled bool
}

// NewEngine 创建调度引擎
// notifyCancelled 控制取消任务时是否通知原持有者
func NewEngine(tasks repository.TaskRepository, notifyCancelled bool, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		tasks:           tasks,
		logger:          logger,
		notifyCancelled: notifyCancelled,
	}
}

// Create 登记一个新的待认领任务并向在线承包商公告
// 任务由外部系统(CRM/管理端)产生,这里只负责落库和广播
func (e *Engine) Create(ctx context.Context, task *model.TaskModel) Result {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.Status = model.TaskStatusPending
	task.AssignedContractorID = ""
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := task.Validate(); err != nil {
		return failed(ReasonValidation, err.Error())
	}
	if err := e.tasks.Save(ctx, task); err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}

	realtime.TaskAvailable(task)
	return succeeded(task)
}

// Claim 认领任务: pending → assigned
// 对任务存储执行单条条件更新,绝不拆成先读后写,
// 并发认领时恰好一个调用者成功,其余得到 conflict。
// 冲突是预期的常规结果,不自动重试: 输掉竞争的调用者重试没有意义
func (e *Engine) Claim(ctx context.Context, taskID, contractorID string) Result {
	if err := utils.ValidateID(taskID); err != nil {
		return failed(ReasonValidation, "invalid task id")
	}
	if err := utils.ValidateID(contractorID); err != nil {
		return failed(ReasonValidation, "invalid contractor id")
	}

	matched, err := e.tasks.ClaimPending(ctx, taskID, contractorID, time.Now())
	if err != nil {
		e.logger.WithError(err).WithField("task_id", taskID).Error("claim failed: task store unavailable")
		return failed(ReasonUnavailable, "task store unavailable")
	}

	if !matched {
		// 区分任务不存在和竞争失败
		task, err := e.tasks.FindByID(ctx, taskID)
		if err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return failed(ReasonNotFound, "task not found")
			}
			return failed(ReasonUnavailable, "task store unavailable")
		}
		metrics.RecordClaimLost()
		e.logger.WithFields(logrus.Fields{
			"task_id":       taskID,
			"contractor_id": contractorID,
			"holder":        task.AssignedContractorID,
		}).Debug("claim lost")
		return failed(ReasonConflict, "task already assigned")
	}

	task, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		// 写入已生效,读回失败只影响响应体
		return failed(ReasonUnavailable, "task store unavailable")
	}

	metrics.RecordClaimWon()
	metrics.RecordTransition(string(model.TaskStatusAssigned))

	// 向胜者的连接确认分配,向其他人公告任务已被认领
	realtime.TaskAssigned(task)
	realtime.TaskClaimed(task)

	return succeeded(task)
}

// Start 开始执行任务: assigned → in_progress
// 只有任务持有者可以发起
func (e *Engine) Start(ctx context.Context, taskID, contractorID string) Result {
	return e.UpdateStatus(ctx, taskID, contractorID, model.TaskStatusInProgress)
}

// UpdateStatus 请求状态迁移
// 越权与非法迁移是不同的拒绝原因,边界层据此映射不同的结果
func (e *Engine) UpdateStatus(ctx context.Context, taskID, contractorID string, next model.TaskStatus) Result {
	if err := utils.ValidateID(taskID); err != nil {
		return failed(ReasonValidation, "invalid task id")
	}
	if err := utils.ValidateID(contractorID); err != nil {
		return failed(ReasonValidation, "invalid contractor id")
	}
	if !next.IsValid() {
		return failed(ReasonValidation, "invalid target status")
	}
	if next == model.TaskStatusCompleted {
		// 完成必须携带完成数据,走 Complete
		return failed(ReasonValidation, "completion requires completion data")
	}
	if next == model.TaskStatusCancelled {
		// 取消是管理端动作,走 Cancel: 它负责清空持有者并按配置通知
		return failed(ReasonValidation, "cancellation is not a contractor transition")
	}

	task, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return failed(ReasonNotFound, "task not found")
		}
		return failed(ReasonUnavailable, "task store unavailable")
	}

	if task.AssignedContractorID != contractorID {
		return failed(ReasonUnauthorized, "not your task")
	}
	if !CanTransition(task.Status, next) {
		return failed(ReasonInvalidTransition, "invalid status transition")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     next,
		"updated_at": now,
	}
	if next == model.TaskStatusInProgress {
		updates["started_at"] = now
	}

	matched, err := e.tasks.TransitionStatus(ctx, taskID, task.Status, updates)
	if err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}
	if !matched {
		// 状态在校验后被并发修改
		return failed(ReasonInvalidTransition, "invalid status transition")
	}

	updated, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}

	metrics.RecordTransition(string(next))
	realtime.TaskStatusChanged(updated)

	return succeeded(updated)
}

// Complete 完成任务: in_progress → completed
// 要求当前状态严格为 in_progress;备注和照片有界
func (e *Engine) Complete(ctx context.Context, taskID, contractorID string, data CompletionData) Result {
	if err := utils.ValidateID(taskID); err != nil {
		return failed(ReasonValidation, "invalid task id")
	}
	if err := utils.ValidateID(contractorID); err != nil {
		return failed(ReasonValidation, "invalid contractor id")
	}
	if err := utils.ValidateNotes(data.Notes, model.MaxCompletionNotesLen); err != nil {
		return failed(ReasonValidation, "completion notes too long")
	}
	if err := utils.ValidatePhotoURLs(data.PhotoURLs, model.MaxCompletionPhotos); err != nil {
		return failed(ReasonValidation, "invalid photo urls")
	}

	task, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return failed(ReasonNotFound, "task not found")
		}
		return failed(ReasonUnavailable, "task store unavailable")
	}

	if task.AssignedContractorID != contractorID {
		return failed(ReasonUnauthorized, "not your task")
	}
	if task.Status != model.TaskStatusInProgress {
		return failed(ReasonInvalidTransition, "invalid status transition")
	}

	photos, err := model.EncodePhotoURLs(data.PhotoURLs)
	if err != nil {
		return failed(ReasonValidation, "invalid photo urls")
	}

	now := time.Now()
	matched, err := e.tasks.TransitionStatus(ctx, taskID, model.TaskStatusInProgress, map[string]interface{}{
		"status":            model.TaskStatusCompleted,
		"completion_notes":  utils.SanitizeString(data.Notes),
		"completion_photos": photos,
		"completed_at":      now,
		"updated_at":        now,
	})
	if err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}
	if !matched {
		return failed(ReasonInvalidTransition, "invalid status transition")
	}

	updated, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}

	metrics.RecordTransition(string(model.TaskStatusCompleted))
	realtime.TaskCompleted(updated)

	e.logger.WithFields(logrus.Fields{
		"task_id":       taskID,
		"contractor_id": contractorID,
	}).Info("task completed")

	return succeeded(updated)
}

// Cancel 登记外部管理端发起的取消
// 任意非终态可取消;取消后承包商引用按不变量清空
func (e *Engine) Cancel(ctx context.Context, taskID, reason string) Result {
	if err := utils.ValidateID(taskID); err != nil {
		return failed(ReasonValidation, "invalid task id")
	}

	task, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return failed(ReasonNotFound, "task not found")
		}
		return failed(ReasonUnavailable, "task store unavailable")
	}

	if task.Status.IsTerminal() {
		return failed(ReasonInvalidTransition, "invalid status transition")
	}

	formerHolder := task.AssignedContractorID

	now := time.Now()
	matched, err := e.tasks.TransitionStatus(ctx, taskID, task.Status, map[string]interface{}{
		"status":                 model.TaskStatusCancelled,
		"assigned_contractor_id": "",
		"updated_at":             now,
	})
	if err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}
	if !matched {
		return failed(ReasonInvalidTransition, "invalid status transition")
	}

	updated, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		return failed(ReasonUnavailable, "task store unavailable")
	}

	metrics.RecordTransition(string(model.TaskStatusCancelled))

	// 是否通知原持有者由配置决定,而不是推断
	if e.notifyCancelled && formerHolder != "" {
		realtime.TaskCancelled(updated, formerHolder)
	}

	e.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"reason":  reason,
	}).Info("task cancelled")

	return succeeded(updated)
}

// Get 获取任务详情
func (e *Engine) Get(ctx context.Context, taskID string) Result {
	task, err := e.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return failed(ReasonNotFound, "task not found")
		}
		return failed(ReasonUnavailable, "task store unavailable")
	}
	return succeeded(task)
}

// ListAvailable 分页列出待认领任务
func (e *Engine) ListAvailable(ctx context.Context, limit, offset int) ([]*model.TaskModel, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return e.tasks.FindPending(ctx, limit, offset)
}

// ListByContractor 列出承包商持有的任务
func (e *Engine) ListByContractor(ctx context.Context, contractorID string, statuses []model.TaskStatus) ([]*model.TaskModel, error) {
	return e.tasks.FindByContractor(ctx, contractorID, statuses)
}
