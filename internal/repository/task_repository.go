package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bounce/dispatch-gin/internal/model"
	"gorm.io/gorm"
)

// ErrTaskNotFound 任务不存在
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Save(ctx context.Context, task *model.TaskModel) error
	FindByID(ctx context.Context, id string) (*model.TaskModel, error)
	FindPending(ctx context.Context, limit, offset int) ([]*model.TaskModel, int64, error)
	FindByContractor(ctx context.Context, contractorID string, statuses []model.TaskStatus) ([]*model.TaskModel, error)
	// ClaimPending 认领待分配任务
	// 单条条件更新: 仅当任务仍为 pending 且未分配承包商时写入,返回是否命中
	ClaimPending(ctx context.Context, id, contractorID string, at time.Time) (bool, error)
	// TransitionStatus 条件状态迁移
	// 仅当任务当前状态等于 expected 时应用 updates,返回是否命中
	TransitionStatus(ctx context.Context, id string, expected model.TaskStatus, updates map[string]interface{}) (bool, error)
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Save 保存任务
func (r *taskRepository) Save(ctx context.Context, task *model.TaskModel) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(ctx context.Context, id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// FindPending 分页查找待认领任务
func (r *taskRepository) FindPending(ctx context.Context, limit, offset int) ([]*model.TaskModel, int64, error) {
	var tasks []*model.TaskModel
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TaskModel{}).Where("status = ?", model.TaskStatusPending)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("scheduled_time ASC").Limit(limit).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}

// FindByContractor 查找承包商持有的任务
func (r *taskRepository) FindByContractor(ctx context.Context, contractorID string, statuses []model.TaskStatus) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.WithContext(ctx).Where("assigned_contractor_id = ?", contractorID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("updated_at DESC").Find(&tasks).Error
	return tasks, err
}

// ClaimPending 认领待分配任务
// 并发认领的正确性完全依赖这一条 UPDATE 的 WHERE 条件:
// 两个承包商同时认领时,数据库只让其中一条语句的 RowsAffected 为 1
func (r *taskRepository) ClaimPending(ctx context.Context, id, contractorID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("id = ? AND status = ? AND (assigned_contractor_id IS NULL OR assigned_contractor_id = '')",
			id, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":                 model.TaskStatusAssigned,
			"assigned_contractor_id": contractorID,
			"assigned_at":            at,
			"updated_at":             at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionStatus 条件状态迁移
func (r *taskRepository) TransitionStatus(ctx context.Context, id string, expected model.TaskStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	res := r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
