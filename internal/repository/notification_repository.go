package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bounce/dispatch-gin/internal/model"
	"gorm.io/gorm"
)

// ErrNotificationNotFound 通知不存在(或不属于该承包商)
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationFilter 通知查询过滤器
type NotificationFilter struct {
	Type      *model.NotificationType
	Priority  *model.NotificationPriority
	Read      *bool
	Delivered *bool
}

// NotificationRepository 通知仓储接口
type NotificationRepository interface {
	Save(ctx context.Context, n *model.NotificationModel) error
	FindByID(ctx context.Context, id string) (*model.NotificationModel, error)
	FindByContractor(ctx context.Context, contractorID string, filter *NotificationFilter, limit, offset int) ([]*model.NotificationModel, int64, error)
	// MarkDelivered 标记已送达
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	// MarkRead 标记已读,归属校验在 WHERE 条件中完成
	// 通知不属于该承包商时返回 ErrNotificationNotFound
	MarkRead(ctx context.Context, id, contractorID string, at time.Time) error
	// MarkMultipleRead 批量标记已读,返回实际更新的条数
	MarkMultipleRead(ctx context.Context, ids []string, contractorID string, at time.Time) (int64, error)
}

// notificationRepository 通知仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓储
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Save 保存通知
func (r *notificationRepository) Save(ctx context.Context, n *model.NotificationModel) error {
	return r.db.WithContext(ctx).Save(n).Error
}

// FindByID 根据 ID 查找通知
func (r *notificationRepository) FindByID(ctx context.Context, id string) (*model.NotificationModel, error) {
	var n model.NotificationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

// FindByContractor 按承包商分页查找通知
func (r *notificationRepository) FindByContractor(ctx context.Context, contractorID string, filter *NotificationFilter, limit, offset int) ([]*model.NotificationModel, int64, error) {
	var notifications []*model.NotificationModel
	var total int64

	query := r.db.WithContext(ctx).Model(&model.NotificationModel{}).Where("contractor_id = ?", contractorID)
	if filter != nil {
		if filter.Type != nil {
			query = query.Where("type = ?", *filter.Type)
		}
		if filter.Priority != nil {
			query = query.Where("priority = ?", *filter.Priority)
		}
		if filter.Read != nil {
			query = query.Where("read = ?", *filter.Read)
		}
		if filter.Delivered != nil {
			query = query.Where("delivered = ?", *filter.Delivered)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&notifications).Error
	return notifications, total, err
}

// MarkDelivered 标记已送达
func (r *notificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"delivered":    true,
			"delivered_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkRead 标记已读
func (r *notificationRepository) MarkRead(ctx context.Context, id, contractorID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("id = ? AND contractor_id = ?", id, contractorID).
		Updates(map[string]interface{}{
			"read":       true,
			"read_at":    at,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkMultipleRead 批量标记已读
// 无效或不属于该承包商的 ID 被跳过,部分成功是正常结果
func (r *notificationRepository) MarkMultipleRead(ctx context.Context, ids []string, contractorID string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("id IN ? AND contractor_id = ?", ids, contractorID).
		Updates(map[string]interface{}{
			"read":       true,
			"read_at":    at,
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
