package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bounce/dispatch-gin/internal/metrics"
	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/bounce/dispatch-gin/internal/realtime"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/bounce/dispatch-gin/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateNotificationRequest 创建通知请求
type CreateNotificationRequest struct {
	ContractorID   string                     `json:"contractor_id" binding:"required"` // 接收人承包商 ID
	Type           model.NotificationType     `json:"type" binding:"required"`          // 通知类型
	Priority       model.NotificationPriority `json:"priority"`                         // 优先级,默认 normal
	Title          string                     `json:"title" binding:"required"`         // 标题
	Message        string                     `json:"message"`                          // 正文
	Data           string                     `json:"data"`                             // 不透明业务载荷(JSON)
	ExpiresInHours int                        `json:"expires_in_hours"`                 // 过期时间(小时),0 表示不过期
}

// NotificationService 通知服务接口
// 持久化通知并跟踪送达/已读状态,与接收人是否在线无关
type NotificationService interface {
	Create(ctx context.Context, req *CreateNotificationRequest) (*model.NotificationModel, error)
	Get(ctx context.Context, id string) (*model.NotificationModel, error)
	// Deliver 对一条未送达通知显式重试推送(客户端重连后调用)
	// 只有通知归属的承包商可以触发,其他调用者得到 not found
	Deliver(ctx context.Context, id, contractorID string) (*model.NotificationModel, error)
	MarkRead(ctx context.Context, id, contractorID string) error
	// MarkMultipleRead 批量标记已读,返回实际更新条数,部分成功是预期结果
	MarkMultipleRead(ctx context.Context, ids []string, contractorID string) (int64, error)
	List(ctx context.Context, contractorID string, filter *repository.NotificationFilter, page, pageSize int) ([]*model.NotificationModel, int64, error)
}

// notificationService 通知服务实现
type notificationService struct {
	notifications repository.NotificationRepository
	logger        *logrus.Logger
}

// NewNotificationService 创建通知服务
func NewNotificationService(notifications repository.NotificationRepository, logger *logrus.Logger) NotificationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &notificationService{
		notifications: notifications,
		logger:        logger,
	}
}

// Create 创建通知并尝试立即推送
// 推送成功置 delivered 并记录时间戳;接收人离线时保持未送达,
// 等客户端下次轮询或重连时拉取 —— 本层不做后台重试
func (s *notificationService) Create(ctx context.Context, req *CreateNotificationRequest) (*model.NotificationModel, error) {
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}

	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	now := time.Now()
	n := &model.NotificationModel{
		ID:           uuid.New().String(),
		ContractorID: req.ContractorID,
		Type:         req.Type,
		Priority:     req.Priority,
		Title:        utils.SanitizeString(req.Title),
		Message:      utils.SanitizeString(req.Message),
		Data:         req.Data,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}

	if err := s.notifications.Save(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	metrics.RecordNotificationCreated(string(n.Type))

	// 立即推送,成功才翻转 delivered
	if s.push(n) {
		deliveredAt := time.Now()
		if err := s.notifications.MarkDelivered(ctx, n.ID, deliveredAt); err != nil {
			// 推送已发生,落库失败只影响重复推送,不影响正确性
			s.logger.WithError(err).WithField("notification_id", n.ID).Warn("failed to persist delivered flag")
		} else {
			n.Delivered = true
			n.DeliveredAt = &deliveredAt
		}
	}

	return n, nil
}

// Get 获取通知
func (s *notificationService) Get(ctx context.Context, id string) (*model.NotificationModel, error) {
	return s.notifications.FindByID(ctx, id)
}

// Deliver 显式重试推送
func (s *notificationService) Deliver(ctx context.Context, id, contractorID string) (*model.NotificationModel, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.ContractorID != contractorID {
		// 与 MarkRead 相同的归属约束: 不暴露他人通知的存在
		return nil, repository.ErrNotificationNotFound
	}
	if n.Delivered {
		return n, nil
	}

	if s.push(n) {
		deliveredAt := time.Now()
		if err := s.notifications.MarkDelivered(ctx, n.ID, deliveredAt); err != nil {
			return nil, fmt.Errorf("failed to persist delivered flag: %w", err)
		}
		n.Delivered = true
		n.DeliveredAt = &deliveredAt
	}
	return n, nil
}

// MarkRead 标记已读
// 不属于该承包商的通知返回 not found,禁止跨租户修改
func (s *notificationService) MarkRead(ctx context.Context, id, contractorID string) error {
	return s.notifications.MarkRead(ctx, id, contractorID, time.Now())
}

// MarkMultipleRead 批量标记已读
func (s *notificationService) MarkMultipleRead(ctx context.Context, ids []string, contractorID string) (int64, error) {
	return s.notifications.MarkMultipleRead(ctx, ids, contractorID, time.Now())
}

// List 分页查询承包商的通知
func (s *notificationService) List(ctx context.Context, contractorID string, filter *repository.NotificationFilter, page, pageSize int) ([]*model.NotificationModel, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.notifications.FindByContractor(ctx, contractorID, filter, pageSize, (page-1)*pageSize)
}

// push 按类型选择推送路径
func (s *notificationService) push(n *model.NotificationModel) bool {
	if n.Type == model.NotificationTypeSystem {
		realtime.SystemNotification(n)
		// 系统广播仍然按接收人在线与否记录送达
		return realtime.IsOnline(n.ContractorID)
	}
	return realtime.PersonalNotification(n)
}
