package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bounce/dispatch-gin/internal/auth"
	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/bounce/dispatch-gin/internal/service"
	"github.com/gin-gonic/gin"
)

// NotificationController 通知控制器
type NotificationController struct {
	notifications service.NotificationService
}

// NewNotificationController 创建通知控制器
func NewNotificationController(notifications service.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// MarkMultipleReadRequest 批量已读请求
type MarkMultipleReadRequest struct {
	IDs []string `json:"ids" binding:"required"` // 通知 ID 列表
}

// Create 创建通知并尝试立即推送
func (nc *NotificationController) Create(c *gin.Context) {
	var req service.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	n, err := nc.notifications.Create(c.Request.Context(), &req)
	if err != nil {
		Error(c, http.StatusBadRequest, "failed to create notification", err.Error())
		return
	}
	Success(c, n)
}

// List 分页查询当前承包商的通知
func (nc *NotificationController) List(c *gin.Context) {
	contractorID := auth.ContractorIDFromContext(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := &repository.NotificationFilter{}
	if v := c.Query("type"); v != "" {
		t := model.NotificationType(v)
		filter.Type = &t
	}
	if v := c.Query("priority"); v != "" {
		p := model.NotificationPriority(v)
		filter.Priority = &p
	}
	if v := c.Query("read"); v != "" {
		b := v == "true"
		filter.Read = &b
	}
	if v := c.Query("delivered"); v != "" {
		b := v == "true"
		filter.Delivered = &b
	}

	notifications, total, err := nc.notifications.List(c.Request.Context(), contractorID, filter, page, pageSize)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, "notification store unavailable", "")
		return
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	Paginated(c, notifications, NewPagination(page, pageSize, total))
}

// MarkRead 标记单条通知已读
func (nc *NotificationController) MarkRead(c *gin.Context) {
	contractorID := auth.ContractorIDFromContext(c)

	if err := nc.notifications.MarkRead(c.Request.Context(), c.Param("id"), contractorID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			Error(c, http.StatusNotFound, "notification not found", "")
			return
		}
		Error(c, http.StatusServiceUnavailable, "notification store unavailable", "")
		return
	}
	Success(c, nil)
}

// MarkMultipleRead 批量标记已读
// 返回实际更新条数;无效或不属于调用者的 ID 被跳过
func (nc *NotificationController) MarkMultipleRead(c *gin.Context) {
	var req MarkMultipleReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	contractorID := auth.ContractorIDFromContext(c)
	count, err := nc.notifications.MarkMultipleRead(c.Request.Context(), req.IDs, contractorID)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, "notification store unavailable", "")
		return
	}
	Success(c, gin.H{"updated": count})
}

// Deliver 对未送达通知显式重试推送
// 归属校验在服务层完成,非归属承包商得到 404
func (nc *NotificationController) Deliver(c *gin.Context) {
	contractorID := auth.ContractorIDFromContext(c)
	n, err := nc.notifications.Deliver(c.Request.Context(), c.Param("id"), contractorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			Error(c, http.StatusNotFound, "notification not found", "")
			return
		}
		Error(c, http.StatusServiceUnavailable, "notification store unavailable", "")
		return
	}
	Success(c, n)
}
