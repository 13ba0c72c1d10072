package api

import (
	"net/http"
	"strconv"

	"github.com/bounce/dispatch-gin/internal/auth"
	"github.com/bounce/dispatch-gin/internal/dispatch"
	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/gin-gonic/gin"
)

// TaskController 任务调度控制器
type TaskController struct {
	engine *dispatch.Engine
}

// NewTaskController 创建任务调度控制器
func NewTaskController(engine *dispatch.Engine) *TaskController {
	return &TaskController{engine: engine}
}

// CreateTaskRequest 创建任务请求(外部系统登记新任务)
type CreateTaskRequest struct {
	OrderID       string  `json:"order_id" binding:"required"` // 外部订单 ID
	PaymentAmount float64 `json:"payment_amount"`              // 报酬金额
	Address       string  `json:"address"`                     // 地址
	Description   string  `json:"description"`                 // 描述
	Latitude      float64 `json:"latitude"`                    // 纬度
	Longitude     float64 `json:"longitude"`                   // 经度
	RequiredSkill string  `json:"required_skill"`              // 需要的技能标签
}

// UpdateStatusRequest 状态迁移请求
type UpdateStatusRequest struct {
	Status model.TaskStatus `json:"status" binding:"required"` // 目标状态
}

// CompleteRequest 完成任务请求
type CompleteRequest struct {
	Notes     string   `json:"notes"`      // 完成备注
	PhotoURLs []string `json:"photo_urls"` // 完成照片
}

// CancelRequest 取消任务请求
type CancelRequest struct {
	Reason string `json:"reason"` // 取消原因
}

// reasonStatus 失败原因到 HTTP 状态码的映射
func reasonStatus(reason dispatch.Reason) int {
	switch reason {
	case dispatch.ReasonNotFound:
		return http.StatusNotFound
	case dispatch.ReasonUnauthorized:
		return http.StatusForbidden
	case dispatch.ReasonConflict:
		return http.StatusConflict
	case dispatch.ReasonInvalidTransition:
		return http.StatusUnprocessableEntity
	case dispatch.ReasonValidation:
		return http.StatusBadRequest
	case dispatch.ReasonUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeResult 输出调度结果
func writeResult(c *gin.Context, res dispatch.Result) {
	if res.Success {
		Success(c, res.Task)
		return
	}
	ErrorWithReason(c, reasonStatus(res.Reason), res.Message, string(res.Reason))
}

// Create 登记新任务
func (tc *TaskController) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task := &model.TaskModel{
		OrderID:       req.OrderID,
		PaymentAmount: req.PaymentAmount,
		Address:       req.Address,
		Description:   req.Description,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		RequiredSkill: req.RequiredSkill,
	}
	writeResult(c, tc.engine.Create(c.Request.Context(), task))
}

// Get 获取任务详情
func (tc *TaskController) Get(c *gin.Context) {
	writeResult(c, tc.engine.Get(c.Request.Context(), c.Param("id")))
}

// ListAvailable 分页列出待认领任务
func (tc *TaskController) ListAvailable(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	tasks, total, err := tc.engine.ListAvailable(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, "task store unavailable", "")
		return
	}
	Paginated(c, tasks, NewPagination(page, pageSize, total))
}

// ListMine 列出当前承包商持有的任务
func (tc *TaskController) ListMine(c *gin.Context) {
	contractorID := auth.ContractorIDFromContext(c)

	var statuses []model.TaskStatus
	if s := c.Query("status"); s != "" {
		statuses = append(statuses, model.TaskStatus(s))
	}

	tasks, err := tc.engine.ListByContractor(c.Request.Context(), contractorID, statuses)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, "task store unavailable", "")
		return
	}
	Success(c, tasks)
}

// Claim 认领任务
func (tc *TaskController) Claim(c *gin.Context) {
	contractorID := auth.ContractorIDFromContext(c)
	writeResult(c, tc.engine.Claim(c.Request.Context(), c.Param("id"), contractorID))
}

// Start 开始执行任务
func (tc *TaskController) Start(c *gin.Context) {
	contractorID := auth.ContractorIDFromContext(c)
	writeResult(c, tc.engine.Start(c.Request.Context(), c.Param("id"), contractorID))
}

// UpdateStatus 请求状态迁移
func (tc *TaskController) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	contractorID := auth.ContractorIDFromContext(c)
	writeResult(c, tc.engine.UpdateStatus(c.Request.Context(), c.Param("id"), contractorID, req.Status))
}

// Complete 完成任务
func (tc *TaskController) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	contractorID := auth.ContractorIDFromContext(c)
	writeResult(c, tc.engine.Complete(c.Request.Context(), c.Param("id"), contractorID, dispatch.CompletionData{
		Notes:     req.Notes,
		PhotoURLs: req.PhotoURLs,
	}))
}

// Cancel 登记管理端取消
func (tc *TaskController) Cancel(c *gin.Context) {
	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	writeResult(c, tc.engine.Cancel(c.Request.Context(), c.Param("id"), req.Reason))
}
