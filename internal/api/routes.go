package api

import (
	"github.com/bounce/dispatch-gin/internal/auth"
	"github.com/bounce/dispatch-gin/internal/config"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/bounce/dispatch-gin/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 进程级 HTTP 限流参数
const (
	defaultHTTPRate  = 200
	defaultHTTPBurst = 400
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config        *config.Config
	DB            *gorm.DB
	Validator     *auth.TokenValidator
	Gateway       *websocket.Gateway
	Contractors   repository.ContractorRepository
	Tasks         *TaskController
	Notifications *NotificationController
	Logger        *logrus.Logger
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	if config.IsProduction(deps.Config) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	router.Use(SecurityHeadersMiddleware())
	if deps.Config != nil {
		router.Use(CORSMiddleware(deps.Config.CORS.AllowedOrigins))
	}
	router.Use(RateLimitMiddleware(float64(defaultHTTPRate), defaultHTTPBurst))

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.Gateway)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 连接边界
	if deps.Gateway != nil && deps.Validator != nil {
		router.GET("/ws", websocket.Handler(deps.Gateway, deps.Validator, deps.Contractors))
	}

	// API v1 路由组,承包商 JWT 认证
	v1 := router.Group("/api/v1")
	v1.Use(auth.AuthMiddleware(deps.Validator))
	{
		// 任务调度路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", deps.Tasks.Create)
			tasks.GET("/available", deps.Tasks.ListAvailable)
			tasks.GET("/mine", deps.Tasks.ListMine)
			tasks.GET("/:id", deps.Tasks.Get)
			tasks.POST("/:id/claim", deps.Tasks.Claim)
			tasks.POST("/:id/start", deps.Tasks.Start)
			tasks.POST("/:id/status", deps.Tasks.UpdateStatus)
			tasks.POST("/:id/complete", deps.Tasks.Complete)
			tasks.POST("/:id/cancel", deps.Tasks.Cancel)
		}

		// 通知路由
		notifications := v1.Group("/notifications")
		{
			notifications.POST("", deps.Notifications.Create)
			notifications.GET("", deps.Notifications.List)
			notifications.POST("/read-batch", deps.Notifications.MarkMultipleRead)
			notifications.POST("/:id/read", deps.Notifications.MarkRead)
			notifications.POST("/:id/deliver", deps.Notifications.Deliver)
		}
	}

	// 自定义 NoRoute 处理器,返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, 404, "route not found", "the requested route does not exist")
	})

	return router
}
