package container

import (
	"fmt"
	"time"

	"github.com/bounce/dispatch-gin/internal/api"
	"github.com/bounce/dispatch-gin/internal/auth"
	"github.com/bounce/dispatch-gin/internal/config"
	"github.com/bounce/dispatch-gin/internal/database"
	"github.com/bounce/dispatch-gin/internal/dispatch"
	"github.com/bounce/dispatch-gin/internal/realtime"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/bounce/dispatch-gin/internal/service"
	"github.com/bounce/dispatch-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、仓储、服务和实时网关
type Container struct {
	cfg           *config.Config
	db            *gorm.DB
	logger        *logrus.Logger
	validator     *auth.TokenValidator
	hub           *websocket.Hub
	gateway       *websocket.Gateway
	tasks         repository.TaskRepository
	contractors   repository.ContractorRepository
	engine        *dispatch.Engine
	notifications service.NotificationService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	logger, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化仓储层
	tasks := repository.NewTaskRepository(db)
	contractors := repository.NewContractorRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// 3. 初始化 Token 验证器
	validator := auth.NewTokenValidator(cfg.Auth.Secret, cfg.Auth.Issuer)

	// 4. 初始化实时网关
	hub := websocket.NewHub()
	gateway := websocket.NewGateway(hub, websocket.Options{
		RateLimit:     cfg.Realtime.RateLimit,
		RateWindow:    time.Duration(cfg.Realtime.RateWindow) * time.Second,
		SweepInterval: time.Duration(cfg.Realtime.SweepInterval) * time.Second,
		AuthTimeout:   time.Duration(cfg.Realtime.AuthTimeout) * time.Second,
	}, logger)

	// 绑定实时协调器,此后领域事件开始向在线连接推送
	realtime.Init(gateway)
	gateway.Start()

	// 5. 初始化调度引擎与通知服务
	engine := dispatch.NewEngine(tasks, cfg.Realtime.NotifyCancelled, logger)
	notifications := service.NewNotificationService(notificationRepo, logger)

	return &Container{
		cfg:           cfg,
		db:            db,
		logger:        logger,
		validator:     validator,
		hub:           hub,
		gateway:       gateway,
		tasks:         tasks,
		contractors:   contractors,
		engine:        engine,
		notifications: notifications,
	}, nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// TokenValidator 获取 Token 验证器
func (c *Container) TokenValidator() *auth.TokenValidator {
	return c.validator
}

// Gateway 获取实时网关
func (c *Container) Gateway() *websocket.Gateway {
	return c.gateway
}

// ContractorRepository 获取承包商仓储
func (c *Container) ContractorRepository() repository.ContractorRepository {
	return c.contractors
}

// Engine 获取任务调度引擎
func (c *Container) Engine() *dispatch.Engine {
	return c.engine
}

// NotificationService 获取通知服务
func (c *Container) NotificationService() service.NotificationService {
	return c.notifications
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.gateway != nil {
		c.gateway.Stop()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
