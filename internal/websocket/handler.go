package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bounce/dispatch-gin/internal/auth"
	"github.com/bounce/dispatch-gin/internal/metrics"
	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = gorillaWS.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该检查 Origin
		return true
	},
}

// ContractorFinder 握手时的承包商存在性检查
type ContractorFinder interface {
	FindByID(ctx context.Context, id string) (*model.ContractorModel, error)
}

// Handler WebSocket 连接处理器
// 握手认证: token 解析 → 承包商权威检查 → 升级 → 注册,
// 任意一步失败连接被拒绝,注册表不会产生条目
func Handler(g *Gateway, validator *auth.TokenValidator, contractors ContractorFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 query 参数或 Authorization 头获取 token
		// 缺失时在任何承包商查询之前直接拒绝
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			rejectHandshake(c, g.logger, http.StatusUnauthorized, auth.ErrTokenMissing)
			return
		}

		// 2. 验证 token,过期与非法是不同的拒绝原因
		claims, err := validator.ValidateToken(token)
		if err != nil {
			rejectHandshake(c, g.logger, http.StatusUnauthorized, err)
			return
		}

		// 3. 权威检查: 承包商必须存在、启用且已认证
		// 认证必须在限定窗口内完成,超时即放弃握手
		ctx, cancel := context.WithTimeout(c.Request.Context(), g.opts.AuthTimeout)
		defer cancel()

		contractor, err := contractors.FindByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrContractorNotFound) {
				rejectHandshake(c, g.logger, http.StatusForbidden, auth.ErrContractorNotFound)
			} else {
				rejectHandshake(c, g.logger, http.StatusServiceUnavailable, err)
			}
			return
		}
		if !contractor.Active {
			rejectHandshake(c, g.logger, http.StatusForbidden, auth.ErrContractorInactive)
			return
		}
		if !contractor.Verified {
			rejectHandshake(c, g.logger, http.StatusForbidden, auth.ErrContractorUnverified)
			return
		}

		// 4. 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
			return
		}

		// 5. 创建客户端并附加档案快照
		client := NewClient(
			uuid.New().String(),
			contractor.ID,
			contractor.Name,
			contractor.SkillList(),
			conn,
		)

		// 6. 注册客户端
		g.hub.Register(client)
		metrics.SetActiveConnections(g.hub.Count())

		g.logger.WithFields(logrus.Fields{
			"connection_id": client.ID,
			"contractor_id": client.ContractorID,
		}).Info("websocket connection established")

		// 7. 启动 readPump 和 writePump
		go client.WritePump()
		go client.ReadPump(g.HandleClientEvent, g.HandleDisconnect)

		// 8. 发送连接确认
		_ = g.Publish(client.ID, EventConnected, gin.H{
			"connection_id": client.ID,
			"contractor_id": client.ContractorID,
		})
	}
}

// rejectHandshake 拒绝握手
// 仅向客户端暴露原因类别,完整上下文进 warn 日志供滥用监控
func rejectHandshake(c *gin.Context, logger *logrus.Logger, status int, err error) {
	reason := auth.FailureReason(err)
	logger.WithFields(logrus.Fields{
		"ip":     c.ClientIP(),
		"path":   c.Request.URL.Path,
		"reason": reason,
	}).Warn("websocket handshake rejected")

	metrics.RecordHandshakeRejected(reason)
	c.JSON(status, gin.H{"error": reason})
}
