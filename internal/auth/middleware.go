package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyContractorID gin 上下文中承包商 ID 的键
const ContextKeyContractorID = "contractor_id"

// AuthMiddleware 承包商 JWT 认证中间件
func AuthMiddleware(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "missing authorization header",
			})
			c.Abort()
			return
		}

		// 移除 "Bearer " 前缀
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "invalid token",
				"reason":  FailureReason(err),
			})
			c.Abort()
			return
		}

		// 将承包商信息存储到上下文
		c.Set(ContextKeyContractorID, claims.Subject)
		c.Set("contractor_name", claims.Name)
		c.Set("contractor_skills", claims.Skills)

		c.Next()
	}
}

// ContractorIDFromContext 从 gin 上下文获取承包商 ID
func ContractorIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyContractorID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
