package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 认证失败的细分原因
// 连接边界按原因决定是刷新凭证还是重新登录
var (
	// ErrTokenMissing 请求未携带 token
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenExpired token 已过期
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid token 格式或签名非法
	ErrTokenInvalid = errors.New("token invalid")
	// ErrContractorNotFound 承包商不存在
	ErrContractorNotFound = errors.New("contractor not found")
	// ErrContractorInactive 承包商已停用
	ErrContractorInactive = errors.New("contractor inactive")
	// ErrContractorUnverified 承包商未通过认证
	ErrContractorUnverified = errors.New("contractor unverified")
)

// ContractorClaims 承包商 JWT 声明
type ContractorClaims struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
	jwt.RegisteredClaims
}

// ContractorID 返回 token 声明的承包商 ID
func (c *ContractorClaims) ContractorID() string {
	return c.Subject
}

// TokenValidator 承包商 Token 验证器
// HS256 对称签名,密钥与签发服务共享
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator 创建 Token 验证器
// issuer 为空时不校验签发者
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// ValidateToken 验证承包商 JWT Token
// 过期与格式非法返回不同的错误,调用方据此决定刷新还是重新认证
func (v *TokenValidator) ValidateToken(tokenString string) (*ContractorClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &ContractorClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*ContractorClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	// 验证 issuer
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrTokenInvalid
	}

	// 验证过期时间
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// SignToken 签发承包商 Token(用于测试和本地工具)
func (v *TokenValidator) SignToken(contractorID, name string, skills []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &ContractorClaims{
		Name:   name,
		Skills: skills,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   contractorID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// FailureReason 将认证错误映射为对外暴露的原因字符串
// 只暴露类别,不暴露内部细节
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "token_missing"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrContractorNotFound):
		return "contractor_not_found"
	case errors.Is(err, ErrContractorInactive):
		return "contractor_inactive"
	case errors.Is(err, ErrContractorUnverified):
		return "contractor_unverified"
	default:
		return "authentication_failed"
	}
}
