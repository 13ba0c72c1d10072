package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateToken 测试有效 Token 验证
func TestValidateToken(t *testing.T) {
	validator := NewTokenValidator("test-secret", "dispatch-gin")

	tokenString, err := validator.SignToken("contractor-a", "Alex Doe", []string{"plumbing"}, time.Hour)
	require.NoError(t, err)

	claims, err := validator.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "contractor-a", claims.ContractorID())
	assert.Equal(t, "Alex Doe", claims.Name)
	assert.Equal(t, []string{"plumbing"}, claims.Skills)
}

// TestValidateTokenMissing 测试空 Token
func TestValidateTokenMissing(t *testing.T) {
	validator := NewTokenValidator("test-secret", "")

	_, err := validator.ValidateToken("")
	assert.ErrorIs(t, err, ErrTokenMissing)
}

// TestValidateTokenExpired 测试过期 Token 与非法 Token 的区分
func TestValidateTokenExpired(t *testing.T) {
	validator := NewTokenValidator("test-secret", "")

	expired, err := validator.SignToken("contractor-a", "Alex Doe", nil, -time.Hour)
	require.NoError(t, err)

	_, err = validator.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

// TestValidateTokenWrongSecret 测试签名不匹配
func TestValidateTokenWrongSecret(t *testing.T) {
	signer := NewTokenValidator("other-secret", "")
	validator := NewTokenValidator("test-secret", "")

	tokenString, err := signer.SignToken("contractor-a", "Alex Doe", nil, time.Hour)
	require.NoError(t, err)

	_, err = validator.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// TestValidateTokenMalformed 测试畸形 Token
func TestValidateTokenMalformed(t *testing.T) {
	validator := NewTokenValidator("test-secret", "")

	_, err := validator.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// TestValidateTokenIssuer 测试 issuer 校验
func TestValidateTokenIssuer(t *testing.T) {
	signer := NewTokenValidator("test-secret", "someone-else")
	validator := NewTokenValidator("test-secret", "dispatch-gin")

	tokenString, err := signer.SignToken("contractor-a", "Alex Doe", nil, time.Hour)
	require.NoError(t, err)

	_, err = validator.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// issuer 为空时不校验
	lenient := NewTokenValidator("test-secret", "")
	_, err = lenient.ValidateToken(tokenString)
	assert.NoError(t, err)
}

// TestValidateTokenMissingSubject 测试缺失 subject
func TestValidateTokenMissingSubject(t *testing.T) {
	validator := NewTokenValidator("test-secret", "")

	claims := &ContractorClaims{
		Name: "Alex Doe",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = validator.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// TestFailureReason 测试认证错误到原因字符串的映射
func TestFailureReason(t *testing.T) {
	assert.Equal(t, "token_missing", FailureReason(ErrTokenMissing))
	assert.Equal(t, "token_expired", FailureReason(ErrTokenExpired))
	assert.Equal(t, "token_invalid", FailureReason(ErrTokenInvalid))
	assert.Equal(t, "contractor_not_found", FailureReason(ErrContractorNotFound))
	assert.Equal(t, "contractor_inactive", FailureReason(ErrContractorInactive))
	assert.Equal(t, "contractor_unverified", FailureReason(ErrContractorUnverified))
}
