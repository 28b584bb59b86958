// Package token 提供会话令牌的签发与解析。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionManager 负责签发和验证会话令牌。
type SessionManager struct {
	secretKey []byte
	expire    time.Duration
}

// SessionClaims 在标准 JWT 声明之外携带会话 ID。
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionManager 创建一个新的 SessionManager 实例。
// expireHours <= 0 时令牌永不过期。
func NewSessionManager(secret string, expireHours int) *SessionManager {
	return &SessionManager{
		secretKey: []byte(secret),
		expire:    time.Duration(expireHours) * time.Hour,
	}
}

// NewSessionID 生成一个新的会话 ID，格式为 session_<毫秒时间戳>_<随机串>。
func NewSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), GenerateRandomString(5))
}

// Issue 为会话 ID 签发 HS256 令牌。
func (m *SessionManager) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if m.expire > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expire))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Parse 验证令牌并返回其中的会话 ID。
func (m *SessionManager) Parse(tokenString string) (string, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid || claims.SessionID == "" {
		return "", errors.New("invalid session token")
	}
	return claims.SessionID, nil
}

// GenerateRandomString generates a random hex string of a given byte length.
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less random string on error
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
