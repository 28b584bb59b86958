package middleware

import (
	"net/http"
	"strings"

	"model-viewer-go/internal/config"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// SessionKey 是会话 ID 在 gin.Context 中的键。
const SessionKey = "sessionID"

// SessionResolver 为每个请求确定会话 ID：请求头 > Cookie > 新签发。
// 能解析为会话令牌的值会被还原成其中的会话 ID，其余字符串按原样作为会话 ID。
func SessionResolver(sessions *token.SessionManager, cfg config.SessionConfig) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = "X-Session-ID"
	}
	cookieName := cfg.Cookie
	if cookieName == "" {
		cookieName = "sessionId"
	}

	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(header))
		if raw == "" {
			if v, err := c.Cookie(cookieName); err == nil {
				raw = strings.TrimSpace(v)
			}
		}

		var sessionID string
		if raw != "" {
			sessionID = raw
			if sid, err := sessions.Parse(raw); err == nil && sid != "" {
				sessionID = sid
			}
		} else {
			sessionID = token.NewSessionID()
			signed, err := sessions.Issue(sessionID)
			if err != nil {
				log.Errorf("[SessionResolver] 签发会话令牌失败: %v", err)
			} else {
				c.SetSameSite(http.SameSiteLaxMode)
				c.SetCookie(cookieName, signed, cfg.ExpireHours*3600, "/", "", false, true)
			}
			log.Debugf("[SessionResolver] 已创建新会话: %s", sessionID)
		}

		c.Set(SessionKey, sessionID)
		c.Header(header, sessionID)
		c.Next()
	}
}

// SessionID 返回 SessionResolver 解析出的会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}
