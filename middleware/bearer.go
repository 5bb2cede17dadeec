package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// credentialKey 上下文中保存凭证的键
const credentialKey = "credential"

// BearerToken 从 Authorization 头提取 Bearer 凭证放入上下文
// 不在这里拒绝请求：凭证缺失或错误的请求也要进入访问层留下审计记录
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			c.Set(credentialKey, strings.TrimSpace(parts[1]))
		}
		c.Next()
	}
}

// Credential 当前请求携带的凭证，没有则为空串
func Credential(c *gin.Context) string {
	return c.GetString(credentialKey)
}
