package access

import (
	"crypto/subtle"
	"strings"

	"momo/config"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator 校验调用方出示的共享密钥
type Authenticator struct {
	clients []config.ClientConfig
}

// NewAuthenticator 基于配置的客户端列表创建校验器
func NewAuthenticator(clients []config.ClientConfig) *Authenticator {
	valid := make([]config.ClientConfig, 0, len(clients))
	for _, c := range clients {
		if c.Token == "" && c.TokenBcrypt == "" {
			continue
		}
		if c.Name == "" {
			c.Name = "client"
		}
		valid = append(valid, c)
	}
	return &Authenticator{clients: valid}
}

// Authenticate 返回密钥对应的客户端名称
// 接受带 "Bearer " 前缀的值；空凭证一律拒绝
func (a *Authenticator) Authenticate(credential string) (string, bool) {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		credential = strings.TrimSpace(credential[7:])
	}
	if credential == "" || a == nil {
		return "", false
	}
	for _, c := range a.clients {
		if c.TokenBcrypt != "" {
			if bcrypt.CompareHashAndPassword([]byte(c.TokenBcrypt), []byte(credential)) == nil {
				return c.Name, true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(c.Token), []byte(credential)) == 1 {
			return c.Name, true
		}
	}
	return "", false
}

// HashToken 生成 token_bcrypt 配置值
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
