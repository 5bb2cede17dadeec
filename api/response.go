package api

import (
	"net/http"

	"momo/access"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HTTPStatus 访问层状态到 HTTP 状态码的映射
func HTTPStatus(status access.Status) int {
	switch status {
	case access.StatusOK:
		return http.StatusOK
	case access.StatusInvalid:
		return http.StatusBadRequest
	case access.StatusUnauthorized:
		return http.StatusUnauthorized
	case access.StatusNotFound:
		return http.StatusNotFound
	case access.StatusConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Respond 输出访问层结果；成功时使用 okCode（创建为 201）
func Respond(c *gin.Context, resp access.Response, okCode int) {
	if resp.Status == access.StatusOK {
		c.JSON(okCode, Response{
			Code:    okCode,
			Status:  string(resp.Status),
			Message: "success",
			Data:    resp.Data,
		})
		return
	}
	code := HTTPStatus(resp.Status)
	message := resp.Reason
	if message == "" {
		message = http.StatusText(code)
	}
	c.JSON(code, Response{
		Code:    code,
		Status:  string(resp.Status),
		Message: message,
	})
}

// Error 访问层之后的输出错误，例如导出文件生成失败
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Status:  string(access.StatusError),
		Message: message,
	})
}
