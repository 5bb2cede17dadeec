package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"momo/access"
	"momo/middleware"

	"github.com/gin-gonic/gin"
)

// Handler 所有 HTTP 接口都转发到访问层，凭证校验与审计在访问层完成
type Handler struct {
	svc *access.Service
}

// NewHandler 创建接口处理器
func NewHandler(svc *access.Service) *Handler {
	return &Handler{svc: svc}
}

// request 构造访问请求，带上凭证与客户端地址
func (h *Handler) request(c *gin.Context, op access.Operation, entity access.Entity) access.Request {
	return access.Request{
		Operation:  op,
		Entity:     entity,
		Credential: middleware.Credential(c),
		ClientAddr: c.ClientIP(),
	}
}

// do 执行请求并输出结果
func (h *Handler) do(c *gin.Context, req access.Request, okCode int) {
	Respond(c, h.svc.Do(c.Request.Context(), req), okCode)
}

// reject 记录第一个参数错误，请求仍交给访问层完成鉴权与审计
func reject(req *access.Request, reason string) {
	if req.Malformed == "" {
		req.Malformed = reason
	}
}

// pathID 解析路径中的主键
func pathID(c *gin.Context, req *access.Request, name string) uint {
	raw := c.Param(name)
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id64 == 0 {
		reject(req, "invalid "+name+": "+raw)
		return 0
	}
	return uint(id64)
}

// bodyPayload 读取原始 JSON 请求体，解码交给访问层
func bodyPayload(c *gin.Context, req *access.Request) {
	data, err := c.GetRawData()
	if err != nil {
		reject(req, "read request body failed")
		return
	}
	req.Payload = data
}

// listFilter 解析分页与通用过滤参数
func listFilter(c *gin.Context, req *access.Request) {
	f := &req.Filter
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	f.Name = strings.TrimSpace(c.Query("name"))
	f.Since = queryTime(c, req, "since")
	f.Until = queryTime(c, req, "until")
}

// queryTime 支持 RFC3339 与 2006-01-02 两种格式
func queryTime(c *gin.Context, req *access.Request, key string) *time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly, time.DateTime} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t
		}
	}
	reject(req, "invalid time parameter: "+key)
	return nil
}

func queryUint(c *gin.Context, req *access.Request, key string) uint {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		reject(req, "invalid parameter: "+key)
		return 0
	}
	return uint(v)
}

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
