package api

import (
	"net/http"

	"momo/access"

	"github.com/gin-gonic/gin"
)

// 用户、类别、标签的接口形状相同，按实体类型生成处理函数

// List 分页列表，支持 name 模糊搜索
func (h *Handler) List(entity access.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := h.request(c, access.OpRead, entity)
		listFilter(c, &req)
		h.do(c, req, http.StatusOK)
	}
}

// Get 按主键获取
func (h *Handler) Get(entity access.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := h.request(c, access.OpRead, entity)
		req.ID = pathID(c, &req, "id")
		h.do(c, req, http.StatusOK)
	}
}

// Create 创建，唯一字段重复返回 409
func (h *Handler) Create(entity access.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := h.request(c, access.OpCreate, entity)
		bodyPayload(c, &req)
		h.do(c, req, http.StatusCreated)
	}
}

// Update 更新
func (h *Handler) Update(entity access.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := h.request(c, access.OpUpdate, entity)
		req.ID = pathID(c, &req, "id")
		bodyPayload(c, &req)
		h.do(c, req, http.StatusOK)
	}
}

// Delete 删除，仍被引用时返回 409
func (h *Handler) Delete(entity access.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := h.request(c, access.OpDelete, entity)
		req.ID = pathID(c, &req, "id")
		h.do(c, req, http.StatusOK)
	}
}
