package api

import (
	"net/http"

	"momo/access"

	"github.com/gin-gonic/gin"
)

// ListAudit 查询审计日志
// @Summary 查询审计日志
// @Description 按动作、实体、状态、时间范围过滤，按主键倒序分页；查询本身也会被审计
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param action query string false "动作 create/read/update/delete/ingest"
// @Param entity_type query string false "实体类型"
// @Param entity_id query int false "实体ID"
// @Param status query string false "结果状态"
// @Param since query string false "开始时间"
// @Param until query string false "结束时间"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Router /api/v1/audit [get]
func (h *Handler) ListAudit(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityAudit)
	listFilter(c, &req)
	req.Filter.Action = c.Query("action")
	req.Filter.EntityType = c.Query("entity_type")
	req.Filter.Status = c.Query("status")
	if c.Query("entity_id") != "" {
		id := queryUint(c, &req, "entity_id")
		req.Filter.EntityID = &id
	}
	h.do(c, req, http.StatusOK)
}

// GetAudit 获取单条审计记录
// @Summary 获取审计记录
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param id path int true "审计记录ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/audit/{id} [get]
func (h *Handler) GetAudit(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityAudit)
	req.ID = pathID(c, &req, "id")
	h.do(c, req, http.StatusOK)
}
