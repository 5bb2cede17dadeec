package api

import (
	"net/http"
	"strings"

	"momo/access"

	"github.com/gin-gonic/gin"
)

// ListTransactions 分页列出交易
// @Summary 获取交易列表
// @Description 按类别、用户、时间范围过滤，按发生时间倒序分页
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param category_id query int false "类别ID"
// @Param user_id query int false "用户ID（发送方或接收方）"
// @Param since query string false "开始时间"
// @Param until query string false "结束时间"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Router /api/v1/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityTransaction)
	listFilter(c, &req)
	req.Filter.CategoryID = queryUint(c, &req, "category_id")
	req.Filter.UserID = queryUint(c, &req, "user_id")
	h.do(c, req, http.StatusOK)
}

// GetTransaction 按主键获取交易
// @Summary 获取交易详情
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/transactions/{id} [get]
func (h *Handler) GetTransaction(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityTransaction)
	req.ID = pathID(c, &req, "id")
	h.do(c, req, http.StatusOK)
}

// GetTransactionByRef 按流水号获取交易，使用配置的查找策略
// @Summary 按流水号获取交易
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param ref path string true "交易流水号"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/transactions/ref/{ref} [get]
func (h *Handler) GetTransactionByRef(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityTransaction)
	req.Ref = strings.TrimSpace(c.Param("ref"))
	if req.Ref == "" {
		reject(&req, "empty tx_ref")
	}
	h.do(c, req, http.StatusOK)
}

// CreateTransaction 创建单条交易，格式与导入记录相同
// @Summary 创建交易
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.RawRecord true "原始交易记录"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 409 {object} Response "流水号已存在"
// @Router /api/v1/transactions [post]
func (h *Handler) CreateTransaction(c *gin.Context) {
	req := h.request(c, access.OpCreate, access.EntityTransaction)
	bodyPayload(c, &req)
	h.do(c, req, http.StatusCreated)
}

// UpdateTransaction 更新交易，流水号不可修改
// @Summary 更新交易
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param request body access.TransactionUpdate true "更新字段"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/transactions/{id} [put]
func (h *Handler) UpdateTransaction(c *gin.Context) {
	req := h.request(c, access.OpUpdate, access.EntityTransaction)
	req.ID = pathID(c, &req, "id")
	bodyPayload(c, &req)
	h.do(c, req, http.StatusOK)
}

// DeleteTransaction 删除交易及其标签关联
// @Summary 删除交易
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/transactions/{id} [delete]
func (h *Handler) DeleteTransaction(c *gin.Context) {
	req := h.request(c, access.OpDelete, access.EntityTransaction)
	req.ID = pathID(c, &req, "id")
	h.do(c, req, http.StatusOK)
}

// ListTransactionLabels 交易上的标签
// @Summary 获取交易标签
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response
// @Router /api/v1/transactions/{id}/labels [get]
func (h *Handler) ListTransactionLabels(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityTransactionLabel)
	req.ID = pathID(c, &req, "id")
	h.do(c, req, http.StatusOK)
}

// AttachLabel 给交易挂标签
// @Summary 挂载标签
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param request body access.LabelAttach true "标签"
// @Success 201 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response "已挂载"
// @Router /api/v1/transactions/{id}/labels [post]
func (h *Handler) AttachLabel(c *gin.Context) {
	req := h.request(c, access.OpCreate, access.EntityTransactionLabel)
	req.ID = pathID(c, &req, "id")
	bodyPayload(c, &req)
	h.do(c, req, http.StatusCreated)
}

// DetachLabel 取下交易上的标签
// @Summary 取下标签
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param label_id path int true "标签ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/transactions/{id}/labels/{label_id} [delete]
func (h *Handler) DetachLabel(c *gin.Context) {
	req := h.request(c, access.OpDelete, access.EntityTransactionLabel)
	req.ID = pathID(c, &req, "id")
	req.Payload = access.LabelAttach{LabelID: pathID(c, &req, "label_id")}
	h.do(c, req, http.StatusOK)
}
