package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"momo/access"
	"momo/ingest"
	"momo/models"

	"github.com/gin-gonic/gin"
)

// Ingest 批量导入原始记录
// 请求体为 JSON 数组，或以 multipart 字段 file 上传 .json / .csv 文件
// @Summary 批量导入交易
// @Description 每条记录独立提交，返回逐条结果与汇总计数
// @Tags 导入
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param request body []models.RawRecord false "原始记录数组"
// @Param file formData file false "JSON 或 CSV 文件"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /api/v1/ingest [post]
func (h *Handler) Ingest(c *gin.Context) {
	req := h.request(c, access.OpIngest, access.EntityTransaction)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		uploadedRecords(c, &req)
	} else {
		bodyPayload(c, &req)
	}
	h.do(c, req, http.StatusOK)
}

// uploadedRecords 解析上传文件；失败原因交给访问层记入审计
func uploadedRecords(c *gin.Context, req *access.Request) {
	fh, err := c.FormFile("file")
	if err != nil {
		reject(req, "missing upload field: file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		reject(req, SafeErrorMessage(err, "open uploaded file failed"))
		return
	}
	defer f.Close()

	var records []models.RawRecord
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".json":
		records, err = ingest.LoadJSON(f)
	case ".csv":
		records, err = ingest.LoadCSV(f)
	default:
		err = ingest.ErrUnsupportedFormat
	}
	if err != nil {
		reject(req, SafeErrorMessage(err, "parse uploaded file failed"))
		return
	}
	req.Payload = records
}
