package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"momo/access"
	"momo/models"

	"github.com/gin-gonic/gin"
)

// ExportCSV 导出交易为 CSV
// @Summary 导出交易
// @Description 按发生时间范围导出交易为 CSV 文件，导出同样记为一次读取审计
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param since query string false "开始时间 (2026-01-01)"
// @Param until query string false "结束时间 (2026-12-31，不含)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *Handler) ExportCSV(c *gin.Context) {
	req := h.request(c, access.OpRead, access.EntityTransaction)
	listFilter(c, &req)
	req.Filter.Unpaged = true

	resp := h.svc.Do(c.Request.Context(), req)
	if resp.Status != access.StatusOK {
		Respond(c, resp, http.StatusOK)
		return
	}
	page, _ := resp.Data.(*access.Page)
	var txs []models.Transaction
	if page != nil {
		if list, ok := page.List.(*[]models.Transaction); ok {
			txs = *list
		}
	}

	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")
	if err := writeTransactionsCSV(buf, txs); err != nil {
		Error(c, http.StatusInternalServerError, SafeErrorMessage(err, "生成 CSV 失败"))
		return
	}

	filename := fmt.Sprintf("transactions_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// writeTransactionsCSV 表头与导入使用的 CSV 列一致，导出文件可以直接再导入
func writeTransactionsCSV(buf *bytes.Buffer, txs []models.Transaction) error {
	writer := csv.NewWriter(buf)
	headers := []string{"tx_ref", "sender_phone", "sender_name", "receiver_phone", "receiver_name",
		"category", "amount", "fee", "balance_after", "timestamp", "description"}
	if err := writer.Write(headers); err != nil {
		return err
	}
	for _, tx := range txs {
		row := make([]string, 0, len(headers))
		row = append(row, tx.TxRef)
		row = append(row, userColumns(tx.Sender)...)
		row = append(row, userColumns(tx.Receiver)...)
		category := ""
		if tx.Category != nil {
			category = tx.Category.Name
		}
		balance := ""
		if tx.BalanceAfter.Valid {
			balance = tx.BalanceAfter.Decimal.String()
		}
		row = append(row,
			category,
			tx.Amount.String(),
			tx.Fee.String(),
			balance,
			tx.OccurredAt.UTC().Format(time.DateTime),
			tx.Description,
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func userColumns(u *models.User) []string {
	if u == nil {
		return []string{"", ""}
	}
	return []string{u.Phone, u.FullName}
}

