package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"momo/access"
	"momo/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService 审计日志与交易的 Excel 报表
type ReportService struct {
	db *gorm.DB
}

// NewReportService 创建报表服务
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// ReportSummary 报表统计
type ReportSummary struct {
	AuditEntries int
	Transactions int
	GeneratedAt  time.Time
}

const (
	auditSheet       = "审计日志"
	transactionSheet = "交易记录"
)

// WriteReport 生成包含审计日志和交易两个工作表的报表
// 审计日志按过滤条件导出；交易按 Since/Until 过滤发生时间
func (s *ReportService) WriteReport(ctx context.Context, w io.Writer, filter access.Filter) (ReportSummary, error) {
	summary := ReportSummary{GeneratedAt: time.Now()}
	db := s.db.WithContext(ctx)

	var entries []models.AuditEntry
	if err := access.AuditQuery(db, filter).Order("id ASC").Find(&entries).Error; err != nil {
		return summary, fmt.Errorf("query audit entries: %w", err)
	}
	summary.AuditEntries = len(entries)

	txq := db.Model(&models.Transaction{}).Preload("Sender").Preload("Receiver").Preload("Category")
	if filter.Since != nil {
		txq = txq.Where("occurred_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		txq = txq.Where("occurred_at < ?", *filter.Until)
	}
	var txs []models.Transaction
	if err := txq.Order("occurred_at ASC, id ASC").Find(&txs).Error; err != nil {
		return summary, fmt.Errorf("query transactions: %w", err)
	}
	summary.Transactions = len(txs)

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newSheetStyles(f)
	if err != nil {
		return summary, err
	}

	f.SetSheetName("Sheet1", auditSheet)
	if err := writeAuditSheet(f, styles, entries); err != nil {
		return summary, err
	}
	if _, err := f.NewSheet(transactionSheet); err != nil {
		return summary, err
	}
	if err := writeTransactionSheet(f, styles, txs); err != nil {
		return summary, err
	}

	if err := f.Write(w); err != nil {
		return summary, fmt.Errorf("write xlsx: %w", err)
	}
	return summary, nil
}

type sheetStyles struct {
	header int
	data   int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return sheetStyles{}, err
	}
	data, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return sheetStyles{}, err
	}
	return sheetStyles{header: header, data: data}, nil
}

// writeRows 写入表头和数据行并设置样式、列宽
func writeRows(f *excelize.File, sheet string, st sheetStyles, headers []string, widths []float64, rows [][]interface{}) error {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if i < len(widths) {
			f.SetColWidth(sheet, col, col, widths[i])
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(sheet, "A1", lastCol+"1", st.header)

	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(headers), len(rows)+1)
		f.SetCellStyle(sheet, "A2", end, st.data)
	}
	return nil
}

func writeAuditSheet(f *excelize.File, st sheetStyles, entries []models.AuditEntry) error {
	headers := []string{"ID", "请求ID", "时间", "动作", "实体类型", "实体ID", "操作者", "已授权", "状态", "客户端", "详情"}
	widths := []float64{8, 38, 20, 10, 18, 10, 15, 8, 14, 16, 60}
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []interface{}{
			e.ID,
			e.RequestID,
			e.CreatedAt.Format(time.DateTime),
			e.Action,
			e.EntityType,
			optionalUint(e.EntityID),
			optionalString(e.Actor),
			e.Authorized,
			e.Status,
			optionalString(e.ClientAddr),
			string(e.Detail),
		})
	}
	return writeRows(f, auditSheet, st, headers, widths, rows)
}

func writeTransactionSheet(f *excelize.File, st sheetStyles, txs []models.Transaction) error {
	headers := []string{"ID", "流水号", "发送方", "接收方", "类别", "金额", "手续费", "余额", "发生时间", "描述"}
	widths := []float64{8, 20, 16, 16, 18, 12, 10, 12, 20, 30}
	rows := make([][]interface{}, 0, len(txs))
	for _, tx := range txs {
		var sender, receiver, category, balance string
		if tx.Sender != nil {
			sender = tx.Sender.Phone
		}
		if tx.Receiver != nil {
			receiver = tx.Receiver.Phone
		}
		if tx.Category != nil {
			category = tx.Category.Name
		}
		if tx.BalanceAfter.Valid {
			balance = tx.BalanceAfter.Decimal.StringFixed(2)
		}
		rows = append(rows, []interface{}{
			tx.ID,
			tx.TxRef,
			sender,
			receiver,
			category,
			tx.Amount.StringFixed(2),
			tx.Fee.StringFixed(2),
			balance,
			tx.OccurredAt.Format(time.DateTime),
			tx.Description,
		})
	}
	return writeRows(f, transactionSheet, st, headers, widths, rows)
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalUint(v *uint) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
