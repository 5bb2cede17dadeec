package access

import (
	"errors"
	"strings"

	"momo/ingest"
	"momo/lookup"
	"momo/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionUpdate 交易可修改的字段，nil 表示不修改
// TxRef 只用于校验：与原值不同即拒绝
type TransactionUpdate struct {
	TxRef        *string          `json:"tx_ref,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Fee          *decimal.Decimal `json:"fee,omitempty"`
	BalanceAfter *decimal.Decimal `json:"balance_after,omitempty"`
	Description  *string          `json:"description,omitempty"`
	CategoryID   *uint            `json:"category_id,omitempty"`
	Timestamp    *string          `json:"timestamp,omitempty"`
}

// createTransaction 单条创建，复用导入流水线的校验与实体解析；重复流水号视为冲突
func createTransaction(c *call) (interface{}, error) {
	var rec models.RawRecord
	if err := decodePayload(c.req.Payload, &rec); err != nil {
		return nil, err
	}
	res := c.svc.pipeline.WithTx(c.tx).Ingest(c.ctx, rec)
	c.note("tx_ref", res.Ref)

	switch {
	case res.Outcome == ingest.SkippedDuplicate:
		return nil, fail(StatusConflict, "tx_ref %s already exists", res.Ref)
	case res.Outcome == ingest.Rejected && res.Reason == ingest.ReasonStoreError:
		return nil, errors.New(res.Detail)
	case res.Outcome == ingest.Rejected:
		return nil, fail(StatusInvalid, "%s: %s", res.Reason, res.Detail)
	}

	c.setEntityID(res.TransactionID)
	row, err := loadTransaction(c.tx, res.TransactionID, "")
	if err != nil {
		return nil, err
	}
	c.note("amount", row.Amount.String())
	c.note("fee", row.Fee.String())
	c.note("sender_id", row.SenderID)
	c.note("receiver_id", row.ReceiverID)
	c.note("category_id", row.CategoryID)
	return row, nil
}

// readTransaction 按流水号走查找引擎，按主键直接查询，否则分页列出
func readTransaction(c *call) (interface{}, error) {
	if ref := strings.TrimSpace(c.req.Ref); ref != "" {
		engine := c.svc.engine.WithTx(c.tx)
		c.note("tx_ref", ref)
		c.note("strategy", engine.Strategy().Name())
		row, err := engine.Find(c.ctx, lookup.ByRef(ref), nil)
		if errors.Is(err, lookup.ErrNotFound) {
			return nil, fail(StatusNotFound, "transaction %s not found", ref)
		}
		if err != nil {
			return nil, err
		}
		c.setEntityID(row.ID)
		return row, nil
	}
	if c.req.ID != 0 {
		return loadTransaction(c.tx, c.req.ID, "")
	}

	f := c.req.Filter
	q := c.tx.Model(&models.Transaction{})
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.UserID != 0 {
		q = q.Where("sender_id = ? OR receiver_id = ?", f.UserID, f.UserID)
	}
	if f.Since != nil {
		q = q.Where("occurred_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("occurred_at < ?", *f.Until)
	}
	var list []models.Transaction
	page, err := listPage(q, f, "occurred_at DESC, id DESC", &list, "Sender", "Receiver", "Category", "Labels")
	if err != nil {
		return nil, err
	}
	c.note("total", page.Total)
	c.note("page", page.Page)
	return page, nil
}

func updateTransaction(c *call) (interface{}, error) {
	row, err := loadTransaction(c.tx, c.req.ID, c.req.Ref)
	if err != nil {
		return nil, err
	}
	c.setEntityID(row.ID)

	var in TransactionUpdate
	if err := decodePayload(c.req.Payload, &in); err != nil {
		return nil, err
	}
	if in.TxRef != nil && strings.TrimSpace(*in.TxRef) != row.TxRef {
		return nil, fail(StatusInvalid, "tx_ref is immutable")
	}

	updates := map[string]interface{}{}
	changes := map[string]interface{}{}
	if in.Amount != nil && !in.Amount.Equal(row.Amount) {
		if in.Amount.IsNegative() {
			return nil, fail(StatusInvalid, "amount must not be negative")
		}
		updates["amount"] = *in.Amount
		change(changes, "amount", row.Amount.String(), in.Amount.String())
	}
	if in.Fee != nil && !in.Fee.Equal(row.Fee) {
		if in.Fee.IsNegative() {
			return nil, fail(StatusInvalid, "fee must not be negative")
		}
		updates["fee"] = *in.Fee
		change(changes, "fee", row.Fee.String(), in.Fee.String())
	}
	if in.BalanceAfter != nil && (!row.BalanceAfter.Valid || !in.BalanceAfter.Equal(row.BalanceAfter.Decimal)) {
		var old interface{}
		if row.BalanceAfter.Valid {
			old = row.BalanceAfter.Decimal.String()
		}
		updates["balance_after"] = decimal.NewNullDecimal(*in.BalanceAfter)
		change(changes, "balance_after", old, in.BalanceAfter.String())
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) != row.Description {
		desc := strings.TrimSpace(*in.Description)
		updates["description"] = desc
		change(changes, "description", row.Description, desc)
	}
	if in.CategoryID != nil && *in.CategoryID != row.CategoryID {
		var n int64
		if err := c.tx.Model(&models.Category{}).Where("id = ?", *in.CategoryID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fail(StatusConflict, "category %d does not exist", *in.CategoryID)
		}
		updates["category_id"] = *in.CategoryID
		change(changes, "category_id", row.CategoryID, *in.CategoryID)
	}
	if in.Timestamp != nil {
		at, err := c.svc.pipeline.ParseTimestamp(*in.Timestamp)
		if err != nil {
			return nil, fail(StatusInvalid, "%v", err)
		}
		if !at.Equal(row.OccurredAt) {
			updates["occurred_at"] = at
			change(changes, "timestamp", row.OccurredAt, at)
		}
	}

	c.note("tx_ref", row.TxRef)
	c.note("changes", changes)
	if len(updates) == 0 {
		return row, nil
	}
	if err := c.tx.Model(&models.Transaction{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return loadTransaction(c.tx, row.ID, "")
}

// deleteTransaction 先删除标签关联再删除交易
func deleteTransaction(c *call) (interface{}, error) {
	row, err := loadTransaction(c.tx, c.req.ID, c.req.Ref)
	if err != nil {
		return nil, err
	}
	c.setEntityID(row.ID)
	c.note("tx_ref", row.TxRef)
	c.note("amount", row.Amount.String())

	if err := c.tx.Where("transaction_id = ?", row.ID).Delete(&models.TransactionLabel{}).Error; err != nil {
		return nil, err
	}
	if err := c.tx.Delete(&models.Transaction{}, row.ID).Error; err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": row.ID, "tx_ref": row.TxRef}, nil
}

// ingestTransactions 批量导入，每条记录各自提交
func ingestTransactions(c *call) (interface{}, error) {
	var records []models.RawRecord
	if err := decodePayload(c.req.Payload, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fail(StatusInvalid, "no records")
	}
	out := c.svc.pipeline.IngestBatch(c.ctx, records)
	c.note("records", len(records))
	c.note("created", out.Created)
	c.note("skipped", out.Skipped)
	c.note("rejected", out.Rejected)
	return out, nil
}

// loadTransaction 按主键或流水号加载交易及关联
func loadTransaction(tx *gorm.DB, id uint, ref string) (*models.Transaction, error) {
	q := tx.Preload("Sender").Preload("Receiver").Preload("Category").Preload("Labels")
	var row models.Transaction
	var err error
	switch {
	case id != 0:
		err = q.Take(&row, id).Error
	case strings.TrimSpace(ref) != "":
		err = q.Where("tx_ref = ?", strings.TrimSpace(ref)).Take(&row).Error
	default:
		return nil, fail(StatusInvalid, "transaction id or tx_ref required")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(StatusNotFound, "transaction not found")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
