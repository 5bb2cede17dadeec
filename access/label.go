package access

import (
	"errors"
	"strings"

	"momo/models"

	"gorm.io/gorm"
)

// LabelAttach 挂载标签载荷
type LabelAttach struct {
	LabelID uint `json:"label_id"`
}

func createLabel(c *call) (interface{}, error) {
	name, err := decodeName(c)
	if err != nil {
		return nil, err
	}
	c.note("name", name)
	if dup, err := taken(c.tx, &models.Label{}, "name", name, 0); err != nil {
		return nil, err
	} else if dup {
		return nil, fail(StatusConflict, "label %q already exists", name)
	}
	label := models.Label{Name: name}
	if err := c.tx.Create(&label).Error; err != nil {
		return nil, err
	}
	c.setEntityID(label.ID)
	return &label, nil
}

func readLabel(c *call) (interface{}, error) {
	if c.req.ID != 0 {
		return loadLabel(c.tx, c.req.ID)
	}
	q := c.tx.Model(&models.Label{})
	if name := strings.TrimSpace(c.req.Filter.Name); name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var list []models.Label
	page, err := listPage(q, c.req.Filter, "name ASC", &list)
	if err != nil {
		return nil, err
	}
	c.note("total", page.Total)
	return page, nil
}

func updateLabel(c *call) (interface{}, error) {
	label, err := loadLabel(c.tx, c.req.ID)
	if err != nil {
		return nil, err
	}
	name, err := decodeName(c)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	c.note("changes", changes)
	if name == label.Name {
		return label, nil
	}
	if dup, err := taken(c.tx, &models.Label{}, "name", name, label.ID); err != nil {
		return nil, err
	} else if dup {
		return nil, fail(StatusConflict, "label %q already exists", name)
	}
	change(changes, "name", label.Name, name)
	if err := c.tx.Model(&models.Label{}).Where("id = ?", label.ID).Update("name", name).Error; err != nil {
		return nil, err
	}
	label.Name = name
	return label, nil
}

// deleteLabel 仍挂在交易上的标签禁止删除
func deleteLabel(c *call) (interface{}, error) {
	label, err := loadLabel(c.tx, c.req.ID)
	if err != nil {
		return nil, err
	}
	c.note("name", label.Name)
	var refs int64
	if err := c.tx.Model(&models.TransactionLabel{}).Where("label_id = ?", label.ID).Count(&refs).Error; err != nil {
		return nil, err
	}
	if refs > 0 {
		c.note("references", refs)
		return nil, fail(StatusConflict, "label %d is attached to %d transaction(s)", label.ID, refs)
	}
	if err := c.tx.Delete(&models.Label{}, label.ID).Error; err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": label.ID}, nil
}

// attachLabel 给交易挂标签，ID 为交易主键
func attachLabel(c *call) (interface{}, error) {
	row, label, err := loadLink(c)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := c.tx.Model(&models.TransactionLabel{}).
		Where("transaction_id = ? AND label_id = ?", row.ID, label.ID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fail(StatusConflict, "label %q already attached", label.Name)
	}
	link := models.TransactionLabel{TransactionID: row.ID, LabelID: label.ID}
	if err := c.tx.Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// detachLabel 取下交易上的标签
func detachLabel(c *call) (interface{}, error) {
	row, label, err := loadLink(c)
	if err != nil {
		return nil, err
	}
	res := c.tx.Where("transaction_id = ? AND label_id = ?", row.ID, label.ID).Delete(&models.TransactionLabel{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fail(StatusNotFound, "label %q is not attached", label.Name)
	}
	return map[string]interface{}{"transaction_id": row.ID, "label_id": label.ID}, nil
}

// listTransactionLabels 列出交易上的全部标签
func listTransactionLabels(c *call) (interface{}, error) {
	row, err := loadTransaction(c.tx, c.req.ID, c.req.Ref)
	if err != nil {
		return nil, err
	}
	c.setEntityID(row.ID)
	c.note("tx_ref", row.TxRef)
	labels := row.Labels
	if labels == nil {
		labels = []models.Label{}
	}
	return labels, nil
}

func loadLink(c *call) (*models.Transaction, *models.Label, error) {
	row, err := loadTransaction(c.tx, c.req.ID, c.req.Ref)
	if err != nil {
		return nil, nil, err
	}
	c.setEntityID(row.ID)
	c.note("tx_ref", row.TxRef)

	var in LabelAttach
	if err := decodePayload(c.req.Payload, &in); err != nil {
		return nil, nil, err
	}
	c.note("label_id", in.LabelID)
	label, err := loadLabel(c.tx, in.LabelID)
	if err != nil {
		return nil, nil, err
	}
	return row, label, nil
}

func loadLabel(tx *gorm.DB, id uint) (*models.Label, error) {
	if id == 0 {
		return nil, fail(StatusInvalid, "label id required")
	}
	var label models.Label
	err := tx.Take(&label, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(StatusNotFound, "label %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &label, nil
}
