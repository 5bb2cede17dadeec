package access

import (
	"errors"

	"momo/models"

	"gorm.io/gorm"
)

// readAudit 查询审计日志；查询本身同样会被审计
func readAudit(c *call) (interface{}, error) {
	if c.req.ID != 0 {
		var entry models.AuditEntry
		err := c.tx.Take(&entry, c.req.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(StatusNotFound, "audit entry %d not found", c.req.ID)
		}
		if err != nil {
			return nil, err
		}
		return &entry, nil
	}

	f := c.req.Filter
	var list []models.AuditEntry
	page, err := listPage(AuditQuery(c.tx, f), f, "id DESC", &list)
	if err != nil {
		return nil, err
	}
	c.note("total", page.Total)
	if f.Action != "" {
		c.note("filter_action", f.Action)
	}
	if f.EntityType != "" {
		c.note("filter_entity_type", f.EntityType)
	}
	return page, nil
}

// AuditQuery 按过滤条件构造审计日志查询，导出报表也使用它
func AuditQuery(db *gorm.DB, f Filter) *gorm.DB {
	q := db.Model(&models.AuditEntry{})
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		q = q.Where("entity_id = ?", *f.EntityID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", *f.Until)
	}
	return q
}
