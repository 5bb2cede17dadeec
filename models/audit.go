package models

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionIngest = "ingest"
)

// AuditEntry 审计日志，只追加，不修改不删除
// 凭证校验失败时 Actor 为 NULL、Authorized 为 false
type AuditEntry struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	RequestID  string         `json:"request_id" gorm:"size:36;not null;index"`
	Action     string         `json:"action" gorm:"size:20;not null;index"`
	EntityType string         `json:"entity_type" gorm:"size:32;not null;index:idx_audit_entity"`
	EntityID   *uint          `json:"entity_id" gorm:"index:idx_audit_entity"`
	Actor      *string        `json:"actor" gorm:"size:64"`
	Authorized bool           `json:"authorized" gorm:"not null"`
	Status     string         `json:"status" gorm:"size:20;not null;index"`
	ClientAddr *string        `json:"client_addr" gorm:"size:64"`
	Detail     datatypes.JSON `json:"detail"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
