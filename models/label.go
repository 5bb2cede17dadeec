package models

import (
	"time"
)

// Label 标签，只能通过访问层维护并挂到交易上
type Label struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:50;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

func (Label) TableName() string {
	return "labels"
}

// TransactionLabel 交易与标签的多对多关联
type TransactionLabel struct {
	TransactionID uint      `json:"transaction_id" gorm:"primaryKey"`
	LabelID       uint      `json:"label_id" gorm:"primaryKey;index"`
	CreatedAt     time.Time `json:"created_at"`
}

func (TransactionLabel) TableName() string {
	return "transaction_labels"
}
