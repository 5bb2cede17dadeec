package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction 规范化后的交易记录
// TxRef 全局唯一，创建后不可修改；Amount、Fee 不能为负
type Transaction struct {
	ID           uint                `json:"id" gorm:"primaryKey"`
	TxRef        string              `json:"tx_ref" gorm:"size:64;not null;uniqueIndex"`
	SenderID     uint                `json:"sender_id" gorm:"not null;index"`
	ReceiverID   uint                `json:"receiver_id" gorm:"not null;index"`
	CategoryID   uint                `json:"category_id" gorm:"not null;index"`
	Amount       decimal.Decimal     `json:"amount" gorm:"type:decimal(14,2);not null"`
	Fee          decimal.Decimal     `json:"fee" gorm:"type:decimal(14,2);not null"`
	BalanceAfter decimal.NullDecimal `json:"balance_after" gorm:"type:decimal(14,2)"`
	OccurredAt   time.Time           `json:"timestamp" gorm:"not null;index"`
	Description  string              `json:"description" gorm:"size:500;not null;default:''"`
	CreatedAt    time.Time           `json:"created_at"`

	Sender   *User    `json:"sender,omitempty" gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Receiver *User    `json:"receiver,omitempty" gorm:"foreignKey:ReceiverID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Labels   []Label  `json:"labels,omitempty" gorm:"many2many:transaction_labels;constraint:OnDelete:CASCADE"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}
