package models

import (
	"time"
)

// User 用户（以手机号作为外部身份）
// 由导入流程首次引用时自动创建；被交易引用时禁止删除
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Phone     string    `json:"phone" gorm:"size:32;not null;uniqueIndex"`
	FullName  string    `json:"full_name" gorm:"size:100;not null;default:''"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}
