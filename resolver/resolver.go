// Package resolver 将原始记录中的手机号、类别名映射为持久化的实体主键，
// 首次出现时自动创建。
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"momo/database"
	"momo/models"

	"gorm.io/gorm"
)

// ErrEmptyIdentifier 标识为空，无法解析
var ErrEmptyIdentifier = errors.New("empty identifier")

// Resolver 实体解析器（get-or-create）
// 并发解析同一个未出现过的标识时依赖唯一约束：插入冲突后回滚到保存点并重新查询
type Resolver struct {
	db *gorm.DB
}

// New 创建解析器
func New(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// WithTx 绑定到调用方的事务
func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	return &Resolver{db: tx}
}

// ResolveUser 按手机号解析用户，不存在则创建
// name 只在用户还没有名字时写入，已有名字不会被覆盖
func (r *Resolver) ResolveUser(ctx context.Context, phone, name string) (uint, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return 0, fmt.Errorf("resolve user: %w", ErrEmptyIdentifier)
	}
	name = strings.TrimSpace(name)
	db := r.db.WithContext(ctx)

	var user models.User
	err := db.Where("phone = ?", phone).Take(&user).Error
	switch {
	case err == nil:
		if user.FullName == "" && name != "" {
			if err := db.Model(&models.User{}).
				Where("id = ? AND full_name = ?", user.ID, "").
				Update("full_name", name).Error; err != nil {
				return 0, fmt.Errorf("resolve user %s: fill name: %w", phone, err)
			}
		}
		return user.ID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return 0, fmt.Errorf("resolve user %s: %w", phone, err)
	}

	user = models.User{Phone: phone, FullName: name}
	return createOrFetch(db, &user, func() uint { return user.ID }, func(tx *gorm.DB) (uint, error) {
		var existing models.User
		err := tx.Where("phone = ?", phone).Take(&existing).Error
		return existing.ID, err
	})
}

// ResolveCategory 按名称解析类别，不存在则创建
func (r *Resolver) ResolveCategory(ctx context.Context, name string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("resolve category: %w", ErrEmptyIdentifier)
	}
	db := r.db.WithContext(ctx)

	var cat models.Category
	err := db.Where("name = ?", name).Take(&cat).Error
	switch {
	case err == nil:
		return cat.ID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return 0, fmt.Errorf("resolve category %q: %w", name, err)
	}

	cat = models.Category{Name: name}
	return createOrFetch(db, &cat, func() uint { return cat.ID }, func(tx *gorm.DB) (uint, error) {
		var existing models.Category
		err := tx.Where("name = ?", name).Take(&existing).Error
		return existing.ID, err
	})
}

// createOrFetch 在保存点内插入；唯一键冲突说明另一个解析器先写入了，
// 回滚保存点后重新查询返回已有主键
func createOrFetch(db *gorm.DB, row interface{}, createdID func() uint, refetch func(*gorm.DB) (uint, error)) (uint, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err == nil {
		return createdID(), nil
	}
	if !database.IsDuplicate(err) {
		return 0, fmt.Errorf("create entity: %w", err)
	}

	id, err := refetch(db)
	if err != nil {
		return 0, fmt.Errorf("refetch after conflict: %w", err)
	}
	return id, nil
}

// NormalizePhone 去掉空白、横线、括号、点号等分隔符，其余字符原样保留
func NormalizePhone(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")
