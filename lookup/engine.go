package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"momo/models"

	"gorm.io/gorm"
)

// ErrNotFound 快照中没有匹配的交易
var ErrNotFound = errors.New("transaction not found")

// Engine 查找引擎；每次查找都从库中重新加载快照，快照归本次调用私有
type Engine struct {
	db       *gorm.DB
	strategy Strategy
}

// NewEngine 创建查找引擎，strategy 为空时使用 hashed
func NewEngine(db *gorm.DB, strategy Strategy) *Engine {
	if strategy == nil {
		strategy = Hashed
	}
	return &Engine{db: db, strategy: strategy}
}

// WithTx 绑定到调用方事务
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	return &Engine{db: tx, strategy: e.strategy}
}

// Strategy 默认策略
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Snapshot 加载全部交易（含发送方、接收方、类别、标签），按流水号字节序升序
func (e *Engine) Snapshot(ctx context.Context) ([]models.Transaction, error) {
	var seq []models.Transaction
	err := e.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Preload("Category").
		Preload("Labels").
		Order("tx_ref ASC").
		Find(&seq).Error
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	// 数据库排序规则可能与字节序不同（如大小写不敏感），这里统一按字节序
	SortByRef(seq)
	return seq, nil
}

// Find 加载新快照并按策略查找；strategy 为空时使用默认策略
func (e *Engine) Find(ctx context.Context, key Key, strategy Strategy) (*models.Transaction, error) {
	seq, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = e.strategy
	}
	return FindIn(seq, key, strategy)
}

// FindIn 在给定快照上查找，返回元素的副本
func FindIn(seq []models.Transaction, key Key, strategy Strategy) (*models.Transaction, error) {
	i, ok := strategy.Prepare(seq).Find(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	tx := seq[i]
	return &tx, nil
}

// SortByRef 按流水号稳定排序（原地）
func SortByRef(seq []models.Transaction) {
	less := func(i, j int) bool { return seq[i].TxRef < seq[j].TxRef }
	if !sort.SliceIsSorted(seq, less) {
		sort.SliceStable(seq, less)
	}
}
