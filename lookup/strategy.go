// Package lookup 按交易流水号或主键在快照中查找交易，提供线性、二分、哈希三种可互换的策略。
//
// 三种策略对同一个序列、同一个键必须返回同一条交易（或同时未找到）。
// 序列中存在重复键时，统一返回原序列中下标最小的那一条。
package lookup

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"momo/models"
)

// Key 查找键：流水号或主键
type Key struct {
	Ref  string
	ID   uint
	byID bool
}

// ByRef 按流水号查找
func ByRef(ref string) Key {
	return Key{Ref: ref}
}

// ByID 按主键查找
func ByID(id uint) Key {
	return Key{ID: id, byID: true}
}

// IsID 是否按主键查找
func (k Key) IsID() bool {
	return k.byID
}

func (k Key) String() string {
	if k.byID {
		return fmt.Sprintf("id=%d", k.ID)
	}
	return "ref=" + k.Ref
}

// Index 由策略在序列上构建的查找结构，返回命中元素在原序列中的下标
type Index interface {
	Find(key Key) (int, bool)
}

// Strategy 查找策略
type Strategy interface {
	Name() string
	Complexity() string
	Prepare(seq []models.Transaction) Index
}

var (
	Linear Strategy = linearStrategy{}
	Binary Strategy = binaryStrategy{}
	Hashed Strategy = hashedStrategy{}
)

// Strategies 全部策略，顺序固定
func Strategies() []Strategy {
	return []Strategy{Linear, Binary, Hashed}
}

// ParseStrategy 按名称选择策略
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear":
		return Linear, nil
	case "binary":
		return Binary, nil
	case "hashed", "hash", "":
		return Hashed, nil
	default:
		return nil, fmt.Errorf("unknown lookup strategy %q", name)
	}
}

// ---------------------------------------------------------------------------
// linear: 从头到尾扫描，O(n)

type linearStrategy struct{}

func (linearStrategy) Name() string       { return "linear" }
func (linearStrategy) Complexity() string { return "O(n)" }

func (linearStrategy) Prepare(seq []models.Transaction) Index {
	return linearIndex(seq)
}

type linearIndex []models.Transaction

func (s linearIndex) Find(key Key) (int, bool) {
	for i := range s {
		if matches(&s[i], key) {
			return i, true
		}
	}
	return -1, false
}

// ---------------------------------------------------------------------------
// binary: 按键稳定排序后二分，排序 O(n log n)（已有序时仅 O(n) 校验），查找 O(log n)

type binaryStrategy struct{}

func (binaryStrategy) Name() string       { return "binary" }
func (binaryStrategy) Complexity() string { return "O(log n)" }

// Prepare 立即构建流水号有序下标；主键有序下标在首次按主键查找时构建
func (binaryStrategy) Prepare(seq []models.Transaction) Index {
	b := &binaryIndex{seq: seq}
	b.refOnce.Do(b.buildRef)
	return b
}

type binaryIndex struct {
	seq []models.Transaction

	refOnce, idOnce sync.Once
	byRef, byID     []int
}

func (b *binaryIndex) Find(key Key) (int, bool) {
	if key.byID {
		b.idOnce.Do(b.buildID)
		// 最左侧满足 ID >= key 的位置
		n := sort.Search(len(b.byID), func(i int) bool { return b.seq[b.byID[i]].ID >= key.ID })
		if n < len(b.byID) && b.seq[b.byID[n]].ID == key.ID {
			return b.byID[n], true
		}
		return -1, false
	}

	b.refOnce.Do(b.buildRef)
	n := sort.Search(len(b.byRef), func(i int) bool { return b.seq[b.byRef[i]].TxRef >= key.Ref })
	if n < len(b.byRef) && b.seq[b.byRef[n]].TxRef == key.Ref {
		return b.byRef[n], true
	}
	return -1, false
}

func (b *binaryIndex) buildRef() {
	b.byRef = sortedPositions(b.seq, func(x, y *models.Transaction) bool { return x.TxRef < y.TxRef })
}

func (b *binaryIndex) buildID() {
	b.byID = sortedPositions(b.seq, func(x, y *models.Transaction) bool { return x.ID < y.ID })
}

// sortedPositions 返回按 less 稳定排序后的下标；原序列不被修改
func sortedPositions(seq []models.Transaction, less func(x, y *models.Transaction) bool) []int {
	pos := make([]int, len(seq))
	for i := range pos {
		pos[i] = i
	}
	sorted := sort.SliceIsSorted(pos, func(i, j int) bool { return less(&seq[pos[i]], &seq[pos[j]]) })
	if !sorted {
		sort.SliceStable(pos, func(i, j int) bool { return less(&seq[pos[i]], &seq[pos[j]]) })
	}
	return pos
}

// ---------------------------------------------------------------------------
// hashed: 构建 键 -> 下标 的映射，O(n) 构建，O(1) 查找；重复键保留第一次出现

type hashedStrategy struct{}

func (hashedStrategy) Name() string       { return "hashed" }
func (hashedStrategy) Complexity() string { return "O(1)" }

// Prepare 立即构建流水号映射；主键映射在首次按主键查找时构建
func (hashedStrategy) Prepare(seq []models.Transaction) Index {
	h := &hashedIndex{seq: seq}
	h.refOnce.Do(h.buildRef)
	return h
}

type hashedIndex struct {
	seq []models.Transaction

	refOnce, idOnce sync.Once
	byRef           map[string]int
	byID            map[uint]int
}

func (h *hashedIndex) Find(key Key) (int, bool) {
	if key.byID {
		h.idOnce.Do(h.buildID)
		i, ok := h.byID[key.ID]
		if !ok {
			return -1, false
		}
		return i, true
	}

	h.refOnce.Do(h.buildRef)
	i, ok := h.byRef[key.Ref]
	if !ok {
		return -1, false
	}
	return i, true
}

func (h *hashedIndex) buildRef() {
	h.byRef = make(map[string]int, len(h.seq))
	for i := range h.seq {
		if _, ok := h.byRef[h.seq[i].TxRef]; !ok {
			h.byRef[h.seq[i].TxRef] = i
		}
	}
}

func (h *hashedIndex) buildID() {
	h.byID = make(map[uint]int, len(h.seq))
	for i := range h.seq {
		if _, ok := h.byID[h.seq[i].ID]; !ok {
			h.byID[h.seq[i].ID] = i
		}
	}
}

func matches(tx *models.Transaction, key Key) bool {
	if key.byID {
		return tx.ID == key.ID
	}
	return tx.TxRef == key.Ref
}
