// Package ingest 将原始交易记录规范化写入关系库。
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"momo/database"
	"momo/logger"
	"momo/models"
	"momo/resolver"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Outcome 单条记录的导入结果
type Outcome string

const (
	Created          Outcome = "created"
	SkippedDuplicate Outcome = "skipped_duplicate"
	Rejected         Outcome = "rejected"
)

// 拒绝原因
const (
	ReasonInvalidAmount    = "invalid_amount"
	ReasonInvalidRecord    = "invalid_record"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonStoreError       = "store_error"
)

// Result 单条记录的处理结果
type Result struct {
	Ref           string  `json:"tx_ref"`
	Outcome       Outcome `json:"outcome"`
	Reason        string  `json:"reason,omitempty"`
	Detail        string  `json:"detail,omitempty"`
	TransactionID uint    `json:"transaction_id,omitempty"`
}

// BatchResult 批量导入结果，Results 与输入一一对应
type BatchResult struct {
	Results  []Result `json:"results"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Rejected int      `json:"rejected"`
}

// Pipeline 导入流水线
type Pipeline struct {
	db              *gorm.DB
	resolver        *resolver.Resolver
	timestampLayout string
	log             zerolog.Logger
}

// Option 流水线选项
type Option func(*Pipeline)

// WithTimestampLayout 设置时间戳解析格式
func WithTimestampLayout(layout string) Option {
	return func(p *Pipeline) {
		if layout != "" {
			p.timestampLayout = layout
		}
	}
}

// WithLogger 设置日志
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// New 创建导入流水线
func New(db *gorm.DB, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:              db,
		resolver:        resolver.New(db),
		timestampLayout: time.DateTime,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithTx 返回绑定到调用方事务的流水线
func (p *Pipeline) WithTx(tx *gorm.DB) *Pipeline {
	cp := *p
	cp.db = tx
	cp.resolver = resolver.New(tx)
	return &cp
}

// ParseTimestamp 按流水线配置的格式解析时间
func (p *Pipeline) ParseTimestamp(s string) (time.Time, error) {
	return ParseTimestamp(s, p.timestampLayout)
}

// normalized 校验通过的记录
type normalized struct {
	amount       decimal.Decimal
	fee          decimal.Decimal
	balanceAfter decimal.NullDecimal
	occurredAt   time.Time
}

type rejection struct {
	reason string
	detail string
}

func (r *rejection) Error() string {
	return r.reason + ": " + r.detail
}

func reject(reason, format string, args ...interface{}) error {
	return &rejection{reason: reason, detail: fmt.Sprintf(format, args...)}
}

// Ingest 导入单条记录
// 整条记录在一个事务内完成；交易行插入位于保存点之后，插入失败只回滚交易行，
// 解析阶段新建的用户、类别照常提交（其他记录可能也会引用它们）
func (p *Pipeline) Ingest(ctx context.Context, raw models.RawRecord) Result {
	ref := strings.TrimSpace(raw.Ref)
	res := Result{Ref: ref}
	if ref == "" {
		res.Outcome, res.Reason, res.Detail = Rejected, ReasonInvalidRecord, "missing tx_ref"
		p.logResult(ctx, res)
		return res
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Transaction
		err := tx.Select("id").Where("tx_ref = ?", ref).Take(&existing).Error
		if err == nil {
			res.Outcome, res.TransactionID = SkippedDuplicate, existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		n, err := p.validate(raw)
		if err != nil {
			return err
		}

		r := p.resolver.WithTx(tx)
		senderID, err := r.ResolveUser(ctx, raw.SenderPhone, raw.SenderName)
		if err != nil {
			return err
		}
		receiverID, err := r.ResolveUser(ctx, raw.ReceiverPhone, raw.ReceiverName)
		if err != nil {
			return err
		}
		categoryID, err := r.ResolveCategory(ctx, raw.Category)
		if err != nil {
			return err
		}

		row := models.Transaction{
			TxRef:        ref,
			SenderID:     senderID,
			ReceiverID:   receiverID,
			CategoryID:   categoryID,
			Amount:       n.amount,
			Fee:          n.fee,
			BalanceAfter: n.balanceAfter,
			OccurredAt:   n.occurredAt,
			Description:  strings.TrimSpace(raw.Description),
		}
		// 嵌套事务即保存点：失败时只撤销交易行
		insertErr := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&row).Error
		})
		switch {
		case insertErr == nil:
			res.Outcome, res.TransactionID = Created, row.ID
		case database.IsDuplicate(insertErr):
			// 并发导入了同一 tx_ref
			res.Outcome = SkippedDuplicate
		default:
			res.Outcome, res.Reason, res.Detail = Rejected, ReasonStoreError, insertErr.Error()
		}
		return nil
	})

	var rej *rejection
	switch {
	case err == nil:
	case errors.As(err, &rej):
		res.Outcome, res.Reason, res.Detail = Rejected, rej.reason, rej.detail
	case errors.Is(err, resolver.ErrEmptyIdentifier):
		res.Outcome, res.Reason, res.Detail = Rejected, ReasonInvalidRecord, err.Error()
	default:
		res.Outcome, res.Reason, res.Detail = Rejected, ReasonStoreError, err.Error()
	}
	p.logResult(ctx, res)
	return res
}

// IngestBatch 按输入顺序逐条导入，单条失败不影响后续记录
func (p *Pipeline) IngestBatch(ctx context.Context, records []models.RawRecord) BatchResult {
	out := BatchResult{Results: make([]Result, 0, len(records))}
	for _, rec := range records {
		res := p.Ingest(ctx, rec)
		out.Results = append(out.Results, res)
		switch res.Outcome {
		case Created:
			out.Created++
		case SkippedDuplicate:
			out.Skipped++
		default:
			out.Rejected++
		}
	}
	log := logger.FromContext(ctx, p.log)
	log.Info().
		Int("total", len(records)).
		Int("created", out.Created).
		Int("skipped", out.Skipped).
		Int("rejected", out.Rejected).
		Msg("批量导入完成")
	return out
}

// validate 金额、手续费非负；发送方、接收方、类别、时间必填
func (p *Pipeline) validate(raw models.RawRecord) (normalized, error) {
	var n normalized
	var err error

	if n.amount, err = parseMoney(raw.Amount, true); err != nil {
		return n, reject(ReasonInvalidAmount, "amount: %v", err)
	}
	if n.fee, err = parseMoney(raw.Fee, false); err != nil {
		return n, reject(ReasonInvalidAmount, "fee: %v", err)
	}
	if !raw.BalanceAfter.IsEmpty() {
		b, err := decimal.NewFromString(raw.BalanceAfter.String())
		if err != nil {
			return n, reject(ReasonInvalidAmount, "balance_after: %v", err)
		}
		n.balanceAfter = decimal.NewNullDecimal(b)
	}

	switch {
	case strings.TrimSpace(raw.SenderPhone) == "":
		return n, reject(ReasonInvalidRecord, "missing sender")
	case strings.TrimSpace(raw.ReceiverPhone) == "":
		return n, reject(ReasonInvalidRecord, "missing receiver")
	case strings.TrimSpace(raw.Category) == "":
		return n, reject(ReasonInvalidRecord, "missing category")
	}

	if n.occurredAt, err = ParseTimestamp(raw.Timestamp, p.timestampLayout); err != nil {
		return n, reject(ReasonInvalidTimestamp, "%v", err)
	}
	return n, nil
}

// parseMoney 解析金额；required=false 时空值视为 0
func parseMoney(v models.RawValue, required bool) (decimal.Decimal, error) {
	if v.IsEmpty() {
		if required {
			return decimal.Zero, errors.New("missing")
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed %q", v.String())
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative %s", d.String())
	}
	return d, nil
}

// ParseTimestamp 先按配置的格式解析，再尝试 RFC3339
func ParseTimestamp(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	if layout == "" {
		layout = time.DateTime
	}
	if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// logResult 优先使用请求范围的 logger，带上请求 ID 与操作者
func (p *Pipeline) logResult(ctx context.Context, res Result) {
	log := logger.FromContext(ctx, p.log)
	ev := log.Debug()
	if res.Outcome == Rejected {
		ev = log.Warn().Str("reason", res.Reason).Str("detail", res.Detail)
	}
	ev.Str("tx_ref", res.Ref).Str("outcome", string(res.Outcome)).Msg("导入记录")
}
