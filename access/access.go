// Package access 在关系库之上提供带凭证校验和审计日志的增删改查入口。
// 每次调用（包括凭证无效、操作失败）都会追加且只追加一条审计记录。
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"momo/database"
	"momo/ingest"
	"momo/logger"
	"momo/lookup"
	"momo/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Operation 操作类型，与审计动作一致
type Operation string

const (
	OpCreate Operation = models.ActionCreate
	OpRead   Operation = models.ActionRead
	OpUpdate Operation = models.ActionUpdate
	OpDelete Operation = models.ActionDelete
	OpIngest Operation = models.ActionIngest
)

// Entity 实体类型
type Entity string

const (
	EntityTransaction      Entity = "transaction"
	EntityUser             Entity = "user"
	EntityCategory         Entity = "category"
	EntityLabel            Entity = "label"
	EntityTransactionLabel Entity = "transaction_label"
	EntityAudit            Entity = "audit"
)

// Status 调用结果
type Status string

const (
	StatusOK           Status = "ok"
	StatusUnauthorized Status = "unauthorized"
	StatusNotFound     Status = "not_found"
	StatusConflict     Status = "conflict"
	StatusInvalid      Status = "invalid"
	StatusError        Status = "error"
)

// Filter 列表查询条件，不同实体只使用其中相关的字段
type Filter struct {
	// 审计
	Action     string
	EntityType string
	EntityID   *uint
	Status     string
	Since      *time.Time
	Until      *time.Time

	// 交易
	CategoryID uint
	UserID     uint

	// 名称模糊匹配（用户、类别、标签）
	Name string

	Page     int
	PageSize int
	// Unpaged 返回全部匹配记录（导出使用）
	Unpaged bool
}

// Request 一次访问请求
// Payload 可以是对应的输入结构体、map、json.RawMessage 或 []byte
type Request struct {
	Operation  Operation
	Entity     Entity
	ID         uint
	Ref        string
	Payload    interface{}
	Credential string
	ClientAddr string
	Filter     Filter
	// Malformed 传输层解析参数失败的原因，非空时鉴权后直接以 invalid 结束
	Malformed string
}

// Response 调用结果；Reason 仅在失败时填写
type Response struct {
	Status Status      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Page 分页结果
type Page struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

// Failure 业务失败，携带对外状态
type Failure struct {
	Status Status
	Reason string
}

func (f *Failure) Error() string {
	return string(f.Status) + ": " + f.Reason
}

func fail(status Status, format string, args ...interface{}) error {
	return &Failure{Status: status, Reason: fmt.Sprintf(format, args...)}
}

// errAuditWrite 审计写入失败，整个操作回滚
type errAuditWrite struct{ err error }

func (e *errAuditWrite) Error() string { return "append audit entry: " + e.err.Error() }
func (e *errAuditWrite) Unwrap() error { return e.err }

// call 单次调用的上下文，处理函数通过它补充审计信息
type call struct {
	ctx    context.Context
	tx     *gorm.DB
	req    Request
	svc    *Service
	id     *uint
	detail map[string]interface{}
}

func (c *call) setEntityID(id uint) {
	c.id = &id
}

func (c *call) note(key string, value interface{}) {
	c.detail[key] = value
}

type route struct {
	entity Entity
	op     Operation
}

type handler struct {
	fn func(c *call) (interface{}, error)
	// standalone 为 true 的处理函数自行管理事务（批量导入按记录提交），审计单独写入
	standalone bool
}

// Service 访问层
type Service struct {
	db       *gorm.DB
	auth     *Authenticator
	engine   *lookup.Engine
	pipeline *ingest.Pipeline
	log      zerolog.Logger
	handlers map[route]handler
}

// Option 访问层选项
type Option func(*Service)

// WithStrategy 设置按流水号读取交易时使用的查找策略
func WithStrategy(s lookup.Strategy) Option {
	return func(svc *Service) {
		svc.engine = lookup.NewEngine(svc.db, s)
	}
}

// WithPipeline 设置批量导入使用的流水线
func WithPipeline(p *ingest.Pipeline) Option {
	return func(svc *Service) {
		if p != nil {
			svc.pipeline = p
		}
	}
}

// WithLogger 设置日志
func WithLogger(log zerolog.Logger) Option {
	return func(svc *Service) {
		svc.log = log
	}
}

// New 创建访问层
func New(db *gorm.DB, auth *Authenticator, opts ...Option) *Service {
	s := &Service{
		db:       db,
		auth:     auth,
		engine:   lookup.NewEngine(db, nil),
		pipeline: ingest.New(db),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = s.routes()
	return s
}

func (s *Service) routes() map[route]handler {
	return map[route]handler{
		{EntityTransaction, OpCreate}: {fn: createTransaction},
		{EntityTransaction, OpRead}:   {fn: readTransaction},
		{EntityTransaction, OpUpdate}: {fn: updateTransaction},
		{EntityTransaction, OpDelete}: {fn: deleteTransaction},
		{EntityTransaction, OpIngest}: {fn: ingestTransactions, standalone: true},

		{EntityUser, OpCreate}: {fn: createUser},
		{EntityUser, OpRead}:   {fn: readUser},
		{EntityUser, OpUpdate}: {fn: updateUser},
		{EntityUser, OpDelete}: {fn: deleteUser},

		{EntityCategory, OpCreate}: {fn: createCategory},
		{EntityCategory, OpRead}:   {fn: readCategory},
		{EntityCategory, OpUpdate}: {fn: updateCategory},
		{EntityCategory, OpDelete}: {fn: deleteCategory},

		{EntityLabel, OpCreate}: {fn: createLabel},
		{EntityLabel, OpRead}:   {fn: readLabel},
		{EntityLabel, OpUpdate}: {fn: updateLabel},
		{EntityLabel, OpDelete}: {fn: deleteLabel},

		{EntityTransactionLabel, OpCreate}: {fn: attachLabel},
		{EntityTransactionLabel, OpRead}:   {fn: listTransactionLabels},
		{EntityTransactionLabel, OpDelete}: {fn: detachLabel},

		{EntityAudit, OpRead}: {fn: readAudit},
	}
}

// Do 执行一次访问请求
// 成功时审计记录与操作在同一事务提交；失败或未授权时先回滚，再单独写入审计记录。
// 审计写入失败会使操作回滚并返回 error。
func (s *Service) Do(ctx context.Context, req Request) Response {
	requestID := logger.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	entry := models.AuditEntry{
		RequestID:  requestID,
		Action:     string(req.Operation),
		EntityType: string(req.Entity),
	}
	if req.ClientAddr != "" {
		addr := req.ClientAddr
		entry.ClientAddr = &addr
	}
	if req.ID != 0 {
		id := req.ID
		entry.EntityID = &id
	}
	log := logger.WithFields(logger.FromContext(ctx, s.log), map[string]interface{}{
		"request_id": entry.RequestID,
		"action":     entry.Action,
		"entity":     entry.EntityType,
	})

	actor, ok := s.auth.Authenticate(req.Credential)
	if !ok {
		resp := Response{Status: StatusUnauthorized, Reason: "invalid or missing credential"}
		s.finishFailed(ctx, log, &entry, map[string]interface{}{"error": resp.Reason}, resp)
		return resp
	}
	entry.Actor = &actor
	entry.Authorized = true
	log = logger.WithFields(log, map[string]interface{}{"actor": actor})
	ctx = logger.WithContext(ctx, log)

	h, ok := s.handlers[route{req.Entity, req.Operation}]
	if !ok {
		resp := Response{Status: StatusInvalid, Reason: fmt.Sprintf("unsupported operation %s on %s", req.Operation, req.Entity)}
		s.finishFailed(ctx, log, &entry, map[string]interface{}{"error": resp.Reason}, resp)
		return resp
	}

	if req.Malformed != "" {
		resp := Response{Status: StatusInvalid, Reason: req.Malformed}
		s.finishFailed(ctx, log, &entry, map[string]interface{}{"error": resp.Reason}, resp)
		return resp
	}

	c := &call{ctx: ctx, req: req, svc: s, id: entry.EntityID, detail: map[string]interface{}{}}
	var data interface{}
	var err error
	if h.standalone {
		c.tx = s.db.WithContext(ctx)
		data, err = h.fn(c)
		if err == nil {
			err = s.appendAudit(c.tx, &entry, c, StatusOK)
		}
	} else {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c.tx = tx
			var hErr error
			if data, hErr = h.fn(c); hErr != nil {
				return hErr
			}
			return s.appendAudit(tx, &entry, c, StatusOK)
		})
	}

	if err == nil {
		log.Info().Msg("访问成功")
		return Response{Status: StatusOK, Data: data}
	}

	resp := toResponse(err)
	c.detail["error"] = resp.Reason
	if !errors.As(err, new(*Failure)) {
		// 内部错误细节只进审计，不返回给调用方
		c.detail["error"] = err.Error()
		resp.Reason = "internal error"
	}
	entry.EntityID = c.id
	s.finishFailed(ctx, log, &entry, c.detail, resp)
	return resp
}

// appendAudit 在给定事务内写入审计记录
func (s *Service) appendAudit(tx *gorm.DB, entry *models.AuditEntry, c *call, status Status) error {
	entry.Status = string(status)
	entry.EntityID = c.id
	detail, err := encodeDetail(c.detail)
	if err != nil {
		return &errAuditWrite{err}
	}
	entry.Detail = detail
	if err := tx.Create(entry).Error; err != nil {
		return &errAuditWrite{err}
	}
	return nil
}

// finishFailed 操作已回滚，单独写入失败审计
func (s *Service) finishFailed(ctx context.Context, log zerolog.Logger, entry *models.AuditEntry, detail map[string]interface{}, resp Response) {
	entry.ID = 0
	entry.Status = string(resp.Status)
	if encoded, err := encodeDetail(detail); err == nil {
		entry.Detail = encoded
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Error().Err(err).Str("status", entry.Status).Msg("写入审计日志失败")
	}
	ev := log.Warn()
	if resp.Status == StatusError {
		ev = log.Error()
	}
	ev.Str("status", string(resp.Status)).Str("reason", resp.Reason).Msg("访问失败")
}

func toResponse(err error) Response {
	var f *Failure
	var auditErr *errAuditWrite
	switch {
	case errors.As(err, &f):
		return Response{Status: f.Status, Reason: f.Reason}
	case errors.As(err, &auditErr):
		return Response{Status: StatusError}
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, lookup.ErrNotFound):
		return Response{Status: StatusNotFound, Reason: "record not found"}
	}
	switch database.Classify(err) {
	case database.ErrDuplicate:
		return Response{Status: StatusConflict, Reason: "duplicate key"}
	case database.ErrForeignKey:
		return Response{Status: StatusConflict, Reason: "referenced by another record"}
	default:
		return Response{Status: StatusError}
	}
}

func encodeDetail(detail map[string]interface{}) (datatypes.JSON, error) {
	if len(detail) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// decodePayload 将任意载荷解码为目标结构体
func decodePayload(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return fail(StatusInvalid, "missing payload")
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fail(StatusInvalid, "malformed payload: %v", err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fail(StatusInvalid, "malformed payload: %v", err)
	}
	return nil
}

// paginate 规范化分页参数
func paginate(f Filter) (page, size int) {
	page, size = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// listPage 统计总数后按页查询，preloads 只作用于分页查询
func listPage(q *gorm.DB, f Filter, order string, out interface{}, preloads ...string) (*Page, error) {
	page, size := paginate(f)
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	find := q.Order(order)
	if f.Unpaged {
		page, size = 1, int(total)
	} else {
		find = find.Offset((page - 1) * size).Limit(size)
	}
	for _, p := range preloads {
		find = find.Preload(p)
	}
	if err := find.Find(out).Error; err != nil {
		return nil, err
	}
	return &Page{Total: total, Page: page, PageSize: size, List: out}, nil
}

// change 记录字段的旧值和新值
func change(changes map[string]interface{}, field string, from, to interface{}) {
	changes[field] = map[string]interface{}{"old": from, "new": to}
}
