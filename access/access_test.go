package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"momo/config"
	"momo/database"
	"momo/ingest"
	"momo/logger"
	"momo/lookup"
	"momo/models"
	"momo/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testToken = "test-secret"

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	auth := NewAuthenticator([]config.ClientConfig{{Name: "tester", Token: testToken}})
	return New(db, auth, WithStrategy(lookup.Binary)), db
}

func auditEntries(t *testing.T, db *gorm.DB) []models.AuditEntry {
	t.Helper()
	var list []models.AuditEntry
	require.NoError(t, db.Order("id ASC").Find(&list).Error)
	return list
}

func detailOf(t *testing.T, e models.AuditEntry) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	if len(e.Detail) > 0 {
		require.NoError(t, json.Unmarshal(e.Detail, &out))
	}
	return out
}

func sampleRecord(ref string) models.RawRecord {
	return models.RawRecord{
		Ref:           ref,
		SenderPhone:   "250788000001",
		SenderName:    "Alice",
		ReceiverPhone: "250788000002",
		Category:      "P2P Transfer",
		Amount:        "1000",
		Fee:           "10",
		Timestamp:     "2026-01-01 10:00:00",
	}
}

func TestDo_UnauthorizedIsAudited(t *testing.T) {
	svc, db := newService(t)

	for _, cred := range []string{"", "wrong"} {
		resp := svc.Do(context.Background(), Request{
			Operation:  OpCreate,
			Entity:     EntityLabel,
			Payload:    NameInput{Name: "food"},
			Credential: cred,
			ClientAddr: "10.0.0.1",
		})
		assert.Equal(t, StatusUnauthorized, resp.Status)
	}

	var labels int64
	db.Model(&models.Label{}).Count(&labels)
	assert.Zero(t, labels)

	entries := auditEntries(t, db)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Nil(t, e.Actor)
		assert.False(t, e.Authorized)
		assert.Equal(t, "unauthorized", e.Status)
		assert.Equal(t, "create", e.Action)
		assert.Equal(t, "label", e.EntityType)
		require.NotNil(t, e.ClientAddr)
		assert.Equal(t, "10.0.0.1", *e.ClientAddr)
		assert.NotEmpty(t, e.RequestID)
	}
}

func TestDo_MalformedRequestIsInvalidAfterAuth(t *testing.T) {
	svc, db := newService(t)

	resp := svc.Do(context.Background(), Request{
		Operation: OpDelete, Entity: EntityUser, Malformed: "invalid id: x",
	})
	assert.Equal(t, StatusUnauthorized, resp.Status)

	resp = svc.Do(context.Background(), Request{
		Operation: OpDelete, Entity: EntityUser, Malformed: "invalid id: x", Credential: testToken,
	})
	assert.Equal(t, StatusInvalid, resp.Status)
	assert.Equal(t, "invalid id: x", resp.Reason)

	entries := auditEntries(t, db)
	require.Len(t, entries, 2)
	assert.Equal(t, string(StatusUnauthorized), entries[0].Status)
	assert.Equal(t, string(StatusInvalid), entries[1].Status)
	assert.True(t, entries[1].Authorized)
	assert.Equal(t, "invalid id: x", detailOf(t, entries[1])["error"])
}

func TestDo_EverySuccessAppendsOneEntry(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	resp := svc.Do(ctx, Request{Operation: OpCreate, Entity: EntityLabel, Payload: NameInput{Name: "food"}, Credential: testToken})
	require.Equal(t, StatusOK, resp.Status, resp.Reason)
	label := resp.Data.(*models.Label)

	reqs := []Request{
		{Operation: OpRead, Entity: EntityLabel, ID: label.ID},
		{Operation: OpRead, Entity: EntityLabel},
		{Operation: OpUpdate, Entity: EntityLabel, ID: label.ID, Payload: NameInput{Name: "groceries"}},
		{Operation: OpRead, Entity: EntityAudit},
		{Operation: OpDelete, Entity: EntityLabel, ID: label.ID},
	}
	for _, req := range reqs {
		req.Credential = "Bearer " + testToken
		resp := svc.Do(ctx, req)
		require.Equal(t, StatusOK, resp.Status, "%s %s: %s", req.Operation, req.Entity, resp.Reason)
	}

	entries := auditEntries(t, db)
	require.Len(t, entries, 1+len(reqs))
	for _, e := range entries {
		assert.Equal(t, "ok", e.Status)
		require.NotNil(t, e.Actor)
		assert.Equal(t, "tester", *e.Actor)
		assert.True(t, e.Authorized)
	}

	update := entries[3]
	assert.Equal(t, "update", update.Action)
	require.NotNil(t, update.EntityID)
	assert.Equal(t, label.ID, *update.EntityID)
	changes := detailOf(t, update)["changes"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"old": "food", "new": "groceries"}, changes["name"])
}

func TestDo_ReadByRefUsesLookupEngine(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	resp := svc.Do(ctx, Request{
		Operation:  OpIngest,
		Entity:     EntityTransaction,
		Payload:    []models.RawRecord{sampleRecord("TXN2"), sampleRecord("TXN1"), sampleRecord("TXN1")},
		Credential: testToken,
	})
	require.Equal(t, StatusOK, resp.Status, resp.Reason)
	batch := resp.Data.(ingest.BatchResult)
	assert.Equal(t, 2, batch.Created)
	assert.Equal(t, 1, batch.Skipped)

	resp = svc.Do(ctx, Request{Operation: OpRead, Entity: EntityTransaction, Ref: "TXN1", Credential: testToken})
	require.Equal(t, StatusOK, resp.Status, resp.Reason)
	tx := resp.Data.(*models.Transaction)
	assert.Equal(t, "TXN1", tx.TxRef)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, tx.Sender)
	assert.Equal(t, "Alice", tx.Sender.FullName)

	resp = svc.Do(ctx, Request{Operation: OpRead, Entity: EntityTransaction, Ref: "TXN404", Credential: testToken})
	assert.Equal(t, StatusNotFound, resp.Status)

	entries := auditEntries(t, db)
	require.Len(t, entries, 3)
	assert.Equal(t, "ingest", entries[0].Action)
	assert.Equal(t, float64(2), detailOf(t, entries[0])["created"])
	assert.Equal(t, "binary", detailOf(t, entries[1])["strategy"])
	require.NotNil(t, entries[1].EntityID)
	assert.Equal(t, tx.ID, *entries[1].EntityID)
	assert.Equal(t, "not_found", entries[2].Status)
}

func TestDo_UsesRequestScopedLogger(t *testing.T) {
	svc, db := newService(t)
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.New(buf, "json", "debug"))
	ctx = logger.WithRequestID(ctx, "req-42")

	bad := sampleRecord("TXN9")
	bad.Amount = "-5"
	resp := svc.Do(ctx, Request{
		Operation:  OpIngest,
		Entity:     EntityTransaction,
		Payload:    []models.RawRecord{bad},
		Credential: testToken,
	})
	require.Equal(t, StatusOK, resp.Status, resp.Reason)

	entries := auditEntries(t, db)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].RequestID)

	var rejected map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		assert.Equal(t, "req-42", m["request_id"])
		if m["tx_ref"] == "TXN9" {
			rejected = m
		}
	}
	require.NotNil(t, rejected)
	assert.Equal(t, "tester", rejected["actor"])
	assert.Equal(t, "transaction", rejected["entity"])
	assert.Equal(t, "rejected", rejected["outcome"])
}

func TestDo_DeleteReferencedUserIsConflict(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	resp := svc.Do(ctx, Request{Operation: OpCreate, Entity: EntityTransaction, Payload: sampleRecord("TXN1"), Credential: testToken})
	require.Equal(t, StatusOK, resp.Status, resp.Reason)
	tx := resp.Data.(*models.Transaction)

	resp = svc.Do(ctx, Request{Operation: OpDelete, Entity: EntityUser, ID: tx.SenderID, Credential: testToken})
	assert.Equal(t, StatusConflict, resp.Status)

	var users, txs int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Transaction{}).Count(&txs)
	assert.Equal(t, int64(2), users)
	assert.Equal(t, int64(1), txs)

	entries := auditEntries(t, db)
	require.Len(t, entries, 2)
	failed := entries[1]
	assert.Equal(t, "delete", failed.Action)
	assert.Equal(t, "conflict", failed.Status)
	assert.True(t, failed.Authorized)
	assert.Contains(t, detailOf(t, failed)["error"], "referenced")
}

func TestDo_CreateConflictsAndValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	do := func(req Request) Response {
		req.Credential = testToken
		return svc.Do(ctx, req)
	}

	require.Equal(t, StatusOK, do(Request{Operation: OpCreate, Entity: EntityTransaction, Payload: sampleRecord("TXN1")}).Status)
	assert.Equal(t, StatusConflict, do(Request{Operation: OpCreate, Entity: EntityTransaction, Payload: sampleRecord("TXN1")}).Status)

	bad := sampleRecord("TXN2")
	bad.Amount = "-5"
	resp := do(Request{Operation: OpCreate, Entity: EntityTransaction, Payload: bad})
	assert.Equal(t, StatusInvalid, resp.Status)
	assert.Contains(t, resp.Reason, "invalid_amount")

	require.Equal(t, StatusOK, do(Request{Operation: OpCreate, Entity: EntityUser, Payload: map[string]string{"phone": "250 788 000 009"}}).Status)
	assert.Equal(t, StatusConflict, do(Request{Operation: OpCreate, Entity: EntityUser, Payload: map[string]string{"phone": "250788000009"}}).Status)
	assert.Equal(t, StatusInvalid, do(Request{Operation: OpCreate, Entity: EntityUser, Payload: map[string]string{"full_name": "x"}}).Status)

	require.Equal(t, StatusOK, do(Request{Operation: OpCreate, Entity: EntityCategory, Payload: NameInput{Name: "Airtime"}}).Status)
	assert.Equal(t, StatusConflict, do(Request{Operation: OpCreate, Entity: EntityCategory, Payload: NameInput{Name: "Airtime"}}).Status)
	assert.Equal(t, StatusInvalid, do(Request{Operation: OpCreate, Entity: EntityCategory, Payload: json.RawMessage(`{"name":`)}).Status)

	assert.Equal(t, StatusNotFound, do(Request{Operation: OpRead, Entity: EntityCategory, ID: 999}).Status)
	assert.Equal(t, StatusInvalid, do(Request{Operation: OpUpdate, Entity: EntityAudit, ID: 1}).Status)
}

func TestDo_UpdateTransaction(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	resp := svc.Do(ctx, Request{Operation: OpCreate, Entity: EntityTransaction, Payload: sampleRecord("TXN1"), Credential: testToken})
	require.Equal(t, StatusOK, resp.Status)
	id := resp.Data.(*models.Transaction).ID

	resp = svc.Do(ctx, Request{Operation: OpUpdate, Entity: EntityTransaction, ID: id, Credential: testToken,
		Payload: map[string]interface{}{"tx_ref": "TXN9"}})
	assert.Equal(t, StatusInvalid, resp.Status)

	resp = svc.Do(ctx, Request{Operation: OpUpdate, Entity: EntityTransaction, ID: id, Credential: testToken,
		Payload: map[string]interface{}{"category_id": 999}})
	assert.Equal(t, StatusConflict, resp.Status)

	resp = svc.Do(ctx, Request{Operation: OpUpdate, Entity: EntityTransaction, ID: id, Credential: testToken,
		Payload: map[string]interface{}{"fee": "-1"}})
	assert.Equal(t, StatusInvalid, resp.Status)

	resp = svc.Do(ctx, Request{Operation: OpUpdate, Entity: EntityTransaction, ID: id, Credential: testToken,
		Payload: map[string]interface{}{"amount": "1500", "description": "rent"}})
	require.Equal(t, StatusOK, resp.Status, resp.Reason)
	tx := resp.Data.(*models.Transaction)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "rent", tx.Description)

	entries := auditEntries(t, db)
	last := entries[len(entries)-1]
	changes := detailOf(t, last)["changes"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"old": "1000", "new": "1500"}, changes["amount"])
	assert.Contains(t, changes, "description")
}

func TestDo_TransactionLabels(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	do := func(req Request) Response {
		req.Credential = testToken
		return svc.Do(ctx, req)
	}

	txID := do(Request{Operation: OpCreate, Entity: EntityTransaction, Payload: sampleRecord("TXN1")}).Data.(*models.Transaction).ID
	labelID := do(Request{Operation: OpCreate, Entity: EntityLabel, Payload: NameInput{Name: "rent"}}).Data.(*models.Label).ID
	attach := LabelAttach{LabelID: labelID}

	require.Equal(t, StatusOK, do(Request{Operation: OpCreate, Entity: EntityTransactionLabel, ID: txID, Payload: attach}).Status)
	assert.Equal(t, StatusConflict, do(Request{Operation: OpCreate, Entity: EntityTransactionLabel, ID: txID, Payload: attach}).Status)
	assert.Equal(t, StatusNotFound, do(Request{Operation: OpCreate, Entity: EntityTransactionLabel, ID: txID, Payload: LabelAttach{LabelID: 999}}).Status)
	assert.Equal(t, StatusNotFound, do(Request{Operation: OpCreate, Entity: EntityTransactionLabel, ID: 999, Payload: attach}).Status)

	resp := do(Request{Operation: OpRead, Entity: EntityTransactionLabel, ID: txID})
	require.Equal(t, StatusOK, resp.Status)
	labels := resp.Data.([]models.Label)
	require.Len(t, labels, 1)
	assert.Equal(t, "rent", labels[0].Name)

	assert.Equal(t, StatusConflict, do(Request{Operation: OpDelete, Entity: EntityLabel, ID: labelID}).Status)

	require.Equal(t, StatusOK, do(Request{Operation: OpDelete, Entity: EntityTransactionLabel, ID: txID, Payload: attach}).Status)
	assert.Equal(t, StatusNotFound, do(Request{Operation: OpDelete, Entity: EntityTransactionLabel, ID: txID, Payload: attach}).Status)

	require.Equal(t, StatusOK, do(Request{Operation: OpCreate, Entity: EntityTransactionLabel, ID: txID, Payload: attach}).Status)
	require.Equal(t, StatusOK, do(Request{Operation: OpDelete, Entity: EntityTransaction, ID: txID}).Status)

	var links int64
	db.Model(&models.TransactionLabel{}).Count(&links)
	assert.Zero(t, links)
	assert.Equal(t, StatusOK, do(Request{Operation: OpDelete, Entity: EntityLabel, ID: labelID}).Status)
}

func TestDo_AuditFailureRollsBackOperation(t *testing.T) {
	svc, db := newService(t)
	require.NoError(t, db.Exec(`CREATE TRIGGER reject_ok_audit BEFORE INSERT ON audit_entries
		WHEN NEW.status = 'ok' BEGIN SELECT RAISE(ABORT, 'audit disk full'); END`).Error)

	resp := svc.Do(context.Background(), Request{Operation: OpCreate, Entity: EntityLabel, Payload: NameInput{Name: "food"}, Credential: testToken})
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "internal error", resp.Reason)

	var labels int64
	db.Model(&models.Label{}).Count(&labels)
	assert.Zero(t, labels)

	entries := auditEntries(t, db)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].Status)
	assert.Contains(t, detailOf(t, entries[0])["error"], "audit disk full")
}

func TestDo_AuditReadFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	svc.Do(ctx, Request{Operation: OpCreate, Entity: EntityLabel, Payload: NameInput{Name: "a"}, Credential: testToken})
	svc.Do(ctx, Request{Operation: OpCreate, Entity: EntityLabel, Payload: NameInput{Name: "b"}, Credential: "nope"})
	svc.Do(ctx, Request{Operation: OpRead, Entity: EntityLabel, Credential: testToken})

	resp := svc.Do(ctx, Request{Operation: OpRead, Entity: EntityAudit, Credential: testToken,
		Filter: Filter{Status: "unauthorized"}})
	require.Equal(t, StatusOK, resp.Status)
	page := resp.Data.(*Page)
	assert.Equal(t, int64(1), page.Total)

	resp = svc.Do(ctx, Request{Operation: OpRead, Entity: EntityAudit, Credential: testToken,
		Filter: Filter{Action: "create", EntityType: "label", PageSize: 1}})
	require.Equal(t, StatusOK, resp.Status)
	page = resp.Data.(*Page)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, *page.List.(*[]models.AuditEntry), 1)
}

func TestToResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"failure", fail(StatusInvalid, "bad"), StatusInvalid},
		{"audit write", &errAuditWrite{errors.New("disk full")}, StatusError},
		{"record not found", gorm.ErrRecordNotFound, StatusNotFound},
		{"lookup miss", fmt.Errorf("find: %w", lookup.ErrNotFound), StatusNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, StatusConflict},
		{"wrapped foreign key", fmt.Errorf("delete: %w", database.ErrForeignKey), StatusConflict},
		{"other", errors.New("boom"), StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toResponse(tt.err).Status)
		})
	}
}
