package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"momo/access"
	"momo/config"
	"momo/middleware"
	"momo/models"
	"momo/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testToken = "api-secret"

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	svc := access.New(db, access.NewAuthenticator([]config.ClientConfig{{Name: "api-client", Token: testToken}}))
	h := NewHandler(svc)

	r := gin.New()
	v1 := r.Group("/api/v1", middleware.BearerToken())
	v1.GET("/transactions", h.ListTransactions)
	v1.POST("/transactions", h.CreateTransaction)
	v1.GET("/transactions/ref/:ref", h.GetTransactionByRef)
	v1.GET("/transactions/:id", h.GetTransaction)
	v1.PUT("/transactions/:id", h.UpdateTransaction)
	v1.DELETE("/transactions/:id", h.DeleteTransaction)
	v1.POST("/transactions/:id/labels", h.AttachLabel)
	v1.DELETE("/transactions/:id/labels/:label_id", h.DetachLabel)
	v1.GET("/users/:id", h.Get(access.EntityUser))
	v1.DELETE("/users/:id", h.Delete(access.EntityUser))
	v1.POST("/labels", h.Create(access.EntityLabel))
	v1.GET("/labels", h.List(access.EntityLabel))
	v1.GET("/audit", h.ListAudit)
	v1.POST("/ingest", h.Ingest)
	v1.GET("/export/csv", h.ExportCSV)
	return r, db
}

func doJSON(r *gin.Engine, method, path, body, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

const txnBody = `{"tx_ref":"TXN1","sender_phone":"250788000001","receiver_phone":"250788000002",
	"category":"P2P Transfer","amount":1000,"fee":"10","timestamp":"2026-01-01 10:00:00"}`

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(access.StatusOK))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(access.StatusInvalid))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(access.StatusUnauthorized))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(access.StatusNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(access.StatusConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(access.StatusError))
}

func TestTransactions_CRUD(t *testing.T) {
	r, _ := setupRouter(t)

	w, resp := doJSON(r, "POST", "/api/v1/transactions", txnBody, testToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "TXN1", data["tx_ref"])
	id := int(data["id"].(float64))

	w, _ = doJSON(r, "POST", "/api/v1/transactions", txnBody, testToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = doJSON(r, "GET", "/api/v1/transactions/ref/TXN1", "", testToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", resp["data"].(map[string]interface{})["amount"])

	w, _ = doJSON(r, "GET", "/api/v1/transactions/ref/NOPE", "", testToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	path := "/api/v1/transactions/" + itoa(id)
	w, _ = doJSON(r, "PUT", path, `{"tx_ref":"OTHER"}`, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = doJSON(r, "PUT", path, `{"amount":"1200.50"}`, testToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1200.5", resp["data"].(map[string]interface{})["amount"])

	w, resp = doJSON(r, "GET", "/api/v1/transactions?page_size=5", "", testToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["data"].(map[string]interface{})["total"])

	w, _ = doJSON(r, "DELETE", path, "", testToken)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(r, "GET", path, "", testToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnauthorizedRequestsAreAudited(t *testing.T) {
	r, db := setupRouter(t)

	w, resp := doJSON(r, "POST", "/api/v1/transactions", txnBody, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", resp["status"])

	w, _ = doJSON(r, "GET", "/api/v1/transactions/1", "", "bad-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var entries []models.AuditEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, "create", entries[0].Action)
	assert.Equal(t, "read", entries[1].Action)
	for _, e := range entries {
		assert.Nil(t, e.Actor)
		assert.False(t, e.Authorized)
		require.NotNil(t, e.ClientAddr)
	}
}

func TestDeleteReferencedUser(t *testing.T) {
	r, _ := setupRouter(t)

	w, resp := doJSON(r, "POST", "/api/v1/transactions", txnBody, testToken)
	require.Equal(t, http.StatusCreated, w.Code)
	sender := int(resp["data"].(map[string]interface{})["sender_id"].(float64))

	w, _ = doJSON(r, "DELETE", "/api/v1/users/"+itoa(sender), "", testToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(r, "GET", "/api/v1/users/"+itoa(sender), "", testToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(r, "GET", "/api/v1/users/abc", "", testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLabelsAndAuditQuery(t *testing.T) {
	r, _ := setupRouter(t)

	w, resp := doJSON(r, "POST", "/api/v1/transactions", txnBody, testToken)
	require.Equal(t, http.StatusCreated, w.Code)
	txID := itoa(int(resp["data"].(map[string]interface{})["id"].(float64)))

	w, resp = doJSON(r, "POST", "/api/v1/labels", `{"name":"rent"}`, testToken)
	require.Equal(t, http.StatusCreated, w.Code)
	labelID := int(resp["data"].(map[string]interface{})["id"].(float64))

	w, _ = doJSON(r, "POST", "/api/v1/labels", `{"name":"rent"}`, testToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(r, "POST", "/api/v1/transactions/"+txID+"/labels", `{"label_id":`+itoa(labelID)+`}`, testToken)
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = doJSON(r, "DELETE", "/api/v1/transactions/"+txID+"/labels/"+itoa(labelID), "", testToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(r, "GET", "/api/v1/audit?action=create&entity_type=label", "", testToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["data"].(map[string]interface{})["total"])

	w, _ = doJSON(r, "GET", "/api/v1/audit?since=yesterday", "", testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest(t *testing.T) {
	r, _ := setupRouter(t)

	body := `[` + txnBody + `,{"tx_ref":"TXN2","amount":"-1"},` + txnBody + `]`
	w, resp := doJSON(r, "POST", "/api/v1/ingest", body, testToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["created"])
	assert.Equal(t, float64(1), data["rejected"])
	assert.Equal(t, float64(1), data["skipped"])
	assert.Len(t, data["results"], 3)
}

func TestIngest_CSVUpload(t *testing.T) {
	r, _ := setupRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sample.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("tx_ref,sender_phone,receiver_phone,category,amount,fee,timestamp\n" +
		"TXN7,250788000001,250788000002,Airtime,500,0,2026-01-02 08:00:00\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["data"].(map[string]interface{})["created"])
}

func TestMalformedRequestsAreAudited(t *testing.T) {
	r, db := setupRouter(t)

	w, resp := doJSON(r, "DELETE", "/api/v1/transactions/abc", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", resp["status"])

	w, resp = doJSON(r, "DELETE", "/api/v1/transactions/abc", "", testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", resp["status"])
	assert.Equal(t, "invalid id: abc", resp["message"])

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest("POST", "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var entries []models.AuditEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 3)
	assert.Equal(t, "unauthorized", entries[0].Status)
	assert.Nil(t, entries[0].Actor)
	assert.Equal(t, "delete", entries[1].Action)
	assert.Equal(t, "invalid", entries[1].Status)
	assert.Nil(t, entries[1].EntityID)
	require.NotNil(t, entries[1].Actor)
	assert.Equal(t, "api-client", *entries[1].Actor)
	assert.Equal(t, "ingest", entries[2].Action)
	assert.Equal(t, "invalid", entries[2].Status)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
