package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kitstock/internal/authorization"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/document"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/observability"
	orderdomain "github.com/smallbiznis/kitstock/internal/order/domain"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderService struct {
	orderdomain.Service

	approveResult *document.ApprovalResult
	approveErr    error
	createErr     error
	submitErr     error

	lastActor  string
	lastClient string
}

func (f *fakeOrderService) Approve(_ context.Context, actor string, _ string) (*document.ApprovalResult, error) {
	f.lastActor = actor
	return f.approveResult, f.approveErr
}

func (f *fakeOrderService) Create(_ context.Context, actor string, _ orderdomain.CreateRequest) (*orderdomain.Response, error) {
	f.lastActor = actor
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &orderdomain.Response{ID: "1", Number: "PED-2026-0001", Status: orderdomain.StatusPending}, nil
}

func (f *fakeOrderService) List(context.Context, orderdomain.ListRequest) (orderdomain.ListResponse, error) {
	return orderdomain.ListResponse{}, nil
}

func (f *fakeOrderService) SubmitCatalogOrder(_ context.Context, req orderdomain.CatalogOrderRequest) (*orderdomain.Response, error) {
	f.lastClient = req.ClientKey
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &orderdomain.Response{ID: "2", Number: "PED-2026-0002", Origin: orderdomain.OriginCatalog}, nil
}

type fakeAuthz struct {
	deny map[string]bool
}

func (f *fakeAuthz) Authorize(_ context.Context, _ string, _ string, _ string, action string) error {
	if f.deny[action] {
		return authorization.ErrForbidden
	}
	return nil
}

func (f *fakeAuthz) AssignRole(context.Context, int64, int64, string) error {
	return nil
}

func newTestServer(t *testing.T, orders *fakeOrderService, authz *fakeAuthz, defaultOrg int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if authz == nil {
		authz = &fakeAuthz{}
	}
	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:      engine,
		Cfg:      config.Config{DefaultOrgID: defaultOrg},
		AuthzSvc: authz,
		OrderSvc: orders,
	})
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

var staffHeaders = map[string]string{HeaderOrg: "10", HeaderActor: "7"}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestApproveOrderSuccess(t *testing.T) {
	orders := &fakeOrderService{approveResult: &document.ApprovalResult{Success: true, Status: "confirmed", Number: "PED-2026-0001"}}
	engine := newTestServer(t, orders, nil, 0)

	rec := doRequest(engine, http.MethodPost, "/api/orders/123/approve", nil, staffHeaders)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user:7", orders.lastActor)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestApproveOrderShortageReturnsStructuredConflict(t *testing.T) {
	orders := &fakeOrderService{approveResult: &document.ApprovalResult{
		Success: false,
		Status:  "pending",
		Number:  "PED-2026-0001",
		Insufficient: []inventorydomain.Shortage{
			{ProductID: "2", Code: "P2", Required: 12, Available: 9, Missing: 3},
		},
	}}
	engine := newTestServer(t, orders, nil, 0)

	rec := doRequest(engine, http.MethodPost, "/api/orders/123/approve", nil, staffHeaders)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Data document.ApprovalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Success)
	assert.Equal(t, "pending", resp.Data.Status)
	require.Len(t, resp.Data.Insufficient, 1)
	assert.Equal(t, int64(12), resp.Data.Insufficient[0].Required)
	assert.Equal(t, int64(9), resp.Data.Insufficient[0].Available)
}

func TestApproveOrderErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"already approved", orderdomain.ErrAlreadyApproved, http.StatusConflict, "already_approved"},
		{"rejected order", orderdomain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{"missing", orderdomain.ErrNotFound, http.StatusNotFound, ""},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, ""},
		{"bad id", orderdomain.ErrInvalidID, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestServer(t, &fakeOrderService{approveErr: tc.err}, nil, 0)

			rec := doRequest(engine, http.MethodPost, "/api/orders/123/approve", nil, staffHeaders)

			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, decodeError(t, rec).Code)
			}
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	engine := newTestServer(t, &fakeOrderService{createErr: document.ErrEmptyItems}, nil, 0)

	rec := doRequest(engine, http.MethodPost, "/api/orders", map[string]any{"items": []any{}}, staffHeaders)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "empty_items", payload.Errors[0].Code)
}

func TestAPIRequiresActor(t *testing.T) {
	engine := newTestServer(t, &fakeOrderService{}, nil, 0)

	rec := doRequest(engine, http.MethodGet, "/api/orders", nil, map[string]string{HeaderOrg: "10"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRequiresOrganization(t *testing.T) {
	engine := newTestServer(t, &fakeOrderService{}, nil, 0)

	rec := doRequest(engine, http.MethodGet, "/api/orders", nil, map[string]string{HeaderActor: "7"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_organization", decodeError(t, rec).Errors[0].Code)
}

func TestRouteLevelAuthorization(t *testing.T) {
	engine := newTestServer(t, &fakeOrderService{}, &fakeAuthz{deny: map[string]bool{authorization.ActionOrderView: true}}, 0)

	rec := doRequest(engine, http.MethodGet, "/api/orders", nil, staffHeaders)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCatalogOrderUsesDefaultOrganization(t *testing.T) {
	orders := &fakeOrderService{}
	engine := newTestServer(t, orders, nil, 10)

	rec := doRequest(engine, http.MethodPost, "/public/catalog/orders", map[string]any{
		"customer": map[string]any{"name": "Ana", "document": "123"},
		"items":    []any{map[string]any{"kit_id": "5", "quantity": 1}},
	}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, orders.lastClient)
}

func TestCatalogOrderRateLimited(t *testing.T) {
	engine := newTestServer(t, &fakeOrderService{submitErr: orderdomain.ErrRateLimited}, nil, 10)

	rec := doRequest(engine, http.MethodPost, "/public/catalog/orders", map[string]any{"items": []any{}}, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMapErrorDistinguishesDomainSentinels(t *testing.T) {
	status, payload := mapError(productdomain.ErrDuplicateCode)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_code", payload.Code)

	status, _ = mapError(inventorydomain.ErrInsufficientStock)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = mapError(inventorydomain.ErrKitNotFound)
	assert.Equal(t, http.StatusNotFound, status)

	status, payload = mapError(inventorydomain.ErrKitWithoutComponents)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "kit_without_components", payload.Errors[0].Code)

	status, payload = mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", payload.Type)

	errType, code := classifyErrorForLog(orderdomain.ErrAlreadyApproved)
	assert.Equal(t, "conflict", errType)
	assert.Equal(t, "already_approved", code)
}

func TestUnknownRoute(t *testing.T) {
	engine := newTestServer(t, &fakeOrderService{}, nil, 0)

	rec := doRequest(engine, http.MethodGet, "/nope", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
