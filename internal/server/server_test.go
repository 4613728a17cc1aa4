package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/and161185/servicecenter/internal/auth"
	"github.com/and161185/servicecenter/internal/config"
	"github.com/and161185/servicecenter/internal/deps"
	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/metrics"
	"github.com/and161185/servicecenter/internal/mocks"
	"github.com/and161185/servicecenter/internal/model"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testUserID = "user-1"

type testEnv struct {
	srv      *Server
	router   http.Handler
	orders   *mocks.MockOrderService
	catalog  *mocks.MockCatalogService
	identity *mocks.MockIdentityService
	health   *mocks.MockHealthChecker
	token    string
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	env := &testEnv{
		orders:   mocks.NewMockOrderService(ctrl),
		catalog:  mocks.NewMockCatalogService(ctrl),
		identity: mocks.NewMockIdentityService(ctrl),
		health:   mocks.NewMockHealthChecker(ctrl),
	}

	logger := zaptest.NewLogger(t)
	cfg := &config.Config{Logger: logger.Sugar()}
	deps := &deps.Deps{
		TokenManager: auth.NewTokenManager("testsecret", time.Hour),
		Logger:       logger.Sugar(),
		Metrics:      metrics.NewServerMetrics(),
	}

	env.srv = NewServer(env.orders, env.catalog, env.identity, env.health, cfg, deps)
	env.router = env.srv.buildRouter()

	token, _, err := deps.TokenManager.GenerateToken(testUserID)
	require.NoError(t, err)
	env.token = token

	env.identity.EXPECT().
		GetProfile(gomock.Any(), testUserID).
		Return(model.UserProfile{ID: testUserID, Email: "master@example.com"}, nil).
		AnyTimes()

	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func sampleOrder() model.Order {
	return model.Order{
		ID:          "order-1",
		OrderNumber: 1,
		DeviceType:  model.DeviceSmartphone,
		DeviceModel: "iPhone 13",
		ClientName:  "Иван Петров",
		ClientPhone: "+79991234567",
		Prepayment:  decimal.NewFromInt(1000),
		Status:      model.StatusNew,
		Services: []model.OrderService{
			{ID: "line-1", Type: model.TypeService, Name: "Замена экрана", Price: decimal.NewFromInt(5000), Quantity: 1},
		},
	}
}

func TestRegisterHandler(t *testing.T) {
	env := setup(t)

	env.identity.EXPECT().
		Register(gomock.Any(), "master@example.com", "secret1", "Мастер").
		Return(model.UserProfile{ID: "user-2", Email: "master@example.com"}, auth.Session{Token: "tok", UserID: "user-2"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"master@example.com","password":"secret1","display_name":"Мастер"}`))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "Bearer tok", rr.Header().Get("Authorization"))

	body := decodeBody(t, rr)
	require.Equal(t, "user-2", body["user"].(map[string]any)["id"])
}

func TestRegisterHandlerDuplicateEmail(t *testing.T) {
	env := setup(t)

	env.identity.EXPECT().
		Register(gomock.Any(), "master@example.com", "secret1", "").
		Return(model.UserProfile{}, auth.Session{}, fmt.Errorf("create user: %w", errs.ErrEmailAlreadyExists))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"master@example.com","password":"secret1"}`))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginHandler(t *testing.T) {
	env := setup(t)

	env.identity.EXPECT().
		Login(gomock.Any(), "master@example.com", "secret1").
		Return(auth.Session{Token: "tok", UserID: testUserID}, nil)
	env.identity.EXPECT().
		Login(gomock.Any(), "master@example.com", "wrong").
		Return(auth.Session{}, errs.ErrInvalidCredentials)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"email":"master@example.com","password":"secret1"}`, http.StatusOK},
		{"wrong password", `{"email":"master@example.com","password":"wrong"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"master@example.com"}`, http.StatusBadRequest},
		{"malformed", `{"email":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)

			require.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	env := setup(t)

	env.identity.EXPECT().Logout(gomock.Any(), env.token).Return(nil)

	rr := env.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setup(t)

	for _, path := range []string{"/api/orders", "/api/services", "/api/profile"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestProfileHandlers(t *testing.T) {
	env := setup(t)

	rr := env.do(t, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "master@example.com", decodeBody(t, rr)["email"])

	name := "Пётр"
	env.identity.EXPECT().
		UpdateProfile(gomock.Any(), testUserID, model.ProfilePatch{FirstName: &name}).
		Return(model.UserProfile{ID: testUserID, Email: "master@example.com", FirstName: name}, nil)

	rr = env.do(t, http.MethodPatch, "/api/profile", `{"first_name":"Пётр"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, name, decodeBody(t, rr)["first_name"])

	// email is fixed at registration
	rr = env.do(t, http.MethodPatch, "/api/profile", `{"email":"other@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrderHandler(t *testing.T) {
	env := setup(t)

	order := sampleOrder()
	env.orders.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req model.CreateOrderRequest) (model.Order, error) {
			require.Equal(t, "Иван Петров", req.ClientName)
			require.True(t, decimal.NewFromInt(1000).Equal(req.Prepayment))
			require.Len(t, req.Services, 1)
			return order, nil
		})

	payload := `{
		"deviceType": "smartphone",
		"deviceModel": "iPhone 13",
		"clientName": "Иван Петров",
		"clientPhone": "+79991234567",
		"prepayment": 1000,
		"services": [{"name": "Замена экрана", "type": "service", "price": 5000, "quantity": 1}]
	}`
	rr := env.do(t, http.MethodPost, "/api/orders", payload)
	require.Equal(t, http.StatusCreated, rr.Code)

	body := decodeBody(t, rr)
	require.Equal(t, "order-1", body["id"])
	require.EqualValues(t, 1, body["orderNumber"])
	require.Equal(t, "5000", body["total"])
	require.Equal(t, "4000", body["amountDue"])
	require.Equal(t, "Новый", body["statusLabel"])
	require.Equal(t, "Смартфон", body["deviceTypeLabel"])

	require.Equal(t, 1.0, testutil.ToFloat64(env.srv.deps.Metrics.OrdersCreated))
}

func TestCreateOrderHandlerRejectsBadInput(t *testing.T) {
	env := setup(t)

	rr := env.do(t, http.MethodPost, "/api/orders", `{"clientName":"Иван","status":"completed"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code, "unknown fields are rejected")

	verr := errs.NewValidationError()
	verr.Add("clientPhone", "required")
	env.orders.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(model.Order{}, verr)

	rr = env.do(t, http.MethodPost, "/api/orders", `{"clientName":"Иван"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeBody(t, rr)
	require.Equal(t, "validation failed", body["error"])
	require.Equal(t, "required", body["fields"].(map[string]any)["clientPhone"])
}

func TestListOrdersHandler(t *testing.T) {
	env := setup(t)

	env.orders.EXPECT().ListOrders(gomock.Any()).Return([]model.Order{sampleOrder()}, nil)

	rr := env.do(t, http.MethodGet, "/api/orders/", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "4000", list[0]["amountDue"])
}

func TestGetOrderHandler(t *testing.T) {
	env := setup(t)

	env.orders.EXPECT().GetOrder(gomock.Any(), "order-1").Return(sampleOrder(), nil)
	env.orders.EXPECT().GetOrder(gomock.Any(), "missing").
		Return(model.Order{}, fmt.Errorf("get order missing: %w", errs.ErrOrderNotFound))

	rr := env.do(t, http.MethodGet, "/api/orders/order-1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/orders/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateOrderHandler(t *testing.T) {
	env := setup(t)

	comment := "ждём запчасть"
	updated := sampleOrder()
	updated.MasterComment = comment
	env.orders.EXPECT().
		UpdateOrder(gomock.Any(), "order-1", model.OrderPatch{MasterComment: &comment}).
		Return(updated, nil)

	rr := env.do(t, http.MethodPatch, "/api/orders/order-1", `{"masterComment":"ждём запчасть"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, comment, decodeBody(t, rr)["masterComment"])
}

func TestDeleteOrderHandler(t *testing.T) {
	env := setup(t)

	env.orders.EXPECT().DeleteOrder(gomock.Any(), "order-1").Return(true, nil)
	env.orders.EXPECT().DeleteOrder(gomock.Any(), "order-1").Return(false, nil)

	rr := env.do(t, http.MethodDelete, "/api/orders/order-1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/orders/order-1", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateStatusHandler(t *testing.T) {
	env := setup(t)

	completed := sampleOrder()
	completed.Status = model.StatusCompleted
	env.orders.EXPECT().ApplyStatus(gomock.Any(), "order-1", model.StatusCompleted).Return(completed, nil)

	rr := env.do(t, http.MethodPut, "/api/orders/order-1/status", `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	require.Equal(t, "completed", body["status"])
	require.Equal(t, "Выполнен", body["statusLabel"])
}

func TestAddLineHandler(t *testing.T) {
	env := setup(t)

	tmpl := model.ServiceTemplate{Type: model.TypeService, Name: "Диагностика", Price: decimal.NewFromInt(500)}
	env.orders.EXPECT().
		AddService(gomock.Any(), "order-1", gomock.Any(), 2).
		DoAndReturn(func(_ any, _ string, got model.ServiceTemplate, _ int) (model.Order, error) {
			require.Equal(t, tmpl.Name, got.Name)
			require.Equal(t, tmpl.Type, got.Type)
			require.True(t, tmpl.Price.Equal(got.Price))
			return sampleOrder(), nil
		})
	env.orders.EXPECT().AddCatalogService(gomock.Any(), "order-1", "svc-1", 0).Return(sampleOrder(), nil)
	env.orders.EXPECT().AddCatalogService(gomock.Any(), "order-1", "gone", 1).
		Return(model.Order{}, fmt.Errorf("get catalog service gone: %w", errs.ErrServiceNotFound))

	rr := env.do(t, http.MethodPost, "/api/orders/order-1/services", `{"type":"service","name":"Диагностика","price":500,"quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/orders/order-1/services", `{"service_id":"svc-1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/orders/order-1/services", `{"service_id":"gone","quantity":1}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLineQuantityAndRemoval(t *testing.T) {
	env := setup(t)

	env.orders.EXPECT().
		UpdateServiceQuantity(gomock.Any(), "order-1", "line-1", 0).
		Return(model.Order{}, errs.Invalid("quantity", "must be at least 1"))
	env.orders.EXPECT().
		UpdateServiceQuantity(gomock.Any(), "order-1", "line-1", 3).
		Return(sampleOrder(), nil)
	env.orders.EXPECT().
		RemoveService(gomock.Any(), "order-1", "line-1").
		Return(sampleOrder(), nil)

	rr := env.do(t, http.MethodPatch, "/api/orders/order-1/services/line-1", `{"quantity":0}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decodeBody(t, rr)["fields"], "quantity")

	rr = env.do(t, http.MethodPatch, "/api/orders/order-1/services/line-1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/orders/order-1/services/line-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCatalogHandlers(t *testing.T) {
	env := setup(t)

	svc := model.Service{ID: "svc-1", Type: model.TypePart, Name: "Аккумулятор", Price: decimal.NewFromInt(8000)}
	env.catalog.EXPECT().ListServices(gomock.Any()).Return(nil, nil)
	env.catalog.EXPECT().
		AddService(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, in model.ServiceInput) (model.Service, error) {
			require.Equal(t, model.TypePart, in.Type)
			return svc, nil
		})
	env.catalog.EXPECT().GetService(gomock.Any(), "svc-1").Return(svc, nil)
	env.catalog.EXPECT().DeleteService(gomock.Any(), "svc-1").Return(true, nil)
	env.catalog.EXPECT().DeleteService(gomock.Any(), "svc-1").Return(false, nil)

	rr := env.do(t, http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/services", `{"type":"part","name":"Аккумулятор","price":8000}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/services/svc-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "8000", decodeBody(t, rr)["price"])

	rr = env.do(t, http.MethodDelete, "/api/services/svc-1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/services/svc-1", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	env := setup(t)

	env.orders.EXPECT().ListOrders(gomock.Any()).
		Return(nil, errs.NewStorageError("read database", errors.New("connection refused")))

	rr := env.do(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestHealthHandler(t *testing.T) {
	env := setup(t)

	env.health.EXPECT().Ping(gomock.Any()).Return(nil)
	env.health.EXPECT().Ping(gomock.Any()).Return(errors.New("down"))

	rr := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setup(t)

	env.health.EXPECT().Ping(gomock.Any()).Return(nil)
	env.do(t, http.MethodGet, "/healthz", "")

	rr := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `servicecenter_http_requests_total{handler="/healthz",method="GET",status="200"} 1`)
}
