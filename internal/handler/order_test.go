package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arita10/greenart81-backend/internal/handler"
	"github.com/arita10/greenart81-backend/internal/inventory"
	"github.com/arita10/greenart81-backend/internal/order"
)

type mockOrderService struct {
	createFunc       func(ctx context.Context, userID uuid.UUID, input order.CreateInput) (*order.Order, error)
	getByIDFunc      func(ctx context.Context, id, userID uuid.UUID) (*order.Order, error)
	listByUserFunc   func(ctx context.Context, userID uuid.UUID, status order.Status, page, limit int) ([]order.Order, int, error)
	cancelFunc       func(ctx context.Context, id, userID uuid.UUID) (*order.Order, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, newStatus order.Status) error
}

func (m *mockOrderService) Create(ctx context.Context, userID uuid.UUID, input order.CreateInput) (*order.Order, error) {
	return m.createFunc(ctx, userID, input)
}

func (m *mockOrderService) GetByID(ctx context.Context, id, userID uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id, userID)
}

func (m *mockOrderService) ListByUser(ctx context.Context, userID uuid.UUID, status order.Status, page, limit int) ([]order.Order, int, error) {
	return m.listByUserFunc(ctx, userID, status, page, limit)
}

func (m *mockOrderService) Cancel(ctx context.Context, id, userID uuid.UUID) (*order.Order, error) {
	return m.cancelFunc(ctx, id, userID)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus order.Status) error {
	return m.updateStatusFunc(ctx, id, newStatus)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func asUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(handler.WithPrincipal(r.Context(), handler.Principal{UserID: userID, Role: "customer"}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		body       string
		createFunc func(ctx context.Context, uid uuid.UUID, input order.CreateInput) (*order.Order, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "success",
			body: `{"items":[{"product_id":"550e8400-e29b-41d4-a716-446655440000","quantity":1,"price":10}],"shipping_address":"42 Garden Street","payment_method":"card_gateway","total_amount":10}`,
			createFunc: func(ctx context.Context, uid uuid.UUID, input order.CreateInput) (*order.Order, error) {
				assert.Equal(t, userID, uid)
				return &order.Order{ID: orderID, UserID: uid, Status: order.StatusPending, TotalAmount: 10}, nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed_body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELDS",
		},
		{
			name: "validation_failure",
			body: `{"items":[],"total_amount":10}`,
			createFunc: func(ctx context.Context, uid uuid.UUID, input order.CreateInput) (*order.Order, error) {
				return nil, order.ErrMissingFields
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELDS",
		},
		{
			name: "total_mismatch",
			body: `{"items":[{"product_id":"550e8400-e29b-41d4-a716-446655440000","quantity":1,"price":10}],"shipping_address":"a","payment_method":"card_gateway","total_amount":99}`,
			createFunc: func(ctx context.Context, uid uuid.UUID, input order.CreateInput) (*order.Order, error) {
				return nil, order.ErrTotalMismatch
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_TOTAL",
		},
		{
			name: "insufficient_stock",
			body: `{"items":[{"product_id":"550e8400-e29b-41d4-a716-446655440000","quantity":100,"price":10}],"shipping_address":"a","payment_method":"card_gateway","total_amount":1000}`,
			createFunc: func(ctx context.Context, uid uuid.UUID, input order.CreateInput) (*order.Order, error) {
				return nil, inventory.ErrInsufficientStock
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INSUFFICIENT_STOCK",
		},
		{
			name: "unknown_product",
			body: `{"items":[{"product_id":"550e8400-e29b-41d4-a716-446655440000","quantity":1,"price":10}],"shipping_address":"a","payment_method":"card_gateway","total_amount":10}`,
			createFunc: func(ctx context.Context, uid uuid.UUID, input order.CreateInput) (*order.Order, error) {
				return nil, inventory.ErrProductNotFound
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "PRODUCT_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOrderHandler(&mockOrderService{createFunc: tt.createFunc})

			req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(tt.body))
			req = asUser(req, userID)
			rec := httptest.NewRecorder()

			h.CreateOrder(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				return
			}
			assert.True(t, resp.Success)

			var created order.Order
			require.NoError(t, json.Unmarshal(resp.Data, &created))
			assert.Equal(t, orderID, created.ID)
		})
	}
}

func TestOrderHandler_CancelOrder(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		urlParam   string
		cancelFunc func(ctx context.Context, id, uid uuid.UUID) (*order.Order, error)
		wantStatus int
		wantCode   string
	}{
		{
			name:     "success",
			urlParam: orderID.String(),
			cancelFunc: func(ctx context.Context, id, uid uuid.UUID) (*order.Order, error) {
				return &order.Order{ID: id, Status: order.StatusCancelled}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad_id",
			urlParam:   "nope",
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELDS",
		},
		{
			name:     "not_found",
			urlParam: orderID.String(),
			cancelFunc: func(ctx context.Context, id, uid uuid.UUID) (*order.Order, error) {
				return nil, order.ErrOrderNotFound
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "ORDER_NOT_FOUND",
		},
		{
			name:     "not_cancellable",
			urlParam: orderID.String(),
			cancelFunc: func(ctx context.Context, id, uid uuid.UUID) (*order.Order, error) {
				return nil, order.ErrNotCancellable
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_STATUS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOrderHandler(&mockOrderService{cancelFunc: tt.cancelFunc})

			req := httptest.NewRequest(http.MethodPut, "/api/orders/"+tt.urlParam+"/cancel", nil)
			req = asUser(req, userID)
			req = withURLParam(req, "id", tt.urlParam)
			rec := httptest.NewRecorder()

			h.CancelOrder(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				return
			}

			var cancelled order.Order
			require.NoError(t, json.Unmarshal(resp.Data, &cancelled))
			assert.Equal(t, order.StatusCancelled, cancelled.Status)
		})
	}
}

func TestOrderHandler_GetMyOrders(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	svc := &mockOrderService{
		listByUserFunc: func(ctx context.Context, uid uuid.UUID, status order.Status, page, limit int) ([]order.Order, int, error) {
			assert.Equal(t, userID, uid)
			assert.Equal(t, order.StatusPending, status)
			assert.Equal(t, 2, page)
			assert.Equal(t, 5, limit)
			return []order.Order{{UserID: uid, Status: order.StatusPending}}, 11, nil
		},
	}
	h := handler.NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders?page=2&limit=5&status=pending", nil)
	req = asUser(req, userID)
	rec := httptest.NewRecorder()

	h.GetMyOrders(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	var data struct {
		Orders []order.Order `json:"orders"`
		Total  int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data.Orders, 1)
	assert.Equal(t, 11, data.Total)
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		body       string
		updateFunc func(ctx context.Context, id uuid.UUID, newStatus order.Status) error
		wantStatus int
		wantCode   string
	}{
		{
			name: "success",
			body: `{"status":"processing"}`,
			updateFunc: func(ctx context.Context, id uuid.UUID, newStatus order.Status) error {
				assert.Equal(t, order.StatusProcessing, newStatus)
				return nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing_status",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELDS",
		},
		{
			name: "invalid_transition",
			body: `{"status":"pending"}`,
			updateFunc: func(ctx context.Context, id uuid.UUID, newStatus order.Status) error {
				return order.ErrInvalidStatusTransition
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_STATUS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOrderHandler(&mockOrderService{updateStatusFunc: tt.updateFunc})

			req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/"+orderID.String()+"/status", bytes.NewBufferString(tt.body))
			req = asUser(req, uuid.Must(uuid.NewV4()))
			req = withURLParam(req, "id", orderID.String())
			rec := httptest.NewRecorder()

			h.UpdateOrderStatus(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			} else {
				assert.True(t, resp.Success)
			}
		})
	}
}
