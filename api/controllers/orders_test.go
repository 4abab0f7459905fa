package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	ordersvc "github.com/abarbet/shoply-backend/internal/orders"
	"github.com/abarbet/shoply-backend/pkg/enums"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/abarbet/shoply-backend/pkg/pagination"
)

type stubOrderService struct {
	order       *ordersvc.OrderDTO
	list        *ordersvc.OrderListResult
	err         error
	createInput ordersvc.CreateOrderInput
	cancelInput ordersvc.CancelOrderInput
	statusInput ordersvc.UpdateStatusInput
}

func (s *stubOrderService) CreateOrder(ctx context.Context, input ordersvc.CreateOrderInput) (*ordersvc.OrderDTO, error) {
	s.createInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, input ordersvc.GetOrderInput) (*ordersvc.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ordersvc.OrderListResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, input ordersvc.UpdateStatusInput) (*ordersvc.OrderDTO, error) {
	s.statusInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) CancelOrder(ctx context.Context, input ordersvc.CancelOrderInput) (*ordersvc.OrderDTO, error) {
	s.cancelInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func TestCreateOrder(t *testing.T) {
	logg := testControllerLogger()
	userID := uuid.New()
	productID := uuid.New()

	create := func(stub *stubOrderService, ctx context.Context, body any) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(raw))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateOrder(stub, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing user", func(t *testing.T) {
		rec := create(&stubOrderService{}, context.Background(), map[string]any{
			"items": []map[string]any{{"product_id": productID, "quantity": 1}},
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rec.Code)
		}
	})

	t.Run("empty items", func(t *testing.T) {
		rec := create(&stubOrderService{}, authedContext(userID, enums.UserRoleClient), map[string]any{
			"items": []map[string]any{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubOrderService{order: &ordersvc.OrderDTO{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending}}
		rec := create(stub, authedContext(userID, enums.UserRoleClient), map[string]any{
			"items": []map[string]any{{"product_id": productID, "quantity": 2}},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.createInput.UserID != userID {
			t.Fatalf("actor not forwarded, got %s", stub.createInput.UserID)
		}
		if len(stub.createInput.Items) != 1 || stub.createInput.Items[0].Quantity != 2 {
			t.Fatalf("items not forwarded: %+v", stub.createInput.Items)
		}
	})

	t.Run("insufficient stock bubbles up", func(t *testing.T) {
		stub := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")}
		rec := create(stub, authedContext(userID, enums.UserRoleClient), map[string]any{
			"items": []map[string]any{{"product_id": productID, "quantity": 2}},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})
}

func TestCancelOrderController(t *testing.T) {
	logg := testControllerLogger()
	userID := uuid.New()
	orderID := uuid.New()

	cancel := func(stub *stubOrderService, ctx context.Context, rawID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+rawID+"/cancel", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("orderId", rawID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CancelOrder(stub, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("invalid id", func(t *testing.T) {
		rec := cancel(&stubOrderService{}, authedContext(userID, enums.UserRoleClient), "nope")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("success forwards actor", func(t *testing.T) {
		stub := &stubOrderService{order: &ordersvc.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}}
		rec := cancel(stub, authedContext(userID, enums.UserRoleClient), orderID.String())
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		if stub.cancelInput.ActorUserID != userID || stub.cancelInput.OrderID != orderID {
			t.Fatalf("input not forwarded: %+v", stub.cancelInput)
		}
	})
}

func TestUpdateOrderStatusController(t *testing.T) {
	logg := testControllerLogger()
	orderID := uuid.New()

	update := func(stub *stubOrderService, rawID, status string) *httptest.ResponseRecorder {
		raw, err := json.Marshal(map[string]string{"status": status})
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/"+rawID+"/status", bytes.NewReader(raw))
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("orderId", rawID)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		UpdateOrderStatus(stub, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("unknown status", func(t *testing.T) {
		rec := update(&stubOrderService{}, orderID.String(), "teleported")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubOrderService{order: &ordersvc.OrderDTO{ID: orderID, Status: enums.OrderStatusShipped}}
		rec := update(stub, orderID.String(), "shipped")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		if stub.statusInput.Status != enums.OrderStatusShipped {
			t.Fatalf("status not forwarded: %s", stub.statusInput.Status)
		}
	})
}
