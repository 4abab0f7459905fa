package payments

import (
	"context"
	"testing"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/enums"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubPaymentsRepo struct {
	payments map[uuid.UUID]*models.Payment
	byKey    map[string]*models.Payment
	orders   map[uuid.UUID]*models.Order

	createErr error
	updates   map[uuid.UUID]map[string]any
	paidOrder *uuid.UUID
}

func newStubPaymentsRepo() *stubPaymentsRepo {
	return &stubPaymentsRepo{
		payments: make(map[uuid.UUID]*models.Payment),
		byKey:    make(map[string]*models.Payment),
		orders:   make(map[uuid.UUID]*models.Order),
		updates:  make(map[uuid.UUID]map[string]any),
	}
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPaymentsRepo) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.payments[payment.ID] = payment
	if payment.IdempotencyKey != nil {
		s.byKey[*payment.IdempotencyKey] = payment
	}
	return payment, nil
}

func (s *stubPaymentsRepo) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (s *stubPaymentsRepo) FindByIDWithOrder(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if order, ok := s.orders[payment.OrderID]; ok {
		payment.Order = order
	}
	return payment, nil
}

func (s *stubPaymentsRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	payment, ok := s.byKey[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (s *stubPaymentsRepo) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	payment, ok := s.payments[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates[paymentID] = updates
	if status, ok := updates["status"].(enums.PaymentStatus); ok {
		payment.Status = status
	}
	return nil
}

func (s *stubPaymentsRepo) MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.IsPaid = true
	id := orderID
	s.paidOrder = &id
	return nil
}

type stubOrderReader struct {
	orders map[uuid.UUID]*models.Order
}

func (s *stubOrderReader) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func seedOrder(userID uuid.UUID, price int64, qty int) *models.Order {
	orderID := uuid.New()
	return &models.Order{
		ID:     orderID,
		UserID: userID,
		Status: enums.OrderStatusPending,
		Items: []models.OrderItem{
			{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: uuid.New(),
				Quantity:  qty,
				Price:     decimal.NewFromInt(price),
			},
		},
	}
}

func TestSubmitPaymentAdmitsAndEnqueues(t *testing.T) {
	userID := uuid.New()
	order := seedOrder(userID, 10, 3)
	repo := newStubPaymentsRepo()
	queue := NewQueue()
	svc, err := NewService(repo, &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}

	result, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:     order.ID,
		Amount:      decimal.NewFromInt(30),
		ActorUserID: userID,
		ActorRole:   enums.UserRoleClient,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !result.Created {
		t.Fatal("expected newly created payment")
	}
	if result.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("unexpected status %s", result.Payment.Status)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected 1 queued payment got %d", queue.Len())
	}
}

func TestSubmitPaymentAmountMismatch(t *testing.T) {
	userID := uuid.New()
	order := seedOrder(userID, 10, 3)
	repo := newStubPaymentsRepo()
	queue := NewQueue()
	svc, _ := NewService(repo, &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)

	_, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:     order.ID,
		Amount:      decimal.NewFromInt(29),
		ActorUserID: userID,
		ActorRole:   enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	if queue.Len() != 0 {
		t.Fatal("rejected payment must not be queued")
	}
}

func TestSubmitPaymentAlreadyPaid(t *testing.T) {
	userID := uuid.New()
	order := seedOrder(userID, 10, 1)
	order.IsPaid = true
	queue := NewQueue()
	svc, _ := NewService(newStubPaymentsRepo(), &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)

	_, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:     order.ID,
		Amount:      decimal.NewFromInt(10),
		ActorUserID: userID,
		ActorRole:   enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestSubmitPaymentOwnership(t *testing.T) {
	order := seedOrder(uuid.New(), 10, 1)
	queue := NewQueue()
	svc, _ := NewService(newStubPaymentsRepo(), &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)

	_, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:     order.ID,
		Amount:      decimal.NewFromInt(10),
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestSubmitPaymentUnknownOrder(t *testing.T) {
	queue := NewQueue()
	svc, _ := NewService(newStubPaymentsRepo(), &stubOrderReader{orders: map[uuid.UUID]*models.Order{}}, queue)

	_, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:     uuid.New(),
		Amount:      decimal.NewFromInt(10),
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestSubmitPaymentIdempotentReplay(t *testing.T) {
	userID := uuid.New()
	order := seedOrder(userID, 10, 2)
	repo := newStubPaymentsRepo()
	queue := NewQueue()
	svc, _ := NewService(repo, &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)

	key := "attempt-1"
	input := SubmitPaymentInput{
		OrderID:        order.ID,
		Amount:         decimal.NewFromInt(20),
		IdempotencyKey: &key,
		ActorUserID:    userID,
		ActorRole:      enums.UserRoleClient,
	}

	first, err := svc.SubmitPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if !first.Created {
		t.Fatal("first submit should create")
	}

	second, err := svc.SubmitPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.Created {
		t.Fatal("replay must not create a new payment")
	}
	if second.Payment.ID != first.Payment.ID {
		t.Fatalf("replay returned different payment %s vs %s", second.Payment.ID, first.Payment.ID)
	}
	if queue.Len() != 1 {
		t.Fatalf("replay must not enqueue again, queue len %d", queue.Len())
	}
}

func TestSubmitPaymentKeyReuseWithDifferentAmount(t *testing.T) {
	userID := uuid.New()
	order := seedOrder(userID, 10, 2)
	repo := newStubPaymentsRepo()
	queue := NewQueue()
	svc, _ := NewService(repo, &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)

	key := "attempt-1"
	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:        order.ID,
		Amount:         decimal.NewFromInt(20),
		IdempotencyKey: &key,
		ActorUserID:    userID,
		ActorRole:      enums.UserRoleClient,
	}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:        order.ID,
		Amount:         decimal.NewFromInt(50),
		IdempotencyKey: &key,
		ActorUserID:    userID,
		ActorRole:      enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict got %v", err)
	}
	if queue.Len() != 1 {
		t.Fatalf("rejected reuse must not enqueue, queue len %d", queue.Len())
	}
}

func TestSubmitPaymentKeyReuseAcrossOrders(t *testing.T) {
	userID := uuid.New()
	orderA := seedOrder(userID, 10, 1)
	orderB := seedOrder(userID, 10, 1)
	repo := newStubPaymentsRepo()
	queue := NewQueue()
	reader := &stubOrderReader{orders: map[uuid.UUID]*models.Order{
		orderA.ID: orderA,
		orderB.ID: orderB,
	}}
	svc, _ := NewService(repo, reader, queue)

	key := "shared-key"
	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:        orderA.ID,
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: &key,
		ActorUserID:    userID,
		ActorRole:      enums.UserRoleClient,
	}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := svc.SubmitPayment(context.Background(), SubmitPaymentInput{
		OrderID:        orderB.ID,
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: &key,
		ActorUserID:    userID,
		ActorRole:      enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestGetPaymentOwnership(t *testing.T) {
	userID := uuid.New()
	order := seedOrder(userID, 10, 1)
	repo := newStubPaymentsRepo()
	repo.orders[order.ID] = order
	payment := &models.Payment{
		ID:      uuid.New(),
		OrderID: order.ID,
		Amount:  decimal.NewFromInt(10),
		Status:  enums.PaymentStatusPending,
	}
	repo.payments[payment.ID] = payment

	queue := NewQueue()
	svc, _ := NewService(repo, &stubOrderReader{orders: map[uuid.UUID]*models.Order{order.ID: order}}, queue)

	got, err := svc.GetPayment(context.Background(), GetPaymentInput{
		PaymentID:   payment.ID,
		ActorUserID: userID,
		ActorRole:   enums.UserRoleClient,
	})
	if err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if got.ID != payment.ID {
		t.Fatalf("unexpected payment %+v", got)
	}

	_, err = svc.GetPayment(context.Background(), GetPaymentInput{
		PaymentID:   payment.ID,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleClient,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
}
