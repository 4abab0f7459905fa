package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/abarbet/shoply-backend/internal/orders"
	"github.com/abarbet/shoply-backend/pkg/db"
	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/enums"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service admits payments into the settlement pipeline.
type Service interface {
	SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*SubmitResult, error)
	GetPayment(ctx context.Context, input GetPaymentInput) (*PaymentDTO, error)
}

type orderReader interface {
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type enqueuer interface {
	Enqueue(id uuid.UUID)
}

type service struct {
	repo   Repository
	orders orderReader
	queue  enqueuer
}

// NewService builds a payment admission service.
func NewService(repo Repository, orderRepo orderReader, queue enqueuer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if queue == nil {
		return nil, fmt.Errorf("payment queue required")
	}
	return &service{
		repo:   repo,
		orders: orderRepo,
		queue:  queue,
	}, nil
}

func (s *service) SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*SubmitResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		existing, err := s.findByKey(ctx, *input.IdempotencyKey, input.OrderID, input.Amount)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &SubmitResult{Payment: FromModel(existing), Created: false}, nil
		}
	}

	order, err := s.orders.FindOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !input.ActorRole.IsAdmin() && order.UserID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
	}

	total := orders.OrderTotal(order.Items)
	if !input.Amount.Equal(total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount %s does not match order total %s", input.Amount, total))
	}

	payment := &models.Payment{
		OrderID:        order.ID,
		Amount:         input.Amount,
		Status:         enums.PaymentStatusPending,
		IdempotencyKey: input.IdempotencyKey,
	}
	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		// A concurrent submission with the same key wins the insert race;
		// treat our attempt as a replay of that one.
		if input.IdempotencyKey != nil && db.IsUniqueViolation(err, "idx_payments_idempotency_key") {
			existing, lookupErr := s.findByKey(ctx, *input.IdempotencyKey, input.OrderID, input.Amount)
			if lookupErr == nil && existing != nil {
				return &SubmitResult{Payment: FromModel(existing), Created: false}, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	s.queue.Enqueue(created.ID)
	return &SubmitResult{Payment: FromModel(created), Created: true}, nil
}

func (s *service) GetPayment(ctx context.Context, input GetPaymentInput) (*PaymentDTO, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	payment, err := s.repo.FindByIDWithOrder(ctx, input.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if !input.ActorRole.IsAdmin() {
		if payment.Order == nil || payment.Order.UserID != input.ActorUserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to user")
		}
	}
	return FromModel(payment), nil
}

// findByKey returns the payment already holding the key, nil when the key is
// unused. Reusing a key against a different order or a different amount is
// rejected outright.
func (s *service) findByKey(ctx context.Context, key string, orderID uuid.UUID, amount decimal.Decimal) (*models.Payment, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotency key")
	}
	if existing.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key already used for another order")
	}
	if !existing.Amount.Equal(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key already used with a different amount")
	}
	return existing, nil
}
