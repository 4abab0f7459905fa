package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abarbet/shoply-backend/pkg/clock"
	"github.com/abarbet/shoply-backend/pkg/enums"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/abarbet/shoply-backend/pkg/logger"
	"github.com/abarbet/shoply-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Worker drains the payment queue and settles payments one at a time.
// Cancellation between items stops the loop; a payment mid-settlement is
// left pending and is not re-enqueued.
type Worker struct {
	queue   *Queue
	repo    Repository
	tx      txRunner
	gateway Gateway
	clk     clock.Clock
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
}

// WorkerParams bundles the dependencies required to build a settlement worker.
type WorkerParams struct {
	Queue   *Queue
	Repo    Repository
	Tx      txRunner
	Gateway Gateway
	Clock   clock.Clock
	Logger  *logger.Logger
	Metrics *metrics.SettlementMetrics
}

// NewWorker constructs a settlement worker with the provided dependencies.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Queue == nil {
		return nil, fmt.Errorf("payment queue required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Worker{
		queue:   params.Queue,
		repo:    params.Repo,
		tx:      params.Tx,
		gateway: params.Gateway,
		clk:     params.Clock,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Run consumes the queue until ctx is cancelled. On shutdown it returns
// the cancelled-kind error from Dequeue, which wraps the context error.
func (w *Worker) Run(ctx context.Context) error {
	w.logg.Info(ctx, "settlement worker started")
	for {
		paymentID, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logg.Info(ctx, "settlement worker stopping")
			return err
		}

		if err := w.settle(ctx, paymentID); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logg.Info(ctx, "settlement interrupted by shutdown")
				return ctx.Err()
			}
			logCtx := w.logg.WithPaymentID(ctx, paymentID.String())
			w.logg.Error(logCtx, "payment settlement failed", err)
		}
		w.metrics.SetQueueDepth(w.queue.Len())
	}
}

// settle processes a single payment. Unknown or already processed payments
// are skipped without error.
func (w *Worker) settle(ctx context.Context, paymentID uuid.UUID) error {
	logCtx := w.logg.WithPaymentID(ctx, paymentID.String())

	payment, err := w.repo.FindByIDWithOrder(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			w.logg.Warn(logCtx, "queued payment no longer exists")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusPending {
		w.logg.Warn(logCtx, "payment already processed, skipping")
		return nil
	}
	if payment.Order == nil {
		w.logg.Warn(logCtx, "payment references missing order, skipping")
		return nil
	}
	logCtx = w.logg.WithOrderID(logCtx, payment.OrderID.String())

	start := time.Now()
	approved, err := w.gateway.Charge(ctx, payment)
	if err != nil {
		w.metrics.ObserveSettlement("cancelled", time.Since(start))
		return err
	}

	status := enums.PaymentStatusFailed
	outcome := "failed"
	if approved {
		status = enums.PaymentStatusConfirmed
		outcome = "confirmed"
	}

	processedAt := w.clk.Now()
	err = w.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := w.repo.WithTx(tx)
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":       status,
			"processed_at": processedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if approved {
			if err := repo.MarkOrderPaid(ctx, payment.OrderID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
		}
		return nil
	})
	if err != nil {
		w.metrics.ObserveSettlement("error", time.Since(start))
		return err
	}

	w.metrics.ObserveSettlement(outcome, time.Since(start))
	w.logg.Info(w.logg.WithField(logCtx, "outcome", outcome), "payment settled")
	return nil
}
