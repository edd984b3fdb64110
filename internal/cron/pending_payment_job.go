package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/internal/inventory"
	"github.com/modacart/modacart-backend/internal/orders"
	"github.com/modacart/modacart-backend/internal/payments"
	"github.com/modacart/modacart-backend/pkg/db/models"
	"github.com/modacart/modacart-backend/pkg/enums"
	"github.com/modacart/modacart-backend/pkg/logger"
)

const stalePaymentBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PendingPaymentJobParams configure the stale payment expiry job.
type PendingPaymentJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	PaymentsRepo payments.Repository
	OrdersRepo   orders.Repository
	PendingTTL   time.Duration
}

// NewPendingPaymentJob builds the cron job that expires payments stuck in
// pending: each stale payment is failed, its order cancelled, and the
// reserved stock returned.
func NewPendingPaymentJob(params PendingPaymentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PaymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &pendingPaymentJob{
		logg:         params.Logger,
		db:           params.DB,
		paymentsRepo: params.PaymentsRepo,
		ordersRepo:   params.OrdersRepo,
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

type pendingPaymentJob struct {
	logg         *logger.Logger
	db           txRunner
	paymentsRepo payments.Repository
	ordersRepo   orders.Repository
	ttl          time.Duration
	now          func() time.Time
}

func (j *pendingPaymentJob) Name() string { return "pending-payment-expiry" }

func (j *pendingPaymentJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.paymentsRepo.ListStalePending(ctx, cutoff, stalePaymentBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending payments: %w", err)
	}

	var errs []error
	expired := 0
	for _, payment := range stale {
		if err := j.expirePayment(ctx, payment); err != nil {
			errs = append(errs, fmt.Errorf("expire payment %s: %w", payment.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired, "stale": len(stale)})
	j.logg.Info(logCtx, "pending payment expiry loop complete")
	return multierr.Combine(errs...)
}

func (j *pendingPaymentJob) expirePayment(ctx context.Context, payment models.Payment) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.paymentsRepo.WithTx(tx)
		ordersRepo := j.ordersRepo.WithTx(tx)

		current, err := repo.FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		// Re-check inside the transaction: the user may have confirmed
		// between the scan and now.
		if current.Status != enums.PaymentStatusPending {
			return nil
		}
		// Only a processing order still holds its reservation. Anything
		// else (cancelled by the owner, already settled elsewhere) had its
		// stock returned already, so the orphaned payment is closed
		// without touching the ledger.
		if current.Order == nil || current.Order.Status != enums.OrderStatusProcessing {
			return repo.UpdateStatus(ctx, current.ID, enums.PaymentStatusCancelled)
		}

		if err := repo.UpdateStatus(ctx, current.ID, enums.PaymentStatusFailed); err != nil {
			return err
		}
		if err := inventory.ReleaseOrderItems(ctx, tx, current.Order.Items); err != nil {
			return err
		}
		return ordersRepo.UpdateStatus(ctx, current.OrderID, enums.OrderStatusCancelled)
	})
}
