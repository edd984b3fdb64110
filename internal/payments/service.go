package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/internal/inventory"
	"github.com/modacart/modacart-backend/internal/orders"
	"github.com/modacart/modacart-backend/pkg/db/models"
	"github.com/modacart/modacart-backend/pkg/enums"
	pkgerrors "github.com/modacart/modacart-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service coordinates payment attempts against orders and the stock ledger.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, orderID uuid.UUID) (*PaymentDTO, error)
	Confirm(ctx context.Context, userID uuid.UUID, paymentID uuid.UUID) (*PaymentDTO, error)
	Retry(ctx context.Context, userID uuid.UUID, paymentID uuid.UUID) (*PaymentDTO, error)
	Refund(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	ordersRepo orders.Repository
	gateway    Gateway
}

// NewService builds the payments service.
func NewService(tx txRunner, repo Repository, ordersRepo orders.Repository, gateway Gateway) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		ordersRepo: ordersRepo,
		gateway:    gateway,
	}, nil
}

// Create opens a payment attempt for a checked-out order, snapshotting the
// order total as the charge amount.
func (s *service) Create(ctx context.Context, userID uuid.UUID, orderID uuid.UUID) (*PaymentDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *PaymentDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if order.PaymentStatus == enums.OrderPaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}
		if order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %q cannot accept payments", order.Status))
		}

		open, err := repo.FindByOrderAndStatuses(ctx, order.ID, []enums.PaymentStatus{enums.PaymentStatusPending})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open payments")
		}
		if len(open) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a payment for this order is already in progress")
		}

		payment, err := repo.Create(ctx, &models.Payment{
			OrderID: order.ID,
			Amount:  order.TotalPrice,
			Status:  enums.PaymentStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
		}

		result = FromModel(payment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Confirm settles a pending payment through the gateway. Success completes
// the order; failure cancels it and returns every reserved unit to stock,
// all inside one transaction.
func (s *service) Confirm(ctx context.Context, userID uuid.UUID, paymentID uuid.UUID) (*PaymentDTO, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var result *PaymentDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		payment, err := s.loadOwnedPayment(ctx, repo, userID, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment in status %q cannot be confirmed", payment.Status))
		}
		if payment.Order == nil || payment.Order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer awaiting payment")
		}

		approved, err := s.gateway.Charge(ctx, payment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge payment")
		}

		if approved {
			if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusSuccessful); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
			}
			if err := ordersRepo.UpdateStatus(ctx, payment.OrderID, enums.OrderStatusCompleted); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
			if err := ordersRepo.UpdatePaymentStatus(ctx, payment.OrderID, enums.OrderPaymentStatusPaid); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order payment status")
			}
			payment.Status = enums.PaymentStatusSuccessful
		} else {
			if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusFailed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
			}
			if err := inventory.ReleaseOrderItems(ctx, tx, payment.Order.Items); err != nil {
				return err
			}
			if err := ordersRepo.UpdateStatus(ctx, payment.OrderID, enums.OrderStatusCancelled); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
			payment.Status = enums.PaymentStatusFailed
		}

		result = FromModel(payment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Retry reopens a failed payment. The original reservation was released on
// failure, so the retry must win the stock back before the payment returns
// to pending; if any line can no longer be covered the retry is rejected.
func (s *service) Retry(ctx context.Context, userID uuid.UUID, paymentID uuid.UUID) (*PaymentDTO, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var result *PaymentDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		payment, err := s.loadOwnedPayment(ctx, repo, userID, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusFailed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment in status %q cannot be retried", payment.Status))
		}
		if payment.Order != nil && payment.Order.PaymentStatus == enums.OrderPaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}

		if err := inventory.ReserveOrderItems(ctx, tx, payment.Order.Items); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusPending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
		}
		if err := ordersRepo.UpdateStatus(ctx, payment.OrderID, enums.OrderStatusProcessing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}

		payment.Status = enums.PaymentStatusPending
		result = FromModel(payment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refund reverses a successful payment: the payment is marked refunded, the
// order cancelled and flagged unpaid, and the sold units flow back to stock.
// Route-level role checks restrict this to admins.
func (s *service) Refund(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var result *PaymentDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusSuccessful {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment in status %q cannot be refunded", payment.Status))
		}

		if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusRefunded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
		}
		if err := inventory.ReleaseOrderItems(ctx, tx, payment.Order.Items); err != nil {
			return err
		}
		if err := ordersRepo.UpdateStatus(ctx, payment.OrderID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if err := ordersRepo.UpdatePaymentStatus(ctx, payment.OrderID, enums.OrderPaymentStatusUnpaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order payment status")
		}

		payment.Status = enums.PaymentStatusRefunded
		result = FromModel(payment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) loadOwnedPayment(ctx context.Context, repo Repository, userID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment is missing its order")
	}
	if payment.Order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	return payment, nil
}
