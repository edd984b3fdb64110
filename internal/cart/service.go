package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/internal/inventory"
	"github.com/modacart/modacart-backend/internal/orders"
	"github.com/modacart/modacart-backend/internal/products"
	"github.com/modacart/modacart-backend/internal/users"
	"github.com/modacart/modacart-backend/pkg/db/models"
	"github.com/modacart/modacart-backend/pkg/enums"
	pkgerrors "github.com/modacart/modacart-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddItemInput captures the payload for adding a catalog variant to the cart.
type AddItemInput struct {
	ProductID    uuid.UUID
	VariantValue string
	Quantity     int
}

// Service manages the user's pending order (their cart).
type Service interface {
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*orders.OrderDTO, error)
}

type service struct {
	tx          txRunner
	usersRepo   *users.Repository
	ordersRepo  orders.Repository
	productRepo products.Repository
}

// NewService builds the cart service.
func NewService(tx txRunner, usersRepo *users.Repository, ordersRepo orders.Repository, productRepo products.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{
		tx:          tx,
		usersRepo:   usersRepo,
		ordersRepo:  ordersRepo,
		productRepo: productRepo,
	}, nil
}

// AddItem reserves stock and upserts a line on the user's pending order. The
// reservation, line upsert, and total recompute share one transaction so a
// failure at any point leaves both the order and the stock ledger untouched.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*orders.OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.VariantValue == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant value required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result *orders.OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)

		if _, err := s.usersRepo.WithTx(tx).FindByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}

		product, err := productRepo.FindByID(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
		}

		variant, err := productRepo.FindVariant(ctx, input.ProductID, input.VariantValue)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
		}

		order, err := s.findOrCreatePendingOrder(ctx, ordersRepo, userID)
		if err != nil {
			return err
		}

		if err := inventory.Reserve(ctx, tx, variant.ID, input.Quantity); err != nil {
			return err
		}

		if err := s.upsertItem(ctx, ordersRepo, order, product, variant, input); err != nil {
			return err
		}

		total, err := ordersRepo.SumItemFinalPrices(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum order items")
		}
		if err := ordersRepo.UpdateTotalPrice(ctx, order.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order total")
		}

		refreshed, err := ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		result = orders.FromModel(refreshed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) findOrCreatePendingOrder(ctx context.Context, repo orders.Repository, userID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindPendingByUser(ctx, userID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pending order")
	}

	created, err := repo.Create(ctx, &models.Order{
		UserID:        userID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.OrderPaymentStatusUnpaid,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pending order")
	}
	return created, nil
}

func (s *service) upsertItem(
	ctx context.Context,
	repo orders.Repository,
	order *models.Order,
	product *models.Product,
	variant *models.ProductVariant,
	input AddItemInput,
) error {
	existing, err := repo.FindItem(ctx, order.ID, product.ID, variant.VariantValue)
	switch {
	case err == nil:
		// Repeat add: increment quantity at the original snapshot unit
		// price, even if the catalog price changed since the first add.
		quantity := existing.Quantity + input.Quantity
		finalPrice := existing.Price.Mul(decimalFromInt(quantity))
		if err := repo.UpdateItemQuantity(ctx, existing.ID, quantity, finalPrice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order item")
		}
		return nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		item := &models.OrderItem{
			OrderID:      order.ID,
			ProductID:    product.ID,
			Name:         product.Name,
			Description:  product.Description,
			ProductType:  product.ProductType,
			Gender:       product.Gender,
			VariantValue: variant.VariantValue,
			Price:        variant.Price,
			Quantity:     input.Quantity,
			FinalPrice:   variant.Price.Mul(decimalFromInt(input.Quantity)),
		}
		if _, err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order item")
		}
		return nil

	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order item")
	}
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}
