package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/pkg/db/models"
	pkgerrors "github.com/modacart/modacart-backend/pkg/errors"
)

// Reserve decrements variant stock inside the caller's transaction. The
// decrement is guarded by the stock check in the WHERE clause so two
// concurrent reservations can never drive stock negative: the row update is
// atomic and the loser of the race simply matches zero rows.
func Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND is_active = ? AND stock >= ?", variantID, true, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve stock")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// No row matched: either the variant is gone/inactive or stock ran out.
	var variant models.ProductVariant
	err := tx.WithContext(ctx).First(&variant, "id = ?", variantID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	case !variant.IsActive:
		return pkgerrors.New(pkgerrors.CodeValidation, "product variant is not available")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	}
}

// Release returns previously reserved quantity to the variant's stock.
func Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release stock")
	}
	return nil
}

// ReserveOrderItems re-reserves stock for every line item of an order, used
// when a failed payment is retried after the original reservation was
// released. Each decrement carries the same stock guard as Reserve; if any
// line can no longer be covered the whole transaction rolls back.
func ReserveOrderItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	for _, item := range items {
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("product_id = ? AND variant_value = ? AND is_active = ? AND stock >= ?",
				item.ProductID, item.VariantValue, true, item.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id":    item.ProductID,
					"variant_value": item.VariantValue,
				})
		}
	}
	return nil
}

// ReleaseOrderItems restores stock for every line item of an order. Items
// whose variant has since been removed from the catalog are skipped; there is
// no live row left to return the units to.
func ReleaseOrderItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	for _, item := range items {
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("product_id = ? AND variant_value = ?", item.ProductID, item.VariantValue).
			UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release stock")
		}
	}
	return nil
}
