package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/modacart/modacart-backend/pkg/enums"
)

// OrderItem snapshots product identity and unit price at the time the item
// entered the cart. Quantity is the only field mutated afterwards; repeat
// adds for the same variant increment it instead of creating a new row.
type OrderItem struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_order_items_order_product_value"`
	ProductID    uuid.UUID         `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_order_items_order_product_value"`
	Name         string            `gorm:"column:name;not null"`
	Description  string            `gorm:"column:description;not null"`
	ProductType  enums.ProductType `gorm:"column:product_type;type:product_type;not null"`
	Gender       enums.Gender      `gorm:"column:gender;type:gender;not null"`
	VariantValue string            `gorm:"column:variant_value;not null;uniqueIndex:idx_order_items_order_product_value"`
	Price        decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity     int               `gorm:"column:quantity;not null"`
	FinalPrice   decimal.Decimal   `gorm:"column:final_price;type:numeric(12,2);not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
