package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/modacart/modacart-backend/pkg/db/models"
	"github.com/modacart/modacart-backend/pkg/enums"
)

// OrderItemDTO is the transport shape of a single order line.
type OrderItemDTO struct {
	ID           uuid.UUID         `json:"id"`
	ProductID    uuid.UUID         `json:"product_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ProductType  enums.ProductType `json:"product_type"`
	Gender       enums.Gender      `json:"gender"`
	VariantValue string            `json:"variant_value"`
	Price        decimal.Decimal   `json:"price"`
	Quantity     int               `json:"quantity"`
	FinalPrice   decimal.Decimal   `json:"final_price"`
}

// OrderDTO is the transport shape of an order and its lines.
type OrderDTO struct {
	ID            uuid.UUID                `json:"id"`
	UserID        uuid.UUID                `json:"user_id"`
	Status        enums.OrderStatus        `json:"status"`
	PaymentStatus enums.OrderPaymentStatus `json:"payment_status"`
	TotalPrice    decimal.Decimal          `json:"total_price"`
	Items         []OrderItemDTO           `json:"items"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel converts a persisted order into its transport shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}

	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Name:         item.Name,
			Description:  item.Description,
			ProductType:  item.ProductType,
			Gender:       item.Gender,
			VariantValue: item.VariantValue,
			Price:        item.Price,
			Quantity:     item.Quantity,
			FinalPrice:   item.FinalPrice,
		})
	}

	return &OrderDTO{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalPrice:    o.TotalPrice,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
