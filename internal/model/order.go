package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          int64       `json:"order_id"`
	Table       int         `json:"table"`
	StaffRef    *string     `json:"staff_ref,omitempty"`
	Status      OrderStatus `json:"status"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Items       []LineItem  `json:"items"`
}

type LineItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Note        string          `json:"note"`
	SeatNumber  int             `json:"seat_number"`
	Status      ItemStatus      `json:"status"`
	// LineTotal is filled when the item is read back, for bill views.
	LineTotal decimal.Decimal `json:"line_total"`
}

// Subtotal is quantity times unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Total sums the subtotals of every line item.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

type SubmitItem struct {
	ProductID  int64  `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note,omitempty"`
	SeatNumber int    `json:"seat_number,omitempty"`
}

type SubmitRequest struct {
	Table    int          `json:"table"`
	Items    []SubmitItem `json:"items"`
	StaffRef string       `json:"staff_ref,omitempty"`
}
