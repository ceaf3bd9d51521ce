package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	Table        int             `json:"table"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Gratuity     decimal.Decimal `json:"gratuity"`
	TotalCharged decimal.Decimal `json:"total_charged"`
	Method       PaymentMethod   `json:"method"`
	Tendered     decimal.Decimal `json:"tendered"`
	Change       decimal.Decimal `json:"change"`
	CashierRef   string          `json:"cashier_ref"`
	SettledAt    time.Time       `json:"settled_at"`
}

// SettleRequest carries optional amounts as pointers; nil means the caller left it out.
type SettleRequest struct {
	OrderID      int64            `json:"order_id"`
	Table        int              `json:"table"`
	Subtotal     *decimal.Decimal `json:"subtotal"`
	Gratuity     *decimal.Decimal `json:"gratuity,omitempty"`
	TotalCharged *decimal.Decimal `json:"total_charged,omitempty"`
	Method       PaymentMethod    `json:"method"`
	Tendered     *decimal.Decimal `json:"tendered,omitempty"`
	Change       *decimal.Decimal `json:"change,omitempty"`
	CashierRef   string           `json:"cashier_ref,omitempty"`
}
