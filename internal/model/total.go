package model

import "github.com/shopspring/decimal"

// TableTotal is derived at read time and never stored.
type TableTotal struct {
	Table       int             `json:"table"`
	OrderID     int64           `json:"order_id"`
	Outstanding decimal.Decimal `json:"outstanding_total"`
}

type TableBill struct {
	Order Order           `json:"order"`
	Total decimal.Decimal `json:"total"`
}
