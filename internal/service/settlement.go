package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"comandas/internal/model"
	"comandas/internal/notify"
)

const defaultCashier = "system"

// roundingTolerance is how far a caller-supplied total may drift from subtotal + gratuity.
var roundingTolerance = decimal.New(1, -2)

// TotalsRefresher is told when outstanding totals changed outside its refresh cadence.
type TotalsRefresher interface {
	Refresh()
}

type SettlementService struct {
	db      *sql.DB
	events  EventPublisher
	refresh TotalsRefresher
}

func NewSettlementService(db *sql.DB, events EventPublisher, refresh TotalsRefresher) *SettlementService {
	if events == nil {
		events = noopPublisher{}
	}
	return &SettlementService{db: db, events: events, refresh: refresh}
}

// Settle records the payment and closes the order in one transaction. An
// order can be settled once; a second attempt is a conflict.
func (s *SettlementService) Settle(ctx context.Context, req model.SettleRequest) (*model.Payment, error) {
	p, err := buildPayment(req)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	var (
		table  int
		status model.OrderStatus
	)
	err = tx.QueryRowContext(ctx,
		`SELECT table_number, status FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID,
	).Scan(&table, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("order %d", p.OrderID)
	}
	if err != nil {
		return nil, storageErr("lock order", err)
	}
	if status == model.OrderClosed {
		return nil, conflictErr("order %d is already closed", p.OrderID)
	}
	if table != p.Table {
		return nil, validationErr("order %d belongs to table %d, not %d", p.OrderID, table, p.Table)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (
			order_id, table_number, subtotal, gratuity, total_charged,
			method, tendered, change_due, cashier_ref, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, settled_at
	`,
		p.OrderID, p.Table, p.Subtotal, p.Gratuity, p.TotalCharged,
		p.Method, p.Tendered, p.Change, p.CashierRef,
	).Scan(&p.ID, &p.SettledAt)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return nil, conflictErr("order %d already has a payment", p.OrderID)
		case pgCheckViolation:
			return nil, validationErr("payment amounts rejected by store constraints")
		}
		return nil, storageErr("insert payment", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, close_reason = $2 WHERE id = $3`,
		model.OrderClosed, model.CloseSettled, p.OrderID)
	if err != nil {
		return nil, storageErr("close order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr("close order", err)
	}
	if n != 1 {
		return nil, conflictErr("order %d vanished during settlement", p.OrderID)
	}

	if err = tx.Commit(); err != nil {
		return nil, storageErr("commit tx", err)
	}

	if err := s.events.Publish(ctx, notify.OrderSettled(*p)); err != nil {
		slog.Error("publish order settled", "order_id", p.OrderID, "error", err)
	}
	if s.refresh != nil {
		s.refresh.Refresh()
	}

	return p, nil
}

func buildPayment(req model.SettleRequest) (*model.Payment, error) {
	if req.OrderID <= 0 {
		return nil, validationErr("order id is required")
	}
	if req.Table <= 0 {
		return nil, validationErr("table is required")
	}
	if req.Subtotal == nil {
		return nil, validationErr("subtotal is required")
	}
	if req.Method == "" {
		return nil, validationErr("payment method is required")
	}
	if !req.Method.Valid() {
		return nil, validationErr("unknown payment method %q", req.Method)
	}

	p := &model.Payment{
		OrderID:    req.OrderID,
		Table:      req.Table,
		Subtotal:   *req.Subtotal,
		Gratuity:   orZero(req.Gratuity),
		Method:     req.Method,
		Tendered:   orZero(req.Tendered),
		Change:     orZero(req.Change),
		CashierRef: req.CashierRef,
	}
	if p.CashierRef == "" {
		p.CashierRef = defaultCashier
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", p.Subtotal},
		{"gratuity", p.Gratuity},
		{"tendered", p.Tendered},
		{"change", p.Change},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return nil, validationErr("%s must not be negative", a.name)
		}
	}

	p.TotalCharged = p.Subtotal.Add(p.Gratuity)
	if req.TotalCharged != nil && req.TotalCharged.Sub(p.TotalCharged).Abs().GreaterThan(roundingTolerance) {
		return nil, validationErr("total charged %s does not match subtotal plus gratuity %s",
			req.TotalCharged.String(), p.TotalCharged.String())
	}

	return p, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
