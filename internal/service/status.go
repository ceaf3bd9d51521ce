package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"comandas/internal/model"
	"comandas/internal/notify"
)

type StatusService struct {
	db     *sql.DB
	events EventPublisher
}

func NewStatusService(db *sql.DB, events EventPublisher) *StatusService {
	if events == nil {
		events = noopPublisher{}
	}
	return &StatusService{db: db, events: events}
}

// SetItemStatus stores the item status and advances the owning order to READY
// once every one of its items is READY. The order row is locked first so
// concurrent item updates evaluate the aggregate one at a time.
func (s *StatusService) SetItemStatus(ctx context.Context, itemID int64, status model.ItemStatus) error {
	if itemID <= 0 {
		return validationErr("item id is required")
	}
	if !status.Valid() {
		return validationErr("invalid item status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	var (
		orderID     int64
		table       int
		orderStatus model.OrderStatus
	)
	err = tx.QueryRowContext(ctx, `
		SELECT o.id, o.table_number, o.status
		FROM line_items li
		INNER JOIN orders o ON o.id = li.order_id
		WHERE li.id = $1
		FOR UPDATE OF o
	`, itemID).Scan(&orderID, &table, &orderStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("line item %d", itemID)
	}
	if err != nil {
		return storageErr("lock order of item", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE line_items SET status = $1 WHERE id = $2`, status, itemID); err != nil {
		return storageErr("update item status", err)
	}

	var total, ready int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'READY')
		FROM line_items
		WHERE order_id = $1
	`, orderID).Scan(&total, &ready)
	if err != nil {
		return storageErr("count ready items", err)
	}

	advanced := false
	if total > 0 && total == ready && orderStatus != model.OrderReady && orderStatus != model.OrderClosed {
		if _, err = tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, model.OrderReady, orderID); err != nil {
			return storageErr("advance order status", err)
		}
		orderStatus = model.OrderReady
		advanced = true
	}

	if err = tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}

	s.publish(ctx, notify.ItemStatusChanged(notify.ItemStatusChange{
		ItemID:      itemID,
		OrderID:     orderID,
		Table:       table,
		Status:      status,
		OrderStatus: orderStatus,
	}))
	if advanced {
		s.publish(ctx, notify.OrderStatusChanged(notify.OrderStatusChange{
			OrderID: orderID,
			Table:   table,
			Status:  model.OrderReady,
		}))
	}

	return nil
}

// SetOrderStatus overwrites the order status without touching its items.
// CLOSED set here is recorded as an override, distinct from a settlement.
func (s *StatusService) SetOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	if orderID <= 0 {
		return validationErr("order id is required")
	}
	if !status.Valid() {
		return validationErr("invalid order status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	var (
		table   int
		current model.OrderStatus
		reason  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT table_number, status, COALESCE(close_reason, '') FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(&table, &current, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("order %d", orderID)
	}
	if err != nil {
		return storageErr("lock order", err)
	}

	if current == status {
		return nil
	}

	switch {
	case status == model.OrderClosed:
		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, close_reason = $2 WHERE id = $3`,
			status, model.CloseOverride, orderID)
	case current == model.OrderClosed:
		if model.CloseReason(reason) == model.CloseSettled {
			return conflictErr("order %d is settled and cannot be reopened", orderID)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, close_reason = NULL WHERE id = $2`, status, orderID)
	default:
		_, err = tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, status, orderID)
	}
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return conflictErr("table %d already has another open order", table)
		}
		return storageErr("update order status", err)
	}

	if err = tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}

	s.publish(ctx, notify.OrderStatusChanged(notify.OrderStatusChange{
		OrderID:  orderID,
		Table:    table,
		Status:   status,
		Override: status == model.OrderClosed,
	}))

	return nil
}

func (s *StatusService) publish(ctx context.Context, ev notify.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Error("publish status event", "event", ev.Kind, "error", err)
	}
}
