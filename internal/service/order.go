package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"comandas/internal/model"
	"comandas/internal/notify"
)

// tableLockNamespace is the first key of the advisory lock taken per table
// while its open order is found or created.
const tableLockNamespace = 4201

const defaultSeat = 1

type OrderService struct {
	db     *sql.DB
	events EventPublisher
}

func NewOrderService(db *sql.DB, events EventPublisher) *OrderService {
	if events == nil {
		events = noopPublisher{}
	}
	return &OrderService{db: db, events: events}
}

// Submit appends the requested items to the table's open order, creating the
// order first when the table has none. The returned order holds every line
// item of the tab, not only the ones added by this call.
func (s *OrderService) Submit(ctx context.Context, req model.SubmitRequest) (*model.Order, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	// Serializes find-or-create for one table; released on commit or rollback.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, tableLockNamespace, req.Table); err != nil {
		return nil, storageErr("lock table", err)
	}

	var orderID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM orders
		WHERE table_number = $1 AND status <> 'CLOSED'
		ORDER BY created_at DESC
		LIMIT 1
	`, req.Table).Scan(&orderID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var staffRef sql.NullString
		if req.StaffRef != "" {
			staffRef = sql.NullString{String: req.StaffRef, Valid: true}
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (table_number, staff_ref, status, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id`,
			req.Table, staffRef, model.OrderPending,
		).Scan(&orderID)
		if err != nil {
			if pgCode(err) == pgUniqueViolation {
				return nil, conflictErr("table %d already has an open order", req.Table)
			}
			return nil, storageErr("insert order", err)
		}
		slog.Debug("order opened", "order_id", orderID, "table", req.Table)
	case err != nil:
		return nil, storageErr("find open order", err)
	}

	for i, item := range req.Items {
		seat := item.SeatNumber
		if seat == 0 {
			seat = defaultSeat
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO line_items (order_id, product_id, quantity, note, seat_number, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, item.ProductID, item.Quantity, item.Note, seat, model.ItemPending)
		if err != nil {
			switch pgCode(err) {
			case pgForeignKeyViolation:
				return nil, validationErr("item %d: unknown product %d", i, item.ProductID)
			case pgCheckViolation:
				return nil, validationErr("item %d: rejected by store constraints", i)
			}
			return nil, storageErr("insert line item", err)
		}
	}

	order, err := loadOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, storageErr("commit tx", err)
	}

	if err := s.events.Publish(ctx, notify.OrderCreated(*order)); err != nil {
		slog.Error("publish order created", "order_id", order.ID, "error", err)
	}

	return order, nil
}

func validateSubmit(req model.SubmitRequest) error {
	if req.Table <= 0 {
		return validationErr("table is required")
	}
	if len(req.Items) == 0 {
		return validationErr("order must contain at least one item")
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return validationErr("item %d: product is required", i)
		}
		if item.Quantity < 1 {
			return validationErr("item %d: quantity must be at least 1", i)
		}
		if item.SeatNumber < 0 {
			return validationErr("item %d: seat number must be positive", i)
		}
	}
	return nil
}

func (s *OrderService) Get(ctx context.Context, id int64) (*model.Order, error) {
	if id <= 0 {
		return nil, validationErr("order id is required")
	}
	return loadOrder(ctx, s.db, id)
}

// ListOpen returns every order that is not CLOSED, newest first, with its items.
func (s *OrderService) ListOpen(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_number, staff_ref, status, created_at
		FROM orders
		WHERE status <> 'CLOSED'
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, storageErr("query open orders", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	index := make(map[int64]int)
	for rows.Next() {
		var o model.Order
		var staffRef sql.NullString
		if err := rows.Scan(&o.ID, &o.Table, &staffRef, &o.Status, &o.CreatedAt); err != nil {
			return nil, storageErr("scan order", err)
		}
		if staffRef.Valid {
			o.StaffRef = &staffRef.String
		}
		o.Items = []model.LineItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr("orders iteration", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT li.id, li.order_id, li.product_id, p.name, p.price, li.quantity, li.note, li.seat_number, li.status
		FROM line_items li
		INNER JOIN products p ON p.id = li.product_id
		INNER JOIN orders o ON o.id = li.order_id
		WHERE o.status <> 'CLOSED'
		ORDER BY li.id
	`)
	if err != nil {
		return nil, storageErr("query open line items", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		li, err := scanLineItem(itemRows)
		if err != nil {
			return nil, err
		}
		// an order opened between the two reads is skipped
		if i, ok := index[li.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, li)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, storageErr("line items iteration", err)
	}

	return orders, nil
}

// Delete removes an order together with its line items. Orders closed by a
// settlement are kept because their payment references them.
func (s *OrderService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return validationErr("order id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	var reason string
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(close_reason, '') FROM orders WHERE id = $1 FOR UPDATE`, id,
	).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("order %d", id)
	}
	if err != nil {
		return storageErr("lock order", err)
	}
	if model.CloseReason(reason) == model.CloseSettled {
		return conflictErr("order %d is settled and cannot be deleted", id)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return conflictErr("order %d is referenced by a payment", id)
		}
		return storageErr("delete order", err)
	}

	if err = tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}
	return nil
}
