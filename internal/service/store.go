package service

import (
	"context"
	"database/sql"
	"errors"

	"comandas/internal/model"
	"comandas/internal/notify"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventPublisher receives lifecycle events once the writing transaction has committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev notify.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, notify.Event) error { return nil }

const selectOrderSQL = `
	SELECT id, table_number, staff_ref, status, COALESCE(close_reason, ''), created_at
	FROM orders
	WHERE id = $1
`

const selectItemsSQL = `
	SELECT li.id, li.order_id, li.product_id, p.name, p.price, li.quantity, li.note, li.seat_number, li.status
	FROM line_items li
	INNER JOIN products p ON p.id = li.product_id
	WHERE li.order_id = $1
	ORDER BY li.id
`

func loadOrder(ctx context.Context, q queryer, id int64) (*model.Order, error) {
	var (
		o        model.Order
		staffRef sql.NullString
		reason   string
	)
	err := q.QueryRowContext(ctx, selectOrderSQL, id).
		Scan(&o.ID, &o.Table, &staffRef, &o.Status, &reason, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("order %d", id)
	}
	if err != nil {
		return nil, storageErr("select order", err)
	}
	if staffRef.Valid {
		o.StaffRef = &staffRef.String
	}
	o.CloseReason = model.CloseReason(reason)

	rows, err := q.QueryContext(ctx, selectItemsSQL, id)
	if err != nil {
		return nil, storageErr("query line items", err)
	}
	defer rows.Close()

	o.Items = []model.LineItem{}
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("line items iteration", err)
	}

	return &o, nil
}

func scanLineItem(rows *sql.Rows) (model.LineItem, error) {
	var li model.LineItem
	if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.ProductName, &li.UnitPrice,
		&li.Quantity, &li.Note, &li.SeatNumber, &li.Status); err != nil {
		return li, storageErr("scan line item", err)
	}
	li.LineTotal = li.Subtotal()
	return li, nil
}
