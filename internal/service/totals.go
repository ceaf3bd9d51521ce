package service

import (
	"context"
	"database/sql"
	"errors"

	"comandas/internal/model"
)

type TotalsService struct {
	db *sql.DB
}

func NewTotalsService(db *sql.DB) *TotalsService {
	return &TotalsService{db: db}
}

// CurrentTotals returns the outstanding amount of every table with an open
// order, ordered by table. Tables without an open order are left out.
func (s *TotalsService) CurrentTotals(ctx context.Context) ([]model.TableTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.table_number, o.id, COALESCE(SUM(li.quantity * p.price), 0)
		FROM orders o
		LEFT JOIN line_items li ON li.order_id = o.id
		LEFT JOIN products p ON p.id = li.product_id
		WHERE o.status <> 'CLOSED'
		GROUP BY o.table_number, o.id
		ORDER BY o.table_number
	`)
	if err != nil {
		return nil, storageErr("query totals", err)
	}
	defer rows.Close()

	totals := []model.TableTotal{}
	for rows.Next() {
		var t model.TableTotal
		if err := rows.Scan(&t.Table, &t.OrderID, &t.Outstanding); err != nil {
			return nil, storageErr("scan total", err)
		}
		totals = append(totals, t)
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr("totals iteration", err)
	}

	return totals, nil
}

// TableDetail returns the open order of a table with its priced items.
func (s *TotalsService) TableDetail(ctx context.Context, table int) (*model.TableBill, error) {
	if table <= 0 {
		return nil, validationErr("table is required")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM orders
		WHERE table_number = $1 AND status <> 'CLOSED'
		ORDER BY created_at DESC
		LIMIT 1
	`, table).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("no open order for table %d", table)
	}
	if err != nil {
		return nil, storageErr("find open order", err)
	}

	order, err := loadOrder(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	return &model.TableBill{Order: *order, Total: order.Total()}, nil
}
