package service

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"comandas/internal/notify"
)

var createdAt = time.Date(2026, 10, 19, 20, 15, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []notify.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func pgErr(code string) error {
	return &pgconn.PgError{Code: code, Message: "constraint"}
}

type itemRow struct {
	id, product int64
	name, price string
	qty         int
	note        string
	seat        int
	status      string
}

func expectLoadOrder(mock sqlmock.Sqlmock, id int64, table int, status string, items ...itemRow) {
	mock.ExpectQuery(q("SELECT id, table_number, staff_ref, status, COALESCE(close_reason, ''), created_at FROM orders WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "table_number", "staff_ref", "status", "close_reason", "created_at"}).
			AddRow(id, table, nil, status, "", createdAt))

	rows := sqlmock.NewRows([]string{"id", "order_id", "product_id", "name", "price", "quantity", "note", "seat_number", "status"})
	for _, it := range items {
		rows.AddRow(it.id, id, it.product, it.name, it.price, it.qty, it.note, it.seat, it.status)
	}
	mock.ExpectQuery(q("FROM line_items li INNER JOIN products p ON p.id = li.product_id WHERE li.order_id = $1")).
		WithArgs(id).
		WillReturnRows(rows)
}
