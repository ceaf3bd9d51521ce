package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comandas/internal/model"
	"comandas/internal/notify"
)

const findOpenOrderSQL = "SELECT id FROM orders WHERE table_number = $1 AND status <> 'CLOSED'"

func expectTableLock(mock sqlmock.Sqlmock, table int) {
	mock.ExpectExec(q("SELECT pg_advisory_xact_lock($1, $2)")).
		WithArgs(tableLockNamespace, table).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestSubmit_OpensOrderForEmptyTable(t *testing.T) {
	db, mock := newMock(t)
	events := &recordingPublisher{}
	svc := NewOrderService(db, events)

	mock.ExpectBegin()
	expectTableLock(mock, 5)
	mock.ExpectQuery(q(findOpenOrderSQL)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("INSERT INTO orders (table_number, staff_ref, status, created_at)")).
		WithArgs(5, "waiter-7", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectExec(q("INSERT INTO line_items")).
		WithArgs(10, 1, 2, "", 1, "PENDING").
		WillReturnResult(sqlmock.NewResult(100, 1))
	expectLoadOrder(mock, 10, 5, "PENDING",
		itemRow{id: 100, product: 1, name: "Soup", price: "7.50", qty: 2, seat: 1, status: "PENDING"})
	mock.ExpectCommit()

	order, err := svc.Submit(context.Background(), model.SubmitRequest{
		Table:    5,
		StaffRef: "waiter-7",
		Items:    []model.SubmitItem{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), order.ID)
	assert.Equal(t, model.OrderPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, model.ItemPending, order.Items[0].Status)
	assert.True(t, decimal.RequireFromString("15").Equal(order.Total()))

	assert.Equal(t, []notify.Kind{notify.KindOrderCreated}, events.kinds())
}

func TestSubmit_AppendsToOpenOrder(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db, nil)

	mock.ExpectBegin()
	expectTableLock(mock, 5)
	mock.ExpectQuery(q(findOpenOrderSQL)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectExec(q("INSERT INTO line_items")).
		WithArgs(10, 2, 1, "no crust", 3, "PENDING").
		WillReturnResult(sqlmock.NewResult(101, 1))
	expectLoadOrder(mock, 10, 5, "PENDING",
		itemRow{id: 100, product: 1, name: "Soup", price: "7.50", qty: 2, seat: 1, status: "PENDING"},
		itemRow{id: 101, product: 2, name: "Bread", price: "2.00", qty: 1, note: "no crust", seat: 3, status: "PENDING"})
	mock.ExpectCommit()

	order, err := svc.Submit(context.Background(), model.SubmitRequest{
		Table: 5,
		Items: []model.SubmitItem{{ProductID: 2, Quantity: 1, Note: "no crust", SeatNumber: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), order.ID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Soup", order.Items[0].ProductName)
	assert.Equal(t, "Bread", order.Items[1].ProductName)
	assert.True(t, decimal.RequireFromString("17").Equal(order.Total()))
}

func TestSubmit_Validation(t *testing.T) {
	db, _ := newMock(t)
	events := &recordingPublisher{}
	svc := NewOrderService(db, events)

	cases := map[string]model.SubmitRequest{
		"no table":      {Items: []model.SubmitItem{{ProductID: 1, Quantity: 1}}},
		"no items":      {Table: 5},
		"no product":    {Table: 5, Items: []model.SubmitItem{{Quantity: 1}}},
		"zero quantity": {Table: 5, Items: []model.SubmitItem{{ProductID: 1}}},
		"negative seat": {Table: 5, Items: []model.SubmitItem{{ProductID: 1, Quantity: 1, SeatNumber: -2}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, events.kinds())
}

func TestSubmit_UnknownProductRollsBack(t *testing.T) {
	db, mock := newMock(t)
	events := &recordingPublisher{}
	svc := NewOrderService(db, events)

	mock.ExpectBegin()
	expectTableLock(mock, 8)
	mock.ExpectQuery(q(findOpenOrderSQL)).WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("INSERT INTO orders")).
		WithArgs(8, nil, "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(q("INSERT INTO line_items")).
		WillReturnError(pgErr(pgForeignKeyViolation))
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), model.SubmitRequest{
		Table: 8,
		Items: []model.SubmitItem{{ProductID: 999, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "unknown product 999")
	assert.Empty(t, events.kinds())
}

func TestSubmit_DuplicateOpenOrderIsConflict(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db, nil)

	mock.ExpectBegin()
	expectTableLock(mock, 5)
	mock.ExpectQuery(q(findOpenOrderSQL)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("INSERT INTO orders")).
		WillReturnError(pgErr(pgUniqueViolation))
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), model.SubmitRequest{
		Table: 5,
		Items: []model.SubmitItem{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestSubmit_CommitFailureIsNotPublished(t *testing.T) {
	db, mock := newMock(t)
	events := &recordingPublisher{}
	svc := NewOrderService(db, events)

	mock.ExpectBegin()
	expectTableLock(mock, 5)
	mock.ExpectQuery(q(findOpenOrderSQL)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectExec(q("INSERT INTO line_items")).
		WillReturnResult(sqlmock.NewResult(100, 1))
	expectLoadOrder(mock, 10, 5, "PENDING",
		itemRow{id: 100, product: 1, name: "Soup", price: "7.50", qty: 1, seat: 1, status: "PENDING"})
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := svc.Submit(context.Background(), model.SubmitRequest{
		Table: 5,
		Items: []model.SubmitItem{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, events.kinds())
}

func TestSubmit_BeginFailureIsStorage(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db, nil)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := svc.Submit(context.Background(), model.SubmitRequest{
		Table: 5,
		Items: []model.SubmitItem{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestGet_NotFound(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db, nil)

	mock.ExpectQuery(q("FROM orders WHERE id = $1")).WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "table_number", "staff_ref", "status", "close_reason", "created_at"}))

	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOpen_GroupsItemsByOrder(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db, nil)

	mock.ExpectQuery(q("SELECT id, table_number, staff_ref, status, created_at FROM orders WHERE status <> 'CLOSED'")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "table_number", "staff_ref", "status", "created_at"}).
			AddRow(12, 3, "waiter-1", "IN_PREPARATION", createdAt).
			AddRow(10, 5, nil, "PENDING", createdAt))
	mock.ExpectQuery(q("INNER JOIN orders o ON o.id = li.order_id WHERE o.status <> 'CLOSED'")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "name", "price", "quantity", "note", "seat_number", "status"}).
			AddRow(100, 10, 1, "Soup", "7.50", 2, "", 1, "PENDING").
			AddRow(101, 12, 2, "Bread", "2.00", 1, "", 2, "READY").
			AddRow(102, 10, 2, "Bread", "2.00", 1, "", 1, "PENDING").
			AddRow(103, 99, 2, "Bread", "2.00", 1, "", 1, "PENDING"))

	orders, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, int64(12), orders[0].ID)
	require.NotNil(t, orders[0].StaffRef)
	assert.Equal(t, "waiter-1", *orders[0].StaffRef)
	assert.Len(t, orders[0].Items, 1)

	assert.Nil(t, orders[1].StaffRef)
	require.Len(t, orders[1].Items, 2)
	assert.Equal(t, int64(100), orders[1].Items[0].ID)
	assert.Equal(t, int64(102), orders[1].Items[1].ID)
}

func TestListOpen_Empty(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db, nil)

	mock.ExpectQuery(q("FROM orders WHERE status <> 'CLOSED'")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "table_number", "staff_ref", "status", "created_at"}))

	orders, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestDelete(t *testing.T) {
	lockSQL := q("SELECT COALESCE(close_reason, '') FROM orders WHERE id = $1 FOR UPDATE")

	t.Run("open order", func(t *testing.T) {
		db, mock := newMock(t)
		svc := NewOrderService(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"close_reason"}).AddRow(""))
		mock.ExpectExec(q("DELETE FROM orders WHERE id = $1")).WithArgs(10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.Delete(context.Background(), 10))
	})

	t.Run("settled order", func(t *testing.T) {
		db, mock := newMock(t)
		svc := NewOrderService(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"close_reason"}).AddRow("SETTLED"))
		mock.ExpectRollback()

		require.ErrorIs(t, svc.Delete(context.Background(), 10), ErrConflict)
	})

	t.Run("missing order", func(t *testing.T) {
		db, mock := newMock(t)
		svc := NewOrderService(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"close_reason"}))
		mock.ExpectRollback()

		require.ErrorIs(t, svc.Delete(context.Background(), 10), ErrNotFound)
	})
}
