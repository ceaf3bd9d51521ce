package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    table_number INT NOT NULL CHECK (table_number > 0),
    staff_ref TEXT,
    status TEXT NOT NULL DEFAULT 'PENDING'
        CHECK (status IN ('PENDING', 'IN_PREPARATION', 'READY', 'CLOSED')),
    close_reason TEXT CHECK (close_reason IN ('SETTLED', 'OVERRIDE')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS line_items (
    id BIGSERIAL PRIMARY KEY,
    order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id BIGINT NOT NULL REFERENCES products(id),
    quantity INT NOT NULL CHECK (quantity >= 1),
    note TEXT NOT NULL DEFAULT '',
    seat_number INT NOT NULL DEFAULT 1 CHECK (seat_number >= 1),
    status TEXT NOT NULL DEFAULT 'PENDING'
        CHECK (status IN ('PENDING', 'IN_PREPARATION', 'READY'))
);

CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    order_id BIGINT NOT NULL UNIQUE REFERENCES orders(id),
    table_number INT NOT NULL,
    subtotal NUMERIC(10,2) NOT NULL CHECK (subtotal >= 0),
    gratuity NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (gratuity >= 0),
    total_charged NUMERIC(10,2) NOT NULL,
    method TEXT NOT NULL CHECK (method IN ('cash', 'card', 'other')),
    tendered NUMERIC(10,2) NOT NULL DEFAULT 0,
    change_due NUMERIC(10,2) NOT NULL DEFAULT 0,
    cashier_ref TEXT NOT NULL,
    settled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (total_charged = subtotal + gratuity)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_open_table ON orders(table_number) WHERE status <> 'CLOSED';
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_line_items_order_id ON line_items(order_id);
`

func InitSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
