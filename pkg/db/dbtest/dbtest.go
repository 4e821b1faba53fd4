// Package dbtest opens throwaway sqlite databases carrying the same tables,
// unique indexes and CHECK constraints the goose migrations create on
// postgres.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/retailhive/retailhive-backend/pkg/db"
)

// schema mirrors pkg/migrate/migrations (create_users, create_catalog,
// create_carts, create_orders, create_outbox) in sqlite syntax. Unique
// index and CHECK constraint names must match the migrations; schema_test.go
// fails when they drift. Money columns are TEXT so decimals round-trip
// exactly. Trigram indexes have no sqlite equivalent and are left out.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'customer',
		business_name TEXT,
		is_staff BOOLEAN NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT chk_users_role CHECK (role IN ('customer', 'retailer', 'admin'))
	)`,
	`CREATE UNIQUE INDEX ux_users_username ON users (username)`,
	`CREATE UNIQUE INDEX ux_users_email ON users (lower(email))`,
	`CREATE INDEX idx_users_role ON users (role)`,
	`CREATE TABLE categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		CONSTRAINT chk_categories_name CHECK (trim(name) <> '')
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		category_id TEXT NOT NULL,
		image_url TEXT,
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		retailer_id TEXT,
		is_approved BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT fk_products_category FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE,
		CONSTRAINT fk_products_retailer FOREIGN KEY (retailer_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT chk_products_price CHECK (CAST(price AS REAL) >= 0),
		CONSTRAINT chk_products_stock CHECK (stock_quantity >= 0)
	)`,
	`CREATE INDEX idx_products_active_created ON products (is_active, created_at DESC)`,
	`CREATE INDEX idx_products_category ON products (category_id)`,
	`CREATE INDEX idx_products_retailer ON products (retailer_id)`,
	`CREATE INDEX idx_products_approval ON products (is_approved, created_at DESC)`,
	`CREATE TABLE product_reviews (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		CONSTRAINT fk_product_reviews_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
		CONSTRAINT fk_product_reviews_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT chk_product_reviews_rating CHECK (rating BETWEEN 1 AND 5)
	)`,
	`CREATE UNIQUE INDEX ux_product_reviews_product_user ON product_reviews (product_id, user_id)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT fk_carts_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE UNIQUE INDEX ux_carts_user ON carts (user_id)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		added_at DATETIME,
		CONSTRAINT fk_cart_items_cart FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE,
		CONSTRAINT fk_cart_items_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
		CONSTRAINT chk_cart_items_quantity CHECK (quantity >= 1)
	)`,
	`CREATE UNIQUE INDEX ux_cart_items_cart_product ON cart_items (cart_id, product_id)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_amount TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT fk_orders_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT chk_orders_status CHECK (status IN ('pending', 'processing', 'shipped', 'delivered', 'cancelled')),
		CONSTRAINT chk_orders_total CHECK (CAST(total_amount AS REAL) >= 0)
	)`,
	`CREATE INDEX idx_orders_user_created ON orders (user_id, created_at DESC)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
		CONSTRAINT fk_order_items_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
		CONSTRAINT chk_order_items_quantity CHECK (quantity >= 1)
	)`,
	`CREATE INDEX idx_order_items_order ON order_items (order_id)`,
	`CREATE INDEX idx_order_items_product ON order_items (product_id)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		CONSTRAINT chk_outbox_events_type CHECK (event_type IN ('order_created', 'product_approved', 'product_rejected')),
		CONSTRAINT chk_outbox_events_aggregate CHECK (aggregate_type IN ('order', 'product'))
	)`,
	`CREATE INDEX idx_outbox_events_unpublished ON outbox_events (created_at, id) WHERE published_at IS NULL`,
	`CREATE INDEX idx_outbox_events_published_at ON outbox_events (published_at)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME,
		CONSTRAINT chk_outbox_dlq_reason CHECK (error_reason IN ('max_attempts', 'non_retryable'))
	)`,
	`CREATE INDEX idx_outbox_dlq_event ON outbox_dlq (event_id)`,
	`CREATE INDEX idx_outbox_dlq_failed_at ON outbox_dlq (failed_at DESC)`,
}

// Open returns a fresh in-memory database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// shared cache plus one connection keeps every query on the same memory db
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in the production client type.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}
