package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists orders in the orders/order_items tables.
type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

const orderColumns = `order_id, thread_key, pharmacy_name, seller_name, COALESCE(customer_name, ''),
	total_value::text, status, created_at, updated_at`

// CreateOrder writes the order and its items in one transaction. Writes for
// the same thread are serialized with a transaction-scoped advisory lock.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", storeErr("create order", err)
	}
	if order.Status == "" {
		order.Status = StatusPending
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, order.ThreadKey); err != nil {
		return "", storeErr("lock thread", err)
	}

	insertOrder := `
		INSERT INTO orders (order_id, thread_key, pharmacy_name, seller_name, customer_name, total_value, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insertOrder,
		order.ID, order.ThreadKey, order.PharmacyName, order.SellerName, order.CustomerName,
		order.TotalValue.StringFixed(2), string(order.Status),
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return "", storeErr("insert order", err)
	}

	insertItem := `
		INSERT INTO order_items (order_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.QueryRow(ctx, insertItem,
			order.ID, item.ProductName, item.Quantity, item.UnitPrice.StringFixed(2),
		).Scan(&item.ID); err != nil {
			return "", storeErr(fmt.Sprintf("insert item %d", i), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", storeErr("commit", err)
	}
	return order.ID, nil
}

// SetStatus only touches rows whose status differs, so repeating a transition
// reports zero affected rows.
func (s *PostgresStore) SetStatus(ctx context.Context, orderID string, status Status) (int64, error) {
	if !status.Valid() {
		return 0, storeErr("set status", ErrInvalidStatus)
	}
	query := `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE order_id = $1 AND status <> $2
	`
	ct, err := s.pool.Exec(ctx, query, orderID, string(status))
	if err != nil {
		return 0, storeErr("set status", err)
	}
	return ct.RowsAffected(), nil
}

// GetOrder loads an order with its items. Returns ErrOrderNotFound when missing.
func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	order, err := scanOrder(s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, storeErr("get order", err)
	}
	if order.Items, err = s.loadItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStore) LatestForThread(ctx context.Context, threadKey string) (*Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE thread_key = $1
		ORDER BY created_at DESC, order_id DESC
		LIMIT 1`
	order, err := scanOrder(s.pool.QueryRow(ctx, query, threadKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, storeErr("latest for thread", err)
	}
	if order.Items, err = s.loadItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStore) loadItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_name, quantity, unit_price::text
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, storeErr("load items", err)
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var (
			item  OrderItem
			price string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Quantity, &price); err != nil {
			return nil, storeErr("scan item", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, storeErr("parse unit price", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load items", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order  Order
		total  string
		status string
	)
	if err := row.Scan(&order.ID, &order.ThreadKey, &order.PharmacyName, &order.SellerName, &order.CustomerName,
		&total, &status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}
	value, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total_value %q: %w", total, err)
	}
	order.TotalValue = value
	order.Status = Status(status)
	return &order, nil
}
