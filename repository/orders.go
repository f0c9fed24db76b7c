package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"luxio/models"

	"github.com/shopspring/decimal"
)

type Orders interface {
	Create(ctx context.Context, o *models.StoredOrder, ticketType string, ticketCodes []string) error
	ListByUser(ctx context.Context, userID int64) ([]models.StoredOrder, error)
	Get(ctx context.Context, id, userID int64) (*models.StoredOrder, error)
	DeletePending(ctx context.Context, id, userID int64) error
	UpdateStatus(ctx context.Context, id int64, next models.OrderStatus) error
	Status(ctx context.Context, id int64) (models.OrderStatus, models.PaymentMethod, error)
	ByReference(ctx context.Context, reference string, method models.PaymentMethod) (int64, models.OrderStatus, error)
}

type orderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrders(db *sql.DB) Orders {
	return &orderRepo{db: db, now: time.Now}
}

// OrderTotal sums the order lines in decimal and sets each line's subtotal.
func OrderTotal(items []models.OrderItem) float64 {
	total := decimal.Zero
	for i := range items {
		sub := decimal.NewFromFloat(items[i].Price).Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		items[i].Subtotal = sub.InexactFloat64()
		total = total.Add(sub)
	}
	return total.Round(2).InexactFloat64()
}

func (r *orderRepo) Create(ctx context.Context, o *models.StoredOrder, ticketType string, ticketCodes []string) (err error) {
	info, err := json.Marshal(o.CustomerInfo)
	if err != nil {
		return fmt.Errorf("encode customer info: %w", err)
	}
	now := r.now()
	o.CreatedAt, o.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, reference, total, status, payment_method, customer_info, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.Reference, o.Total, o.Status, o.PaymentMethod, info, now, now)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	for _, item := range o.Items {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, description, quantity, price) VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, item.ProductID, item.ProductName, item.Description, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, code := range ticketCodes {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO ticket_submissions (order_id, ticket_type, code) VALUES (?, ?, ?)`,
			o.ID, ticketType, code); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func decodeCustomer(info []byte, into *models.CustomerInfo) error {
	if len(info) == 0 {
		return nil
	}
	if err := json.Unmarshal(info, into); err != nil {
		return fmt.Errorf("decode customer info: %w", err)
	}
	return nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]models.StoredOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.reference, o.total, o.status, o.payment_method, o.customer_info, o.created_at, o.updated_at,
		       oi.product_id, oi.product_name, oi.description, oi.quantity, oi.price
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC, o.id DESC, oi.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	list := []models.StoredOrder{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			o    models.StoredOrder
			info []byte
			item models.OrderItem
		)
		if err := rows.Scan(&o.ID, &o.Reference, &o.Total, &o.Status, &o.PaymentMethod, &info, &o.CreatedAt, &o.UpdatedAt,
			&item.ProductID, &item.ProductName, &item.Description, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		item.Subtotal = decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))).InexactFloat64()

		pos, seen := index[o.ID]
		if !seen {
			o.UserID = userID
			if err := decodeCustomer(info, &o.CustomerInfo); err != nil {
				return nil, fmt.Errorf("order %d: %w", o.ID, err)
			}
			o.Items = []models.OrderItem{}
			list = append(list, o)
			pos = len(list) - 1
			index[o.ID] = pos
		}
		list[pos].Items = append(list[pos].Items, item)
	}
	return list, rows.Err()
}

func (r *orderRepo) Get(ctx context.Context, id, userID int64) (*models.StoredOrder, error) {
	var (
		o    models.StoredOrder
		info []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, reference, total, status, payment_method, customer_info, created_at, updated_at
		FROM orders
		WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&o.ID, &o.UserID, &o.Reference, &o.Total, &o.Status, &o.PaymentMethod, &info, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := decodeCustomer(info, &o.CustomerInfo); err != nil {
		return nil, fmt.Errorf("order %d: %w", o.ID, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_name, description, quantity, price
		FROM order_items
		WHERE order_id = ?
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	o.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Description, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	OrderTotal(o.Items)
	return &o, rows.Err()
}

// DeletePending removes an order the user owns, as long as it was never paid.
func (r *orderRepo) DeletePending(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE id = ? AND user_id = ? AND status IN (?, ?)`,
		id, userID, models.OrderPending, models.OrderCancelled)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepo) Status(ctx context.Context, id int64) (models.OrderStatus, models.PaymentMethod, error) {
	var (
		status models.OrderStatus
		method models.PaymentMethod
	)
	err := r.db.QueryRowContext(ctx, `SELECT status, payment_method FROM orders WHERE id = ?`, id).Scan(&status, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("order status: %w", err)
	}
	return status, method, nil
}

// ByReference finds the latest order placed with method under reference. Gateways
// only know the reference.
func (r *orderRepo) ByReference(ctx context.Context, reference string, method models.PaymentMethod) (int64, models.OrderStatus, error) {
	var (
		id     int64
		status models.OrderStatus
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status FROM orders WHERE reference = ? AND payment_method = ? ORDER BY id DESC LIMIT 1`,
		reference, method).Scan(&id, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("order by reference: %w", err)
	}
	return id, status, nil
}

// UpdateStatus moves the order to next if the transition is allowed from its current
// status. The check and the write are guarded by the current status in the WHERE clause.
func (r *orderRepo) UpdateStatus(ctx context.Context, id int64, next models.OrderStatus) error {
	current, _, err := r.Status(ctx, id)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, current, next)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		next, r.now(), id, current)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidStatus)
	}
	return nil
}
