package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"luxio/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersCreate_WithTickets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrders(db)
	o := &models.StoredOrder{
		UserID:        7,
		Reference:     "LX12345678",
		Total:         30,
		Status:        models.OrderPending,
		PaymentMethod: models.PaymentPrepaidTickets,
		Items: []models.OrderItem{
			{ProductID: "p1", ProductName: "Phone", Description: "Black", Quantity: 2, Price: 15},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders (user_id, reference, total, status, payment_method, customer_info, created_at, updated_at)`)).
		WithArgs(int64(7), "LX12345678", 30.0, "pending", "prepaid-tickets", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items`)).
		WithArgs(int64(11), "p1", "Phone", "Black", 2, 15.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ticket_submissions`)).
		WithArgs(int64(11), "transcash", "CODE-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o, "transcash", []string{"CODE-1"}))
	assert.Equal(t, int64(11), o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersCreate_RollsBackOnItemError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	o := &models.StoredOrder{
		UserID: 7, Reference: "LX1", Status: models.OrderPending, PaymentMethod: models.PaymentBankTransfer,
		Items: []models.OrderItem{{ProductID: "p1", ProductName: "Phone", Quantity: 1, Price: 1}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders`)).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items`)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewOrders(db).Create(context.Background(), o, "", nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersListByUser_GroupsItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "reference", "total", "status", "payment_method", "customer_info", "created_at", "updated_at",
		"product_id", "product_name", "description", "quantity", "price"}
	info := []byte(`{"email":"ana@example.com"}`)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders o`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, "LX2", 10.0, "paid", "nowpayments", info, now, now, "p2", "Case", "", 1, 10.0).
			AddRow(1, "LX1", 45.0, "pending", "bank-transfer", info, now, now, "p1", "Phone", "Black", 2, 20.0).
			AddRow(1, "LX1", 45.0, "pending", "bank-transfer", info, now, now, "p3", "Cable", "", 1, 5.0))

	list, err := NewOrders(db).ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "LX2", list[0].Reference)
	require.Len(t, list[1].Items, 2)
	assert.Equal(t, 40.0, list[1].Items[0].Subtotal)
	assert.Equal(t, "ana@example.com", list[1].CustomerInfo.Email)
	assert.Equal(t, models.OrderPending, list[1].Status)
}

func TestOrdersDeletePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrders(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM orders WHERE id = ? AND user_id = ? AND status IN (?, ?)`)).
		WithArgs(int64(5), int64(7), "pending", "cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeletePending(context.Background(), 5, 7))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM orders`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.DeletePending(context.Background(), 6, 7), ErrNotFound)
}

func TestOrdersUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrders(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, payment_method FROM orders WHERE id = ?`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_method"}).AddRow("pending", "nowpayments"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)).
		WithArgs("cancelled", sqlmock.AnyArg(), int64(5), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), 5, models.OrderCancelled))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, payment_method FROM orders WHERE id = ?`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_method"}).AddRow("delivered", "nowpayments"))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), 5, models.OrderPaid), ErrInvalidStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersGet_CorruptCustomerInfo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders`)).
		WithArgs(int64(4), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "reference", "total", "status", "payment_method", "customer_info", "created_at", "updated_at"}).
			AddRow(4, 7, "LX4", 10.0, "pending", "bank-transfer", []byte(`{"email":`), now, now))

	_, err = NewOrders(db).Get(context.Background(), 4, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode customer info")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersListByUser_CorruptCustomerInfo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "reference", "total", "status", "payment_method", "customer_info", "created_at", "updated_at",
		"product_id", "product_name", "description", "quantity", "price"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders o`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "LX1", 45.0, "pending", "bank-transfer", []byte(`not json`), now, now, "p1", "Phone", "", 1, 45.0))

	_, err = NewOrders(db).ListByUser(context.Background(), 7)
	assert.ErrorContains(t, err, "decode customer info")
}

func TestOrdersByReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrders(db)

	query := regexp.QuoteMeta(`SELECT id, status FROM orders WHERE reference = ? AND payment_method = ? ORDER BY id DESC LIMIT 1`)
	mock.ExpectQuery(query).
		WithArgs("LX00000042", "nowpayments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(9, "pending"))
	id, status, err := repo.ByReference(context.Background(), "LX00000042", models.PaymentNowPayments)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, models.OrderPending, status)

	mock.ExpectQuery(query).
		WithArgs("LX00000043", "nowpayments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	_, _, err = repo.ByReference(context.Background(), "LX00000043", models.PaymentNowPayments)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
