package orders

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "user_id", "order_status", "order_payment_status", "order_date",
	"deliver_from", "deliver_to", "points_to_use",
	"uuid", "name", "email", "phone_number", "language_code",
	"telegram_chat_id", "viber_chat_id",
}

var userCols = []string{
	"id", "uuid", "name", "email", "phone_number", "language_code", "telegram_chat_id", "viber_chat_id",
}

func setupMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

// ==========================
// Orders
// ==========================

func TestFindByPaymentStatus_LoadsPaymentsAndBags(t *testing.T) {
	repo, mock := setupMock(t)
	orderDate := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM orders o\s+JOIN users u ON u.id = o.user_id\s+WHERE o.order_payment_status = \$1`).
		WithArgs("HALF_PAID").
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(47, 42, "FORMED", "HALF_PAID", orderDate, nil, nil, 0,
				"uuid-42", "Olena", "olena@example.com", nil, "ua", "tg-1", nil).
			AddRow(51, 43, "DONE", "HALF_PAID", orderDate, nil, nil, 500,
				"uuid-43", "Taras", nil, "+380501112233", "en", nil, nil))

	mock.ExpectQuery(`FROM payment\s+WHERE order_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "amount", "payment_status"}).
			AddRow(51, 10000, "PAID").
			AddRow(51, 4000, "PAYMENT_REFUNDED"))

	mock.ExpectQuery(`FROM order_bag_mapping\s+WHERE order_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "capacity", "price", "amount"}).
			AddRow(47, 120, 25000, 1).
			AddRow(51, 20, 9000, 2))

	orders, err := repo.FindByPaymentStatus(context.Background(), models.OrderHalfPaid)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, int64(47), first.ID)
	assert.Equal(t, "olena@example.com", first.User.Email)
	assert.Equal(t, "tg-1", first.User.TelegramChatID)
	assert.Equal(t, int64(42), first.User.ID)
	assert.Empty(t, first.Payments)
	assert.Equal(t, int64(25000), first.FullPrice())

	second := orders[1]
	assert.Equal(t, models.OrderDone, second.Status)
	assert.Equal(t, "+380501112233", second.User.Phone)
	assert.Len(t, second.Payments, 2)
	assert.Equal(t, int64(10000), second.PaidAmount())
	assert.Equal(t, int64(18000-10000-500), second.AmountDue())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPaymentStatus_EmptySkipsDetailQueries(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`WHERE o.order_payment_status = \$1`).
		WithArgs("UNPAID").
		WillReturnRows(sqlmock.NewRows(orderCols))

	orders, err := repo.FindByPaymentStatus(context.Background(), models.OrderUnpaid)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPaymentStatus_QueryError(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`WHERE o.order_payment_status = \$1`).
		WillReturnError(stderrors.New("connection reset"))

	_, err := repo.FindByPaymentStatus(context.Background(), models.OrderUnpaid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestFindByStatusDeliveringBetween(t *testing.T) {
	repo, mock := setupMock(t)
	from := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	deliverFrom := from.Add(9 * time.Hour)
	deliverTo := from.Add(12 * time.Hour)

	mock.ExpectQuery(`WHERE o.order_status = \$1 AND o.deliver_from >= \$2 AND o.deliver_from < \$3`).
		WithArgs("ADJUSTMENT", from, to).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(44, 42, "ADJUSTMENT", "PAID", from.Add(-72*time.Hour), deliverFrom, deliverTo, 0,
				"uuid-42", "Olena", nil, nil, "ua", nil, "viber-9"))
	mock.ExpectQuery(`FROM payment`).WillReturnRows(sqlmock.NewRows([]string{"order_id", "amount", "payment_status"}))
	mock.ExpectQuery(`FROM order_bag_mapping`).WillReturnRows(sqlmock.NewRows([]string{"order_id", "capacity", "price", "amount"}))

	orders, err := repo.FindByStatusDeliveringBetween(context.Background(), models.OrderAdjustment, from, to)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].DeliverFrom)
	assert.True(t, orders[0].DeliverFrom.Equal(deliverFrom))
	assert.True(t, orders[0].DeliverTo.Equal(deliverTo))
	assert.Equal(t, "viber-9", orders[0].User.ViberChatID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByStatusesAndPaymentStatuses(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`WHERE o.order_status = ANY\(\$1\) AND o.order_payment_status = ANY\(\$2\)`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderCols))

	orders, err := repo.FindByStatusesAndPaymentStatuses(context.Background(),
		[]models.OrderStatus{models.OrderDone, models.OrderCanceled},
		[]models.OrderPaymentStatus{models.OrderUnpaid, models.OrderHalfPaid})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`WHERE o.id = \$1`).WithArgs(int64(99)).WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := repo.FindByID(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeOrderNotFound, errors.CodeOf(err))
}

// ==========================
// Users
// ==========================

func TestFindInactiveUsers(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	from, to := now.AddDate(-1, 0, 0), now.AddDate(0, -2, 0)
	lastOrder := now.AddDate(0, -3, 0)

	mock.ExpectQuery(`HAVING MAX\(o.order_date\) BETWEEN \$1 AND \$2`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(append(userCols, "last_order")).
			AddRow(42, "uuid-42", "Olena", "olena@example.com", nil, "ua", nil, nil, lastOrder))

	users, err := repo.FindInactiveUsers(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(42), users[0].ID)
	assert.Equal(t, "olena@example.com", users[0].Email)
	assert.True(t, users[0].LastOrderDate.Equal(lastOrder))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByUUID(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`FROM users u WHERE u.uuid = \$1`).
		WithArgs("uuid-42").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(42, "uuid-42", "Olena", nil, "+380501112233", "ua", "tg-1", nil))

	u, err := repo.FindUserByUUID(context.Background(), "uuid-42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "+380501112233", u.Phone)
	assert.Equal(t, "", u.Email)

	mock.ExpectQuery(`FROM users u WHERE u.uuid = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err = repo.FindUserByUUID(context.Background(), "ghost")
	assert.Equal(t, errors.ErrCodeUserNotFound, errors.CodeOf(err))
}

func TestFindUserByID_NotFound(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`FROM users u WHERE u.id = \$1`).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.FindUserByID(context.Background(), 7)
	assert.True(t, errors.IsNotFound(err))
}

// ==========================
// Violations
// ==========================

func TestFindViolationByOrderID(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(`FROM violations_description_mapping`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "description", "violation_level"}).
			AddRow(12, "Mixed waste", "MAJOR"))

	v, err := repo.FindViolationByOrderID(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Mixed waste", v.Description)
	assert.Equal(t, "MAJOR", v.Level)

	mock.ExpectQuery(`FROM violations_description_mapping`).
		WithArgs(int64(13)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "description", "violation_level"}))

	_, err = repo.FindViolationByOrderID(context.Background(), 13)
	assert.Equal(t, errors.ErrCodeViolationNotFound, errors.CodeOf(err))
}
