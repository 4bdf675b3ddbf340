// Package orders reads order and user snapshots for the notification rules.
package orders

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/models"

	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const orderColumns = `
	o.id, o.user_id, o.order_status, o.order_payment_status, o.order_date,
	o.deliver_from, o.deliver_to, o.points_to_use,
	u.uuid, u.name, u.email, u.phone_number, u.language_code,
	u.telegram_chat_id, u.viber_chat_id
FROM orders o
JOIN users u ON u.id = o.user_id`

const userColumns = `
	u.id, u.uuid, u.name, u.email, u.phone_number, u.language_code,
	u.telegram_chat_id, u.viber_chat_id`

// FindByPaymentStatus returns every order in the given payment status.
func (r *Repository) FindByPaymentStatus(ctx context.Context, status models.OrderPaymentStatus) ([]models.Order, error) {
	return r.queryOrders(ctx, "orders_by_payment_status",
		`SELECT `+orderColumns+`
		WHERE o.order_payment_status = $1
		ORDER BY o.id`, string(status))
}

func (r *Repository) FindByStatusesAndPaymentStatuses(
	ctx context.Context,
	statuses []models.OrderStatus,
	paymentStatuses []models.OrderPaymentStatus,
) ([]models.Order, error) {
	return r.queryOrders(ctx, "orders_by_statuses",
		`SELECT `+orderColumns+`
		WHERE o.order_status = ANY($1) AND o.order_payment_status = ANY($2)
		ORDER BY o.id`, pq.Array(toStrings(statuses)), pq.Array(toStrings(paymentStatuses)))
}

// FindByStatusDeliveringBetween returns orders in status whose delivery window starts in [from, to).
func (r *Repository) FindByStatusDeliveringBetween(
	ctx context.Context,
	status models.OrderStatus,
	from, to time.Time,
) ([]models.Order, error) {
	return r.queryOrders(ctx, "orders_delivering_between",
		`SELECT `+orderColumns+`
		WHERE o.order_status = $1 AND o.deliver_from >= $2 AND o.deliver_from < $3
		ORDER BY o.deliver_from, o.id`, string(status), from, to)
}

// FindInactiveUsers returns users whose most recent order falls within [from, to].
func (r *Repository) FindInactiveUsers(ctx context.Context, from, to time.Time) ([]models.InactiveUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`, MAX(o.order_date) AS last_order
		FROM users u
		JOIN orders o ON o.user_id = u.id
		GROUP BY u.id
		HAVING MAX(o.order_date) BETWEEN $1 AND $2
		ORDER BY u.id`, from, to)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("inactive_users", err)
	}
	defer rows.Close()

	var users []models.InactiveUser
	for rows.Next() {
		var (
			iu models.InactiveUser
			n  nullableUser
		)
		if err := rows.Scan(append(userScanDest(&iu.User, &n), &iu.LastOrderDate)...); err != nil {
			return nil, errors.NewQueryExecutionFailedError("inactive_users", err)
		}
		n.apply(&iu.User)
		users = append(users, iu)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("inactive_users", err)
	}
	return users, nil
}

func (r *Repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	orders, err := r.queryOrders(ctx, "order_by_id",
		`SELECT `+orderColumns+`
		WHERE o.id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errors.NewOrderNotFoundError(orderID)
	}
	return &orders[0], nil
}

func (r *Repository) FindUserByID(ctx context.Context, userID int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, userID)
	return scanSingleUser(row, "user_by_id", func() error {
		return errors.NewUserNotFoundError(formatID(userID))
	})
}

func (r *Repository) FindUserByUUID(ctx context.Context, uuid string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.uuid = $1`, uuid)
	return scanSingleUser(row, "user_by_uuid", func() error {
		return errors.NewUserNotFoundError(uuid)
	})
}

func (r *Repository) FindViolationByOrderID(ctx context.Context, orderID int64) (*models.Violation, error) {
	var v models.Violation
	err := r.db.QueryRowContext(ctx, `
		SELECT order_id, description, violation_level
		FROM violations_description_mapping
		WHERE order_id = $1`, orderID).Scan(&v.OrderID, &v.Description, &v.Level)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewViolationNotFoundError(orderID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("violation_by_order", err)
	}
	return &v, nil
}

func (r *Repository) queryOrders(ctx context.Context, name, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(name, err)
	}
	defer rows.Close()

	var (
		orders []models.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError(name, err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError(name, err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	if err := r.attachPaymentsAndBags(ctx, orders, ids); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) attachPaymentsAndBags(ctx context.Context, orders []models.Order, ids []int64) error {
	index := make(map[int64]*models.Order, len(orders))
	for i := range orders {
		index[orders[i].ID] = &orders[i]
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, amount, payment_status
		FROM payment
		WHERE order_id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return errors.NewQueryExecutionFailedError("order_payments", err)
	}
	for rows.Next() {
		var (
			orderID int64
			p       models.Payment
			status  string
		)
		if err := rows.Scan(&orderID, &p.Amount, &status); err != nil {
			rows.Close()
			return errors.NewQueryExecutionFailedError("order_payments", err)
		}
		p.Status = models.PaymentStatus(status)
		if o, ok := index[orderID]; ok {
			o.Payments = append(o.Payments, p)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return errors.NewQueryExecutionFailedError("order_payments", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT order_id, capacity, price, amount
		FROM order_bag_mapping
		WHERE order_id = ANY($1)
		ORDER BY order_id, capacity`, pq.Array(ids))
	if err != nil {
		return errors.NewQueryExecutionFailedError("order_bags", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			b       models.Bag
		)
		if err := rows.Scan(&orderID, &b.Capacity, &b.Price, &b.Amount); err != nil {
			return errors.NewQueryExecutionFailedError("order_bags", err)
		}
		if o, ok := index[orderID]; ok {
			o.Bags = append(o.Bags, b)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewQueryExecutionFailedError("order_bags", err)
	}
	return nil
}

type nullableUser struct {
	email, phone, telegram, viber sql.NullString
}

func (n *nullableUser) apply(u *models.User) {
	u.Email = n.email.String
	u.Phone = n.phone.String
	u.TelegramChatID = n.telegram.String
	u.ViberChatID = n.viber.String
}

func userScanDest(u *models.User, n *nullableUser) []interface{} {
	return []interface{}{
		&u.ID, &u.UUID, &u.Name, &n.email, &n.phone, &u.LanguageCode, &n.telegram, &n.viber,
	}
}

func scanSingleUser(row *sql.Row, name string, notFound func() error) (*models.User, error) {
	var (
		u models.User
		n nullableUser
	)
	err := row.Scan(userScanDest(&u, &n)...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound()
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(name, err)
	}
	n.apply(&u)
	return &u, nil
}

func scanOrder(rows *sql.Rows) (models.Order, error) {
	var (
		o                     models.Order
		u                     models.User
		n                     nullableUser
		status, paymentStatus string
		from, to              sql.NullTime
	)
	err := rows.Scan(
		&o.ID, &o.UserID, &status, &paymentStatus, &o.OrderDate,
		&from, &to, &o.PointsToUse,
		&u.UUID, &u.Name, &n.email, &n.phone, &u.LanguageCode,
		&n.telegram, &n.viber,
	)
	if err != nil {
		return o, err
	}
	n.apply(&u)
	u.ID = o.UserID
	o.User = &u
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.OrderPaymentStatus(paymentStatus)
	if from.Valid {
		t := from.Time
		o.DeliverFrom = &t
	}
	if to.Valid {
		t := to.Time
		o.DeliverTo = &t
	}
	return o, nil
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func formatID(id int64) string {
	return "id:" + strconv.FormatInt(id, 10)
}
