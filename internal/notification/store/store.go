// Package store persists user notifications and their parameter sets.
package store

import (
	"context"
	"database/sql"
	"time"

	"courier-notifier/internal/common/database"
	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/models"

	"github.com/lib/pq"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const notificationColumns = `id, notification_type, user_id, order_id, notification_time, read`

// FindLastByOrder returns the newest notification of t about orderID, or nil.
func (s *Store) FindLastByOrder(ctx context.Context, t models.NotificationType, orderID int64) (*models.UserNotification, error) {
	return s.findLast(ctx, "last_by_order", `
		SELECT `+notificationColumns+`
		FROM user_notifications
		WHERE notification_type = $1 AND order_id = $2
		ORDER BY notification_time DESC
		LIMIT 1`, string(t), orderID)
}

// FindLastByUser returns the newest notification of t addressed to userID, or nil.
func (s *Store) FindLastByUser(ctx context.Context, t models.NotificationType, userID int64) (*models.UserNotification, error) {
	return s.findLast(ctx, "last_by_user", `
		SELECT `+notificationColumns+`
		FROM user_notifications
		WHERE notification_type = $1 AND user_id = $2
		ORDER BY notification_time DESC
		LIMIT 1`, string(t), userID)
}

// Create inserts the notification and every parameter in one transaction.
// On any failure nothing is persisted.
func (s *Store) Create(ctx context.Context, n models.UserNotification) (*models.UserNotification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var orderID sql.NullInt64
		if n.OrderID != nil {
			orderID = sql.NullInt64{Int64: *n.OrderID, Valid: true}
		}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO user_notifications (notification_type, user_id, order_id, notification_time, read)
			VALUES ($1, $2, $3, $4, FALSE)
			RETURNING id`,
			string(n.Type), n.UserID, orderID, n.CreatedAt).Scan(&n.ID); err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}

		if len(n.Parameters) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notification_parameters (user_notification_id, key, value)
			VALUES ($1, $2, $3)
			RETURNING id`)
		if err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}
		defer stmt.Close()

		for i := range n.Parameters {
			p := &n.Parameters[i]
			p.NotificationID = n.ID
			if err := stmt.QueryRowContext(ctx, n.ID, p.Key, p.Value).Scan(&p.ID); err != nil {
				return errors.NewDatabaseInsertFailedError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// FindByID loads one notification with its parameters.
func (s *Store) FindByID(ctx context.Context, id int64) (*models.UserNotification, error) {
	n, err := s.findLast(ctx, "notification_by_id", `
		SELECT `+notificationColumns+`
		FROM user_notifications
		WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.NewNotificationNotFoundError(id)
	}

	list := []models.UserNotification{*n}
	if err := s.attachParameters(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListByUser returns one page (newest first) and the user's total count.
func (s *Store) ListByUser(ctx context.Context, userID int64, page, size int) ([]models.UserNotification, int, error) {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.NewQueryExecutionFailedError("count_by_user", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM user_notifications
		WHERE user_id = $1
		ORDER BY notification_time DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, size, page*size)
	if err != nil {
		return nil, 0, errors.NewQueryExecutionFailedError("list_by_user", err)
	}
	defer rows.Close()

	var list []models.UserNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, errors.NewQueryExecutionFailedError("list_by_user", err)
		}
		list = append(list, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewQueryExecutionFailedError("list_by_user", err)
	}

	if err := s.attachParameters(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_notifications WHERE user_id = $1 AND read = FALSE`, userID).Scan(&count); err != nil {
		return 0, errors.NewQueryExecutionFailedError("count_unread", err)
	}
	return count, nil
}

func (s *Store) MarkRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE user_notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark_read", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotificationNotFoundError(id)
	}
	return nil
}

func (s *Store) findLast(ctx context.Context, name, query string, args ...interface{}) (*models.UserNotification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.NewQueryExecutionFailedError(name, err)
		}
		return nil, nil
	}
	n, err := scanNotification(rows)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(name, err)
	}
	return n, nil
}

func (s *Store) attachParameters(ctx context.Context, list []models.UserNotification) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]*models.UserNotification, len(list))
	for i := range list {
		ids[i] = list[i].ID
		index[list[i].ID] = &list[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_notification_id, key, value
		FROM notification_parameters
		WHERE user_notification_id = ANY($1)
		ORDER BY user_notification_id, key`, pq.Array(ids))
	if err != nil {
		return errors.NewQueryExecutionFailedError("notification_parameters", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.NotificationParameter
		if err := rows.Scan(&p.ID, &p.NotificationID, &p.Key, &p.Value); err != nil {
			return errors.NewQueryExecutionFailedError("notification_parameters", err)
		}
		if n, ok := index[p.NotificationID]; ok {
			n.Parameters = append(n.Parameters, p)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewQueryExecutionFailedError("notification_parameters", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row scanner) (*models.UserNotification, error) {
	var (
		n       models.UserNotification
		nt      string
		orderID sql.NullInt64
	)
	if err := row.Scan(&n.ID, &nt, &n.UserID, &orderID, &n.CreatedAt, &n.Read); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(nt)
	if orderID.Valid {
		id := orderID.Int64
		n.OrderID = &id
	}
	return &n, nil
}

