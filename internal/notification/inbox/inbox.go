// Package inbox serves a user's site notifications.
package inbox

import (
	"context"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/delivery"
)

type Users interface {
	FindUserByUUID(ctx context.Context, uuid string) (*models.User, error)
}

type Notifications interface {
	ListByUser(ctx context.Context, userID int64, page, size int) ([]models.UserNotification, int, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	FindByID(ctx context.Context, id int64) (*models.UserNotification, error)
	MarkRead(ctx context.Context, id int64) error
}

type Templates interface {
	GetTemplate(ctx context.Context, t models.NotificationType, language string, receiver models.ReceiverType) (*models.NotificationTemplate, error)
}

// Entry is a notification rendered for display.
type Entry struct {
	ID        int64                   `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	OrderID   *int64                  `json:"orderId,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	Read      bool                    `json:"read"`
}

type Page struct {
	Items      []Entry `json:"items"`
	Page       int     `json:"page"`
	Size       int     `json:"size"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
}

const defaultPageSize = 10

type Inbox struct {
	users         Users
	notifications Notifications
	templates     Templates
	logger        logger.Logger
}

func New(users Users, notifications Notifications, templates Templates, log logger.Logger) *Inbox {
	return &Inbox{
		users:         users,
		notifications: notifications,
		templates:     templates,
		logger:        logger.ForComponent(log, "inbox"),
	}
}

// List returns one page of the user's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userUUID, language string, page, size int) (*Page, error) {
	user, err := i.users.FindUserByUUID(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if page < 0 {
		page = 0
	}

	list, total, err := i.notifications.ListByUser(ctx, user.ID, page, size)
	if err != nil {
		return nil, err
	}

	out := &Page{
		Items:      make([]Entry, 0, len(list)),
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}
	for idx := range list {
		out.Items = append(out.Items, i.render(ctx, &list[idx], languageFor(language, user)))
	}
	return out, nil
}

func (i *Inbox) UnreadCount(ctx context.Context, userUUID string) (int, error) {
	user, err := i.users.FindUserByUUID(ctx, userUUID)
	if err != nil {
		return 0, err
	}
	return i.notifications.CountUnread(ctx, user.ID)
}

// Get returns one notification and marks it read. An unknown id and an id
// owned by another user are both NOTIFICATION_NOT_FOUND.
func (i *Inbox) Get(ctx context.Context, userUUID string, id int64, language string) (*Entry, error) {
	user, err := i.users.FindUserByUUID(ctx, userUUID)
	if err != nil {
		return nil, err
	}

	n, err := i.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != user.ID {
		return nil, errors.NewNotificationNotFoundError(id)
	}

	if !n.Read {
		if err := i.notifications.MarkRead(ctx, id); err != nil {
			return nil, err
		}
		n.Read = true
	}

	entry := i.render(ctx, n, languageFor(language, user))
	return &entry, nil
}

func (i *Inbox) render(ctx context.Context, n *models.UserNotification, language string) Entry {
	entry := Entry{
		ID:        n.ID,
		Type:      n.Type,
		Title:     string(n.Type),
		OrderID:   n.OrderID,
		CreatedAt: n.CreatedAt,
		Read:      n.Read,
	}

	tmpl, err := i.templates.GetTemplate(ctx, n.Type, language, models.ReceiverSite)
	if err != nil {
		i.logger.Warn("inbox template unavailable", map[string]interface{}{
			"notificationId":   n.ID,
			"notificationType": string(n.Type),
			"language":         language,
			"error":            err,
		})
		return entry
	}

	params := n.ParameterMap()
	if tmpl.Title != "" {
		entry.Title = delivery.RenderTemplate(tmpl.Title, params)
	}
	entry.Body = delivery.RenderTemplate(tmpl.Body, params)
	return entry
}

func languageFor(requested string, user *models.User) string {
	if requested != "" {
		return requested
	}
	return user.LanguageCode
}
