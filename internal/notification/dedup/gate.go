// Package dedup decides whether a notification would repeat one sent too recently.
package dedup

import (
	"context"
	"fmt"
	"time"

	"courier-notifier/internal/models"
)

// Scope selects what a notification type is keyed by.
type Scope int

const (
	ScopeOrder Scope = iota
	ScopeUser
)

func (s Scope) String() string {
	if s == ScopeUser {
		return "user"
	}
	return "order"
}

// Subject is the order or user a notification is about.
type Subject struct {
	Scope Scope
	ID    int64
}

func OrderSubject(orderID int64) Subject { return Subject{Scope: ScopeOrder, ID: orderID} }

func UserSubject(userID int64) Subject { return Subject{Scope: ScopeUser, ID: userID} }

// History is the lookup the gate needs from the notification store.
type History interface {
	FindLastByOrder(ctx context.Context, t models.NotificationType, orderID int64) (*models.UserNotification, error)
	FindLastByUser(ctx context.Context, t models.NotificationType, userID int64) (*models.UserNotification, error)
}

// Gate checks the newest prior notification of a type for a subject.
//
// The check and the later insert are not atomic: two firings racing on the
// same subject can both pass. Delivery is at-least-once.
type Gate struct {
	history History
	now     func() time.Time
}

func NewGate(history History) *Gate {
	return &Gate{history: history, now: time.Now}
}

// WithClock replaces the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// ShouldSuppress reports true when a notification of t for subject exists
// and was created less than cooldown ago. A non-positive cooldown never suppresses.
func (g *Gate) ShouldSuppress(ctx context.Context, t models.NotificationType, subject Subject, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return false, nil
	}

	last, err := g.last(ctx, t, subject)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return g.now().Sub(last.CreatedAt) < cooldown, nil
}

func (g *Gate) last(ctx context.Context, t models.NotificationType, subject Subject) (*models.UserNotification, error) {
	switch subject.Scope {
	case ScopeOrder:
		return g.history.FindLastByOrder(ctx, t, subject.ID)
	case ScopeUser:
		return g.history.FindLastByUser(ctx, t, subject.ID)
	default:
		return nil, fmt.Errorf("unknown subject scope %d", subject.Scope)
	}
}
