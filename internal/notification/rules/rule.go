// Package rules holds the per-type dispatch rules: which subjects are due a
// notification and what values the notification carries.
package rules

import (
	"context"
	"fmt"
	"time"

	"courier-notifier/internal/common/config"
	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/dedup"
)

// Rule is one scheduled notification type.
type Rule interface {
	Type() models.NotificationType
	Policy() Policy
	SelectCandidates(ctx context.Context) ([]Candidate, error)
	ComputeParameters(ctx context.Context, c Candidate) (map[string]string, error)
}

// Policy is the dedup policy of a rule.
type Policy struct {
	Scope    dedup.Scope
	Cooldown time.Duration
}

// Candidate is one subject selected by a rule.
type Candidate struct {
	Subject   dedup.Subject
	Recipient *models.User
	Order     *models.Order
}

// OrderID is the order reference stored on the notification, if any.
func (c Candidate) OrderID() *int64 {
	if c.Order == nil {
		return nil
	}
	id := c.Order.ID
	return &id
}

// Validate rejects candidates a notification cannot be built for.
func (c Candidate) Validate() error {
	if c.Recipient == nil || c.Recipient.ID <= 0 {
		return errors.NewCandidateInvalidError(fmt.Sprintf("%s subject %d has no recipient", c.Subject.Scope, c.Subject.ID))
	}
	if c.Subject.ID <= 0 {
		return errors.NewCandidateInvalidError("subject id is missing")
	}
	if c.Subject.Scope == dedup.ScopeOrder && c.Order == nil {
		return errors.NewCandidateInvalidError(fmt.Sprintf("order subject %d has no order snapshot", c.Subject.ID))
	}
	return nil
}

// OrderSource is the read side of the orders repository.
type OrderSource interface {
	FindByPaymentStatus(ctx context.Context, status models.OrderPaymentStatus) ([]models.Order, error)
	FindByStatusesAndPaymentStatuses(ctx context.Context, statuses []models.OrderStatus, paymentStatuses []models.OrderPaymentStatus) ([]models.Order, error)
	FindByStatusDeliveringBetween(ctx context.Context, status models.OrderStatus, from, to time.Time) ([]models.Order, error)
	FindInactiveUsers(ctx context.Context, from, to time.Time) ([]models.InactiveUser, error)
}

type Options struct {
	CourierPhones []string
	Location      *time.Location
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Build returns the enabled rules for cfg.
func Build(cfg config.RulesConfig, orders OrderSource, opts Options) []Rule {
	opts = opts.withDefaults()

	var out []Rule
	if cfg.UnpaidOrder.Enabled {
		out = append(out, NewUnpaidOrderRule(orders, cfg.UnpaidOrder, opts.Now))
	}
	if cfg.InactiveUser.Enabled {
		out = append(out, NewInactiveUserRule(orders, cfg.InactiveUser, opts.Now))
	}
	if cfg.HalfPaidPackage.Enabled {
		out = append(out, NewHalfPaidPackageRule(orders, cfg.HalfPaidPackage))
	}
	if cfg.BroughtByHimself.Enabled {
		out = append(out, NewBroughtByHimselfRule(orders, cfg.BroughtByHimself))
	}
	if cfg.CourierItinerary.Enabled {
		out = append(out, NewCourierItineraryRule(orders, cfg.CourierItinerary, opts))
	}
	if cfg.DoneOrCanceled.Enabled {
		out = append(out, NewDoneOrCanceledUnpaidRule(orders, cfg.DoneOrCanceled))
	}
	return out
}
