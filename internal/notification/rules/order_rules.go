package rules

import (
	"context"
	"time"

	"courier-notifier/internal/common/config"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/dedup"
)

// OrderRule is a rule keyed by order whose candidates come from one order query.
type OrderRule struct {
	notificationType models.NotificationType
	cooldown         time.Duration
	query            func(ctx context.Context) ([]models.Order, error)
	keep             func(o *models.Order) bool
	params           func(o *models.Order) (map[string]string, error)
}

func (r *OrderRule) Type() models.NotificationType { return r.notificationType }

func (r *OrderRule) Policy() Policy {
	return Policy{Scope: dedup.ScopeOrder, Cooldown: r.cooldown}
}

func (r *OrderRule) SelectCandidates(ctx context.Context) ([]Candidate, error) {
	orders, err := r.query(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		if r.keep != nil && !r.keep(o) {
			continue
		}
		out = append(out, Candidate{
			Subject:   dedup.OrderSubject(o.ID),
			Recipient: o.User,
			Order:     o,
		})
	}
	return out, nil
}

func (r *OrderRule) ComputeParameters(_ context.Context, c Candidate) (map[string]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return r.params(c.Order)
}

func paymentParams(o *models.Order) (map[string]string, error) {
	return PaymentParameters(o), nil
}

// NewUnpaidOrderRule selects UNPAID orders older than MinOrderAge that are not
// yet DONE or CANCELED.
func NewUnpaidOrderRule(orders OrderSource, cfg config.RuleConfig, now func() time.Time) *OrderRule {
	return &OrderRule{
		notificationType: models.NotificationUnpaidOrder,
		cooldown:         cfg.Cooldown,
		query: func(ctx context.Context) ([]models.Order, error) {
			return orders.FindByPaymentStatus(ctx, models.OrderUnpaid)
		},
		keep: func(o *models.Order) bool {
			if o.Status == models.OrderDone || o.Status == models.OrderCanceled {
				return false
			}
			return o.OrderDate.Before(now().Add(-cfg.MinOrderAge))
		},
		params: paymentParams,
	}
}

// NewHalfPaidPackageRule selects HALF_PAID orders whose paid amount is below the full price.
func NewHalfPaidPackageRule(orders OrderSource, cfg config.RuleConfig) *OrderRule {
	return &OrderRule{
		notificationType: models.NotificationUnpaidPackage,
		cooldown:         cfg.Cooldown,
		query: func(ctx context.Context) ([]models.Order, error) {
			return orders.FindByPaymentStatus(ctx, models.OrderHalfPaid)
		},
		keep: func(o *models.Order) bool {
			return o.PaidAmount() < o.FullPrice()
		},
		params: paymentParams,
	}
}

func NewBroughtByHimselfRule(orders OrderSource, cfg config.RuleConfig) *OrderRule {
	return &OrderRule{
		notificationType: models.NotificationHalfPaidBroughtByHimself,
		cooldown:         cfg.Cooldown,
		query: func(ctx context.Context) ([]models.Order, error) {
			return orders.FindByStatusesAndPaymentStatuses(ctx,
				[]models.OrderStatus{models.OrderBroughtItHimself},
				[]models.OrderPaymentStatus{models.OrderHalfPaid})
		},
		params: paymentParams,
	}
}

func NewDoneOrCanceledUnpaidRule(orders OrderSource, cfg config.RuleConfig) *OrderRule {
	return &OrderRule{
		notificationType: models.NotificationDoneOrCanceledUnpaidOrder,
		cooldown:         cfg.Cooldown,
		query: func(ctx context.Context) ([]models.Order, error) {
			return orders.FindByStatusesAndPaymentStatuses(ctx,
				[]models.OrderStatus{models.OrderDone, models.OrderCanceled},
				[]models.OrderPaymentStatus{models.OrderUnpaid, models.OrderHalfPaid})
		},
		params: paymentParams,
	}
}

// NewCourierItineraryRule selects ADJUSTMENT orders whose delivery starts
// tomorrow in opts.Location.
func NewCourierItineraryRule(orders OrderSource, cfg config.RuleConfig, opts Options) *OrderRule {
	opts = opts.withDefaults()
	return &OrderRule{
		notificationType: models.NotificationCourierItineraryFormed,
		cooldown:         cfg.Cooldown,
		query: func(ctx context.Context) ([]models.Order, error) {
			from, to := tomorrow(opts.Now(), opts.Location)
			return orders.FindByStatusDeliveringBetween(ctx, models.OrderAdjustment, from, to)
		},
		params: func(o *models.Order) (map[string]string, error) {
			return ItineraryParameters(o, opts.CourierPhones, opts.Location)
		},
	}
}

func tomorrow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
