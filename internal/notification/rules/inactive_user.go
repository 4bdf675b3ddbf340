package rules

import (
	"context"
	"time"

	"courier-notifier/internal/common/config"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/dedup"
)

// InactiveUserRule reminds users whose most recent order is between
// InactiveFrom and InactiveTo ago.
type InactiveUserRule struct {
	orders OrderSource
	cfg    config.InactiveUserRuleConfig
	now    func() time.Time
}

func NewInactiveUserRule(orders OrderSource, cfg config.InactiveUserRuleConfig, now func() time.Time) *InactiveUserRule {
	if now == nil {
		now = time.Now
	}
	return &InactiveUserRule{orders: orders, cfg: cfg, now: now}
}

func (r *InactiveUserRule) Type() models.NotificationType { return models.NotificationLetsStayConnected }

func (r *InactiveUserRule) Policy() Policy {
	return Policy{Scope: dedup.ScopeUser, Cooldown: r.cfg.Cooldown}
}

func (r *InactiveUserRule) SelectCandidates(ctx context.Context) ([]Candidate, error) {
	now := r.now()
	users, err := r.orders.FindInactiveUsers(ctx, now.Add(-r.cfg.InactiveFrom), now.Add(-r.cfg.InactiveTo))
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(users))
	for i := range users {
		u := &users[i].User
		out = append(out, Candidate{Subject: dedup.UserSubject(u.ID), Recipient: u})
	}
	return out, nil
}

func (r *InactiveUserRule) ComputeParameters(_ context.Context, c Candidate) (map[string]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return map[string]string{ParamName: c.Recipient.Name}, nil
}
