// Package notifier runs dispatch rules and the event-triggered notifications.
package notifier

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/common/metrics"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/dedup"
	"courier-notifier/internal/notification/delivery"
	"courier-notifier/internal/notification/rules"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Gate interface {
	ShouldSuppress(ctx context.Context, t models.NotificationType, subject dedup.Subject, cooldown time.Duration) (bool, error)
}

type Emitter interface {
	Emit(ctx context.Context, t models.NotificationType, recipient models.User, orderID *int64, params map[string]string) (*models.UserNotification, error)
}

type Orders interface {
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindViolationByOrderID(ctx context.Context, orderID int64) (*models.Violation, error)
}

// Telemetry is satisfied by *observability.Observability.
type Telemetry interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	RecordRuleRun(ctx context.Context, notificationType, status string, duration time.Duration)
}

type Deps struct {
	Rules         []rules.Rule
	Gate          Gate
	Emitter       Emitter
	Orders        Orders
	Telemetry     Telemetry
	CourierPhones []string
	Location      *time.Location
}

type Notifier struct {
	rules         map[models.NotificationType]rules.Rule
	gate          Gate
	emitter       Emitter
	orders        Orders
	telemetry     Telemetry
	courierPhones []string
	location      *time.Location
	logger        logger.Logger
}

func New(deps Deps, log logger.Logger) *Notifier {
	n := &Notifier{
		rules:         make(map[models.NotificationType]rules.Rule, len(deps.Rules)),
		gate:          deps.Gate,
		emitter:       deps.Emitter,
		orders:        deps.Orders,
		telemetry:     deps.Telemetry,
		courierPhones: deps.CourierPhones,
		location:      deps.Location,
		logger:        logger.ForComponent(log, "notifier"),
	}
	for _, r := range deps.Rules {
		n.rules[r.Type()] = r
	}
	if n.telemetry == nil {
		n.telemetry = nopTelemetry{tracer: noop.NewTracerProvider().Tracer("notifier")}
	}
	if n.location == nil {
		n.location = time.UTC
	}
	return n
}

// ScheduledTypes lists the types that have a dispatch rule, in name order.
func (n *Notifier) ScheduledTypes() []models.NotificationType {
	out := make([]models.NotificationType, 0, len(n.rules))
	for t := range n.rules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasRule reports whether t is dispatched on a schedule.
func (n *Notifier) HasRule(t models.NotificationType) bool {
	_, ok := n.rules[t]
	return ok
}

// RunSummary counts what happened to the candidates of one rule run.
type RunSummary struct {
	Type       models.NotificationType `json:"type"`
	Candidates int                     `json:"candidates"`
	Emitted    int                     `json:"emitted"`
	Suppressed int                     `json:"suppressed"`
	Failed     int                     `json:"failed"`
	Disabled   bool                    `json:"disabled"`
	Cancelled  bool                    `json:"cancelled"`
	Duration   time.Duration           `json:"duration"`
}

// Dispatch runs the rule of t once. Only a failed candidate selection is
// returned as an error; per-candidate failures are logged and counted.
// Cancelling ctx stops the run before the next candidate.
func (n *Notifier) Dispatch(ctx context.Context, t models.NotificationType) (RunSummary, error) {
	summary := RunSummary{Type: t}
	rule, ok := n.rules[t]
	if !ok {
		return summary, errors.NewUnsupportedNotificationTypeError(string(t))
	}

	start := time.Now()
	ctx, span := n.telemetry.StartSpan(ctx, "notification.dispatch",
		attribute.String("notification.type", string(t)))
	defer span.End()

	log := n.logger.WithFields(map[string]interface{}{"notificationType": string(t)})

	candidates, err := rule.SelectCandidates(ctx)
	if err != nil {
		summary.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate selection failed")
		n.telemetry.RecordRuleRun(ctx, string(t), "failed", summary.Duration)
		log.Error("candidate selection failed", map[string]interface{}{"error": err})
		return summary, err
	}
	summary.Candidates = len(candidates)

	policy := rule.Policy()
	for _, c := range candidates {
		if ctx.Err() != nil {
			summary.Cancelled = true
			log.Warn("dispatch cancelled, remaining candidates dropped", map[string]interface{}{
				"processed": summary.Emitted + summary.Suppressed + summary.Failed,
			})
			break
		}
		if n.process(ctx, log, rule, policy, c, &summary) {
			break
		}
	}

	summary.Duration = time.Since(start)
	metrics.RuleDuration.WithLabelValues(string(t)).Observe(summary.Duration.Seconds())
	n.telemetry.RecordRuleRun(ctx, string(t), "ok", summary.Duration)
	span.SetAttributes(
		attribute.Int("notification.candidates", summary.Candidates),
		attribute.Int("notification.emitted", summary.Emitted),
		attribute.Int("notification.suppressed", summary.Suppressed),
		attribute.Int("notification.failed", summary.Failed),
	)

	log.Info("dispatch finished", map[string]interface{}{
		"candidates": summary.Candidates,
		"emitted":    summary.Emitted,
		"suppressed": summary.Suppressed,
		"failed":     summary.Failed,
		"disabled":   summary.Disabled,
		"cancelled":  summary.Cancelled,
		"durationMs": summary.Duration.Milliseconds(),
	})
	return summary, nil
}

// process handles one candidate and reports whether the run must stop.
func (n *Notifier) process(
	ctx context.Context,
	log logger.Logger,
	rule rules.Rule,
	policy rules.Policy,
	c rules.Candidate,
	summary *RunSummary,
) (stop bool) {
	t := rule.Type()
	clog := log.WithFields(map[string]interface{}{
		"subject":   c.Subject.Scope.String(),
		"subjectId": c.Subject.ID,
	})

	fail := func(reason string, err error) {
		summary.Failed++
		metrics.CandidatesFailed.WithLabelValues(string(t), reason).Inc()
		clog.Warn("candidate skipped", map[string]interface{}{"reason": reason, "error": err})
	}

	defer func() {
		if r := recover(); r != nil {
			fail("panic", fmt.Errorf("%v", r))
			stop = false
		}
	}()

	if err := c.Validate(); err != nil {
		fail("invalid", err)
		return false
	}

	suppress, err := n.gate.ShouldSuppress(ctx, t, c.Subject, policy.Cooldown)
	if err != nil {
		fail("dedup", err)
		return false
	}
	if suppress {
		summary.Suppressed++
		metrics.NotificationsSuppressed.WithLabelValues(string(t)).Inc()
		return false
	}

	params, err := rule.ComputeParameters(ctx, c)
	if err != nil {
		fail("parameters", err)
		return false
	}

	if _, err := n.emitter.Emit(ctx, t, *c.Recipient, c.OrderID(), params); err != nil {
		if stderrors.Is(err, delivery.ErrTypeDisabled) {
			summary.Disabled = true
			clog.Info("notification type disabled, stopping run", nil)
			return true
		}
		fail(reasonOf(err), err)
		return false
	}
	summary.Emitted++
	return false
}

func reasonOf(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "emit"
}

type nopTelemetry struct {
	tracer trace.Tracer
}

func (n nopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (nopTelemetry) RecordRuleRun(context.Context, string, string, time.Duration) {}
