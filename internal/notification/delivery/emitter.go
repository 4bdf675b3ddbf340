// Package delivery persists notifications and fans them out to external channels.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/common/metrics"
	"courier-notifier/internal/models"

	"github.com/sourcegraph/conc/pool"
)

// ErrTypeDisabled is returned when the inbox template of a type is inactive.
var ErrTypeDisabled = errors.New("notification type disabled")

type Templates interface {
	GetTemplate(ctx context.Context, t models.NotificationType, language string, receiver models.ReceiverType) (*models.NotificationTemplate, error)
}

type Recorder interface {
	Create(ctx context.Context, n models.UserNotification) (*models.UserNotification, error)
}

type Emitter struct {
	templates Templates
	recorder  Recorder
	channels  []Channel
	audit     AuditSink
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Emitter)

func WithChannels(channels ...Channel) Option {
	return func(e *Emitter) { e.channels = append(e.channels, channels...) }
}

func WithAudit(sink AuditSink) Option {
	return func(e *Emitter) { e.audit = sink }
}

func NewEmitter(templates Templates, recorder Recorder, log logger.Logger, opts ...Option) *Emitter {
	e := &Emitter{
		templates: templates,
		recorder:  recorder,
		audit:     NopAudit{},
		logger:    logger.ForComponent(log, "emitter"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit persists a notification of t for recipient and forwards it to every
// configured channel. The inbox record is the durable result: channel
// failures are logged and audited but never returned.
func (e *Emitter) Emit(
	ctx context.Context,
	t models.NotificationType,
	recipient models.User,
	orderID *int64,
	params map[string]string,
) (*models.UserNotification, error) {
	site, err := e.templates.GetTemplate(ctx, t, recipient.LanguageCode, models.ReceiverSite)
	if err != nil {
		return nil, err
	}
	if site.Status == models.TemplateInactive {
		return nil, ErrTypeDisabled
	}

	n, err := e.recorder.Create(ctx, models.UserNotification{
		Type:       t,
		UserID:     recipient.ID,
		OrderID:    orderID,
		CreatedAt:  e.now(),
		Parameters: models.Parameters(params),
	})
	if err != nil {
		return nil, err
	}
	metrics.NotificationsEmitted.WithLabelValues(string(t)).Inc()

	e.fanOut(ctx, n, recipient, params)
	return n, nil
}

func (e *Emitter) fanOut(ctx context.Context, n *models.UserNotification, recipient models.User, params map[string]string) {
	if len(e.channels) == 0 {
		return
	}
	log := e.logger.WithFields(map[string]interface{}{
		"notificationId":   n.ID,
		"notificationType": string(n.Type),
		"userId":           recipient.ID,
	})

	tmpl, err := e.templates.GetTemplate(ctx, n.Type, recipient.LanguageCode, models.ReceiverOther)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			log.Debug("no channel template, inbox only", nil)
		} else {
			log.Warn("channel template lookup failed", map[string]interface{}{"error": err})
		}
		return
	}

	msg := Message{
		NotificationID: n.ID,
		Type:           n.Type,
		Recipient:      recipient,
		Title:          RenderTemplate(tmpl.Title, params),
		Body:           RenderTemplate(tmpl.Body, params),
	}

	p := pool.New().WithMaxGoroutines(len(e.channels))
	for _, ch := range e.channels {
		ch := ch
		p.Go(func() {
			e.send(ctx, log, ch, msg)
		})
	}
	p.Wait()
}

func (e *Emitter) send(ctx context.Context, log logger.Logger, ch Channel, msg Message) {
	rec := DeliveryRecord{
		NotificationID:   msg.NotificationID,
		NotificationType: string(msg.Type),
		UserID:           msg.Recipient.ID,
		Channel:          ch.Name(),
		AttemptedAt:      e.now(),
	}

	err := sendRecovered(ctx, ch, msg)
	switch {
	case err == nil:
		rec.Status = "sent"
	case errors.Is(err, ErrRecipientUnreachable):
		rec.Status = "skipped"
	default:
		rec.Status = "failed"
		rec.Error = err.Error()
		log.Warn("channel delivery failed", map[string]interface{}{
			"channel": ch.Name(),
			"error":   commonerrors.NewNotificationSendFailedError(ch.Name(), err),
		})
	}

	metrics.ChannelDeliveries.WithLabelValues(ch.Name(), rec.Status).Inc()
	e.audit.Record(ctx, rec)
}

// sendRecovered turns a panicking channel into a failed delivery.
func sendRecovered(ctx context.Context, ch Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, msg)
}
