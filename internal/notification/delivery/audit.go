package delivery

import (
	"context"
	"time"

	"courier-notifier/internal/common/logger"

	"github.com/google/uuid"
)

// DeliveryRecord describes one channel delivery attempt.
type DeliveryRecord struct {
	NotificationID   int64     `json:"notificationId"`
	NotificationType string    `json:"notificationType"`
	UserID           int64     `json:"userId"`
	Channel          string    `json:"channel"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	AttemptedAt      time.Time `json:"attemptedAt"`
}

type AuditSink interface {
	Record(ctx context.Context, rec DeliveryRecord)
}

// Indexer is satisfied by the Elasticsearch client.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// ElasticAudit writes delivery records to an index. Failures are only logged.
type ElasticAudit struct {
	indexer Indexer
	index   string
	logger  logger.Logger
}

func NewElasticAudit(indexer Indexer, index string, log logger.Logger) *ElasticAudit {
	return &ElasticAudit{indexer: indexer, index: index, logger: logger.ForComponent(log, "delivery-audit")}
}

func (a *ElasticAudit) Record(ctx context.Context, rec DeliveryRecord) {
	if err := a.indexer.IndexDocument(ctx, a.index, uuid.NewString(), rec); err != nil {
		a.logger.Warn("delivery audit write failed", map[string]interface{}{
			"notificationId": rec.NotificationID,
			"channel":        rec.Channel,
			"error":          err,
		})
	}
}

type NopAudit struct{}

func (NopAudit) Record(context.Context, DeliveryRecord) {}
