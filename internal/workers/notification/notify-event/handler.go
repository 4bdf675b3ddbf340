// internal/workers/notification/notify-event/handler.go
package notifyevent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"courier-notifier/internal/common/config"
	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/common/metrics"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/delivery"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "notify-event"
)

// EventNotifier is the event-driven half of the notifier.
type EventNotifier interface {
	NotifyPaidOrder(ctx context.Context, orderID int64) (*models.UserNotification, error)
	NotifyCourierItineraryFormed(ctx context.Context, orderID int64) (*models.UserNotification, error)
	NotifyBonuses(ctx context.Context, orderID, overpayment int64) (*models.UserNotification, error)
	NotifyBonusesFromCanceledOrder(ctx context.Context, orderID int64) (*models.UserNotification, error)
	NotifyAddViolation(ctx context.Context, orderID int64) (*models.UserNotification, error)
	NotifyChangedViolation(ctx context.Context, orderID int64) (*models.UserNotification, error)
	NotifyCanceledViolation(ctx context.Context, orderID int64) (*models.UserNotification, error)
	NotifyOrderStatusChanged(ctx context.Context, orderID int64) (*models.UserNotification, error)
}

type Handler struct {
	config       *Config
	notifier     EventNotifier
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Notifier     EventNotifier
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.CustomConfig
	if cfg == nil {
		cfg = createConfigFromAppConfig(opts.AppConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", TaskType, err)
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("%s: notifier is required", TaskType)
	}

	log := opts.Logger.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		notifier:     opts.Notifier,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing notification event", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	result, err := GetInputSchema().ValidateJSON(job.GetVariables())
	if err != nil {
		return nil, errors.NewInvalidEventPayloadError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidEventPayloadError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInvalidEventPayloadError(err.Error())
	}
	return &input, nil
}

// Execute routes one business event to the matching notifier entry point.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	t, ok := models.ParseNotificationType(input.EventType)
	if !ok {
		return nil, errors.NewUnsupportedNotificationTypeError(input.EventType)
	}

	var (
		n   *models.UserNotification
		err error
	)
	switch t {
	case models.NotificationOrderIsPaid:
		n, err = h.notifier.NotifyPaidOrder(ctx, input.OrderID)
	case models.NotificationCourierItineraryFormed:
		n, err = h.notifier.NotifyCourierItineraryFormed(ctx, input.OrderID)
	case models.NotificationAccruedBonuses:
		if input.Amount <= 0 {
			return nil, errors.NewInvalidEventPayloadError("amount must be positive for " + input.EventType)
		}
		n, err = h.notifier.NotifyBonuses(ctx, input.OrderID, input.Amount)
	case models.NotificationBonusesFromCancelledOrder:
		n, err = h.notifier.NotifyBonusesFromCanceledOrder(ctx, input.OrderID)
	case models.NotificationViolationTheRules:
		n, err = h.notifier.NotifyAddViolation(ctx, input.OrderID)
	case models.NotificationChangedViolationStatus:
		n, err = h.notifier.NotifyChangedViolation(ctx, input.OrderID)
	case models.NotificationCanceledViolation:
		n, err = h.notifier.NotifyCanceledViolation(ctx, input.OrderID)
	case models.NotificationOrderStatusChanged:
		n, err = h.notifier.NotifyOrderStatusChanged(ctx, input.OrderID)
	default:
		return nil, errors.NewUnsupportedNotificationTypeError(input.EventType)
	}
	if stderrors.Is(err, delivery.ErrTypeDisabled) {
		h.logger.Info("notification type disabled, completing without notification", map[string]interface{}{
			"eventType": input.EventType,
			"orderId":   input.OrderID,
		})
		return &Output{EventType: input.EventType, Disabled: true}, nil
	}
	if err != nil {
		return nil, err
	}

	output := &Output{EventType: input.EventType}
	if n != nil {
		output.Notified = true
		output.NotificationID = n.ID
	}
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.ToVariables())
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		h.failJob(ctx, client, job, err)
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"notified": output.Notified,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
