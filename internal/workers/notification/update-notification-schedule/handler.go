// internal/workers/notification/update-notification-schedule/handler.go
package updatenotificationschedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"courier-notifier/internal/common/config"
	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/common/metrics"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/scheduler"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-notification-schedule"
)

type ScheduleStore interface {
	UpdateSchedule(ctx context.Context, t models.NotificationType, schedule string) error
}

type Rearmer interface {
	Rearm(ctx context.Context, t models.NotificationType) (*scheduler.ScheduledNotification, error)
}

type Handler struct {
	config       *Config
	store        ScheduleStore
	scheduler    Rearmer
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Store        ScheduleStore
	Scheduler    Rearmer
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
	if opts.Store == nil || opts.Scheduler == nil {
		return nil, fmt.Errorf("%s: store and scheduler are required", TaskType)
	}

	log := opts.Logger.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		store:        opts.Store,
		scheduler:    opts.Scheduler,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing schedule update", map[string]interface{}{
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
	input.Schedule = strings.TrimSpace(input.Schedule)
	return &input, nil
}

// Execute stores the new expression and rearms the timer for the type.
// The expression is parsed before anything is written, so a bad one leaves
// both the stored schedule and the live timer untouched. Types without an
// enabled rule are stored but not armed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	t, ok := models.ParseNotificationType(input.NotificationType)
	if !ok {
		return nil, errors.NewUnsupportedNotificationTypeError(input.NotificationType)
	}
	if _, err := scheduler.Parser.Parse(input.Schedule); err != nil {
		return nil, errors.NewScheduleInvalidError(string(t), input.Schedule, err)
	}

	if err := h.store.UpdateSchedule(ctx, t, input.Schedule); err != nil {
		return nil, err
	}

	output := &Output{NotificationType: string(t), Schedule: input.Schedule}

	armed, err := h.scheduler.Rearm(ctx, t)
	switch {
	case err == nil:
		output.Armed = true
		output.NextRun = armed.Next
	case errors.CodeOf(err) == errors.ErrCodeUnsupportedNotificationType:
		h.logger.Warn("schedule stored for a type without an enabled rule", map[string]interface{}{
			"notificationType": string(t),
		})
	default:
		return nil, err
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

	h.logger.Info("schedule updated", map[string]interface{}{
		"jobKey":           job.GetKey(),
		"notificationType": output.NotificationType,
		"armed":            output.Armed,
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
