// internal/workers/notification/update-notification-template/handler.go
package updatenotificationtemplate

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-notification-template"
)

type TemplateStore interface {
	UpdateTemplateBody(ctx context.Context, t models.NotificationType, language string, receiver models.ReceiverType, body string) error
}

type Handler struct {
	config       *Config
	store        TemplateStore
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Store        TemplateStore
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
	if opts.Store == nil {
		return nil, fmt.Errorf("%s: template store is required", TaskType)
	}

	log := opts.Logger.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		store:        opts.Store,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing template update", map[string]interface{}{
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

// Execute replaces one template body. The catalog drops the cached copy, so
// the next emission of the type renders the new text.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	t, ok := models.ParseNotificationType(input.NotificationType)
	if !ok {
		return nil, errors.NewUnsupportedNotificationTypeError(input.NotificationType)
	}
	receiver := models.ReceiverType(input.ReceiverType)
	if receiver != models.ReceiverSite && receiver != models.ReceiverOther {
		return nil, errors.NewInvalidEventPayloadError("unknown receiverType " + input.ReceiverType)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, errors.NewInvalidEventPayloadError("body must not be blank")
	}

	if err := h.store.UpdateTemplateBody(ctx, t, input.LanguageCode, receiver, input.Body); err != nil {
		return nil, err
	}

	return &Output{
		NotificationType: string(t),
		LanguageCode:     input.LanguageCode,
		ReceiverType:     string(receiver),
		Updated:          true,
	}, nil
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
	}
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
