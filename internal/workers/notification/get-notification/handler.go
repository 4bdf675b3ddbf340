// internal/workers/notification/get-notification/handler.go
package getnotification

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
	"courier-notifier/internal/notification/inbox"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "get-notification"
)

// Inbox is satisfied by *inbox.Inbox.
type Inbox interface {
	List(ctx context.Context, userUUID, language string, page, size int) (*inbox.Page, error)
	UnreadCount(ctx context.Context, userUUID string) (int, error)
	Get(ctx context.Context, userUUID string, id int64, language string) (*inbox.Entry, error)
}

type Handler struct {
	config       *Config
	inbox        Inbox
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Inbox        Inbox
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
	if opts.Inbox == nil {
		return nil, fmt.Errorf("%s: inbox is required", TaskType)
	}

	log := opts.Logger.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		inbox:        opts.Inbox,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing inbox request", map[string]interface{}{
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

// Execute reads one notification, marking it read, or one inbox page. The
// unread count is taken after the read so it reflects the new state.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	output := &Output{}

	if input.NotificationID > 0 {
		entry, err := h.inbox.Get(ctx, input.UserUUID, input.NotificationID, input.LanguageCode)
		if err != nil {
			return nil, err
		}
		output.Notification = entry
	} else {
		page, err := h.inbox.List(ctx, input.UserUUID, input.LanguageCode, input.Page, input.Size)
		if err != nil {
			return nil, err
		}
		output.Page = page
	}

	unread, err := h.inbox.UnreadCount(ctx, input.UserUUID)
	if err != nil {
		return nil, err
	}
	output.UnreadCount = unread
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
