package updatenotificationschedule

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/scheduler"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpdateSchedule(ctx context.Context, t models.NotificationType, schedule string) error {
	return m.Called(ctx, t, schedule).Error(0)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Rearm(ctx context.Context, t models.NotificationType) (*scheduler.ScheduledNotification, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.ScheduledNotification), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "notification-admin",
		ElementId:          "Activity_UpdateSchedule",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, store ScheduleStore, sched Rearmer) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Store:        store,
		Scheduler:    sched,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockStore{}, &MockScheduler{})

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"notificationType": "UNPAID_ORDER",
		"schedule":         " 0 0 18 * * ? ",
	}))
	require.NoError(t, err)
	assert.Equal(t, &Input{NotificationType: "UNPAID_ORDER", Schedule: "0 0 18 * * ?"}, input)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{"notificationType": "UNPAID_ORDER"}))
	assert.Equal(t, errors.ErrCodeInvalidEventPayload, errors.CodeOf(err))
}

func TestHandler_Execute_StoresAndRearms(t *testing.T) {
	ctx := context.Background()
	next := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)

	store := &MockStore{}
	store.On("UpdateSchedule", ctx, models.NotificationUnpaidOrder, "0 0 18 * * ?").Return(nil)
	sched := &MockScheduler{}
	sched.On("Rearm", ctx, models.NotificationUnpaidOrder).Return(&scheduler.ScheduledNotification{
		Type:       models.NotificationUnpaidOrder,
		Expression: "0 0 18 * * ?",
		Next:       next,
	}, nil)

	out, err := newTestHandler(t, store, sched).Execute(ctx, &Input{
		NotificationType: "UNPAID_ORDER",
		Schedule:         "0 0 18 * * ?",
	})
	require.NoError(t, err)
	assert.True(t, out.Armed)
	assert.Equal(t, next, out.NextRun)
	assert.Equal(t, "2026-10-19T18:00:00Z", out.ToVariables()["nextRun"])

	store.AssertExpectations(t)
	sched.AssertExpectations(t)
}

func TestHandler_Execute_InvalidExpressionWritesNothing(t *testing.T) {
	store := &MockStore{}
	sched := &MockScheduler{}

	_, err := newTestHandler(t, store, sched).Execute(context.Background(), &Input{
		NotificationType: "UNPAID_ORDER",
		Schedule:         "every day at six",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeScheduleInvalid, errors.CodeOf(err))
	store.AssertNotCalled(t, "UpdateSchedule", mock.Anything, mock.Anything, mock.Anything)
	sched.AssertNotCalled(t, "Rearm", mock.Anything, mock.Anything)
}

func TestHandler_Execute_UnknownType(t *testing.T) {
	_, err := newTestHandler(t, &MockStore{}, &MockScheduler{}).Execute(context.Background(), &Input{
		NotificationType: "NOT_A_TYPE",
		Schedule:         "0 0 18 * * ?",
	})
	assert.Equal(t, errors.ErrCodeUnsupportedNotificationType, errors.CodeOf(err))
}

func TestHandler_Execute_TypeWithoutRule(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	store.On("UpdateSchedule", ctx, models.NotificationTest, "@daily").Return(nil)
	sched := &MockScheduler{}
	sched.On("Rearm", ctx, models.NotificationTest).
		Return(nil, errors.NewUnsupportedNotificationTypeError("TEST"))

	out, err := newTestHandler(t, store, sched).Execute(ctx, &Input{NotificationType: "TEST", Schedule: "@daily"})
	require.NoError(t, err)
	assert.False(t, out.Armed)
	assert.NotContains(t, out.ToVariables(), "nextRun")
}

func TestHandler_Execute_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing schedule row", func(t *testing.T) {
		store := &MockStore{}
		store.On("UpdateSchedule", ctx, models.NotificationUnpaidPackage, "@hourly").
			Return(errors.NewScheduleNotFoundError("UNPAID_PACKAGE"))
		sched := &MockScheduler{}

		_, err := newTestHandler(t, store, sched).Execute(ctx, &Input{NotificationType: "UNPAID_PACKAGE", Schedule: "@hourly"})
		assert.Equal(t, errors.ErrCodeScheduleNotFound, errors.CodeOf(err))
		sched.AssertNotCalled(t, "Rearm", mock.Anything, mock.Anything)
	})

	t.Run("rearm failure", func(t *testing.T) {
		store := &MockStore{}
		store.On("UpdateSchedule", ctx, models.NotificationUnpaidOrder, "@hourly").Return(nil)
		sched := &MockScheduler{}
		sched.On("Rearm", ctx, models.NotificationUnpaidOrder).
			Return(nil, errors.NewQueryExecutionFailedError("active_schedule", assert.AnError))

		_, err := newTestHandler(t, store, sched).Execute(ctx, &Input{NotificationType: "UNPAID_ORDER", Schedule: "@hourly"})
		assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.CodeOf(err))
	})
}
