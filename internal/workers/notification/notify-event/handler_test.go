package notifyevent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"courier-notifier/internal/common/config"
	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/delivery"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) result(args mock.Arguments) (*models.UserNotification, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserNotification), args.Error(1)
}

func (m *MockNotifier) NotifyPaidOrder(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func (m *MockNotifier) NotifyCourierItineraryFormed(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func (m *MockNotifier) NotifyBonuses(ctx context.Context, orderID, overpayment int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID, overpayment))
}

func (m *MockNotifier) NotifyBonusesFromCanceledOrder(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func (m *MockNotifier) NotifyAddViolation(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func (m *MockNotifier) NotifyChangedViolation(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func (m *MockNotifier) NotifyCanceledViolation(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func (m *MockNotifier) NotifyOrderStatusChanged(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return m.result(m.Called(ctx, orderID))
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "order-lifecycle",
		ElementId:          "Activity_NotifyEvent",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, n EventNotifier) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Notifier:     n,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestNewHandler(t *testing.T) {
	t.Run("requires notifier", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Logger: logger.NewNoOpLogger()})
		assert.Error(t, err)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{
			CustomConfig: &Config{MaxJobsActive: 0, Timeout: time.Second},
			Notifier:     &MockNotifier{},
			Logger:       logger.NewNoOpLogger(),
		})
		assert.Error(t, err)
	})

	t.Run("reads worker config", func(t *testing.T) {
		h, err := NewHandler(HandlerOptions{
			AppConfig: &config.Config{Workers: map[string]config.WorkerConfig{
				TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 5000},
			}},
			Notifier: &MockNotifier{},
			Logger:   logger.NewNoOpLogger(),
		})
		require.NoError(t, err)
		assert.False(t, h.IsEnabled())
		assert.Equal(t, 2, h.GetConfig().MaxJobsActive)
		assert.Equal(t, 5*time.Second, h.GetConfig().Timeout)
		assert.Equal(t, "notify-event", h.GetTaskType())
	})
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockNotifier{})

	tests := []struct {
		name    string
		vars    map[string]interface{}
		want    *Input
		wantErr bool
	}{
		{
			name: "paid order",
			vars: map[string]interface{}{"eventType": "ORDER_IS_PAID", "orderId": 42},
			want: &Input{EventType: "ORDER_IS_PAID", OrderID: 42},
		},
		{
			name: "bonuses with amount",
			vars: map[string]interface{}{"eventType": "ACCRUED_BONUSES_TO_ACCOUNT", "orderId": 7, "amount": 150},
			want: &Input{EventType: "ACCRUED_BONUSES_TO_ACCOUNT", OrderID: 7, Amount: 150},
		},
		{
			name:    "scheduled type is not an event",
			vars:    map[string]interface{}{"eventType": "UNPAID_ORDER", "orderId": 42},
			wantErr: true,
		},
		{
			name:    "missing order id",
			vars:    map[string]interface{}{"eventType": "ORDER_IS_PAID"},
			wantErr: true,
		},
		{
			name:    "fractional order id",
			vars:    map[string]interface{}{"eventType": "ORDER_IS_PAID", "orderId": 4.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.vars))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidEventPayload, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

func TestHandler_Execute_RoutesEvents(t *testing.T) {
	ctx := context.Background()
	sent := &models.UserNotification{ID: 900}

	tests := []struct {
		eventType string
		method    string
		args      []interface{}
	}{
		{"ORDER_IS_PAID", "NotifyPaidOrder", []interface{}{int64(42)}},
		{"COURIER_ITINERARY_FORMED", "NotifyCourierItineraryFormed", []interface{}{int64(42)}},
		{"BONUSES_FROM_CANCELLED_ORDER", "NotifyBonusesFromCanceledOrder", []interface{}{int64(42)}},
		{"VIOLATION_THE_RULES", "NotifyAddViolation", []interface{}{int64(42)}},
		{"CHANGED_IN_RULE_VIOLATION_STATUS", "NotifyChangedViolation", []interface{}{int64(42)}},
		{"CANCELED_VIOLATION_THE_RULES_BY_THE_MANAGER", "NotifyCanceledViolation", []interface{}{int64(42)}},
		{"ORDER_STATUS_CHANGED", "NotifyOrderStatusChanged", []interface{}{int64(42)}},
		{"ACCRUED_BONUSES_TO_ACCOUNT", "NotifyBonuses", []interface{}{int64(42), int64(300)}},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			n := &MockNotifier{}
			n.On(tt.method, append([]interface{}{ctx}, tt.args...)...).Return(sent, nil)

			out, err := newTestHandler(t, n).Execute(ctx, &Input{EventType: tt.eventType, OrderID: 42, Amount: 300})
			require.NoError(t, err)
			assert.True(t, out.Notified)
			assert.Equal(t, int64(900), out.NotificationID)
			n.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_Skipped(t *testing.T) {
	ctx := context.Background()
	n := &MockNotifier{}
	n.On("NotifyPaidOrder", ctx, int64(42)).Return(nil, nil)

	out, err := newTestHandler(t, n).Execute(ctx, &Input{EventType: "ORDER_IS_PAID", OrderID: 42})
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Equal(t, map[string]interface{}{"notified": false, "eventType": "ORDER_IS_PAID"}, out.ToVariables())
}

func TestHandler_Execute_DisabledTypeCompletes(t *testing.T) {
	ctx := context.Background()
	n := &MockNotifier{}
	n.On("NotifyOrderStatusChanged", ctx, int64(42)).Return(nil, delivery.ErrTypeDisabled)

	out, err := newTestHandler(t, n).Execute(ctx, &Input{EventType: "ORDER_STATUS_CHANGED", OrderID: 42})
	require.NoError(t, err, "a disabled type is not a job failure")
	assert.False(t, out.Notified)
	assert.True(t, out.Disabled)
	assert.Equal(t, map[string]interface{}{
		"notified":             false,
		"eventType":            "ORDER_STATUS_CHANGED",
		"notificationDisabled": true,
	}, out.ToVariables())
	n.AssertExpectations(t)
}

func TestHandler_Execute_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("bonuses without amount", func(t *testing.T) {
		n := &MockNotifier{}
		_, err := newTestHandler(t, n).Execute(ctx, &Input{EventType: "ACCRUED_BONUSES_TO_ACCOUNT", OrderID: 42})
		assert.Equal(t, errors.ErrCodeInvalidEventPayload, errors.CodeOf(err))
		n.AssertNotCalled(t, "NotifyBonuses", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := newTestHandler(t, &MockNotifier{}).Execute(ctx, &Input{EventType: "NOPE", OrderID: 42})
		assert.Equal(t, errors.ErrCodeUnsupportedNotificationType, errors.CodeOf(err))
	})

	t.Run("notifier failure is returned", func(t *testing.T) {
		n := &MockNotifier{}
		n.On("NotifyAddViolation", ctx, int64(42)).Return(nil, errors.NewViolationNotFoundError(42))

		_, err := newTestHandler(t, n).Execute(ctx, &Input{EventType: "VIOLATION_THE_RULES", OrderID: 42})
		assert.True(t, errors.IsNotFound(err))
	})
}
