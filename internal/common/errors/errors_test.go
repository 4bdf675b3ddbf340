package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"notification not found", NewNotificationNotFoundError(7), true},
		{"wrapped user not found", fmt.Errorf("inbox: %w", NewUserNotFoundError("uuid-1")), true},
		{"template not found", NewTemplateNotFoundError("UNPAID_ORDER", "ua", "SITE"), true},
		{"query failure", NewQueryExecutionFailedError("orders", stderrors.New("boom")), false},
		{"plain error", stderrors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestScheduleInvalidError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("expected exactly 6 fields")
	err := NewScheduleInvalidError("UNPAID_ORDER", "* *", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, err.Retryable)
	assert.True(t, IsConfigurationError(fmt.Errorf("rearm: %w", err)))
	assert.Contains(t, err.Error(), "SCHEDULE_INVALID")
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable database error keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewDatabaseInsertFailedError(stderrors.New("conn reset")))
		assert.Equal(t, "DATABASE_INSERT_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("configuration error is never retried", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewScheduleNotFoundError("UNPAID_PACKAGE"))
		assert.Equal(t, 0, bpmn.Retries)

		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "SCHEDULE_NOT_FOUND", vars["errorCode"])
		assert.Equal(t, "SCHEDULE_NOT_FOUND", vars["originalErrorCode"])
	})
}

func TestNormalize(t *testing.T) {
	std := NewViolationNotFoundError(12)
	assert.Same(t, std, Normalize(fmt.Errorf("wrap: %w", std)))

	plain := Normalize(stderrors.New("unexpected"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.False(t, IsRetryable(plain))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SCHEDULE", GetErrorCategory(ErrCodeScheduleInvalid))
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeNotificationNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidEventPayload))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING"))
}
