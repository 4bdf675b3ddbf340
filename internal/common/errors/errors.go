// Package errors provides standardized error handling for the notification subsystem.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: fatal, surfaced, never retried.
	ErrCodeScheduleNotFound ErrorCode = "SCHEDULE_NOT_FOUND"
	ErrCodeScheduleInvalid  ErrorCode = "SCHEDULE_INVALID"
	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"

	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrCodeOrderNotFound        ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeViolationNotFound    ErrorCode = "VIOLATION_NOT_FOUND"

	ErrCodeCandidateInvalid            ErrorCode = "CANDIDATE_INVALID"
	ErrCodeUnsupportedNotificationType ErrorCode = "UNSUPPORTED_NOTIFICATION_TYPE"
	ErrCodeInvalidEventPayload         ErrorCode = "INVALID_EVENT_PAYLOAD"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewScheduleNotFoundError is returned when a type has no active schedule.
func NewScheduleNotFoundError(notificationType string) *StandardError {
	return newError(ErrCodeScheduleNotFound, "No active schedule for notification type",
		fmt.Sprintf("type: %s", notificationType), false, nil)
}

// NewScheduleInvalidError is returned when a cron expression fails to parse.
func NewScheduleInvalidError(notificationType, expression string, err error) *StandardError {
	return newError(ErrCodeScheduleInvalid, "Invalid schedule expression",
		fmt.Sprintf("type: %s, expression: %q, error: %v", notificationType, expression, err), false, err)
}

// NewTemplateNotFoundError is returned when no template matches (type, language, receiver).
func NewTemplateNotFoundError(notificationType, language, receiver string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Notification template not found",
		fmt.Sprintf("type: %s, language: %s, receiver: %s", notificationType, language, receiver), false, nil)
}

// NewNotificationNotFoundError covers both unknown ids and ids owned by another user.
func NewNotificationNotFoundError(id int64) *StandardError {
	return newError(ErrCodeNotificationNotFound, "Notification not found",
		fmt.Sprintf("notificationId: %d", id), false, nil)
}

func NewUserNotFoundError(ref string) *StandardError {
	return newError(ErrCodeUserNotFound, "User not found", fmt.Sprintf("user: %s", ref), false, nil)
}

func NewOrderNotFoundError(orderID int64) *StandardError {
	return newError(ErrCodeOrderNotFound, "Order not found", fmt.Sprintf("orderId: %d", orderID), false, nil)
}

func NewViolationNotFoundError(orderID int64) *StandardError {
	return newError(ErrCodeViolationNotFound, "Violation not found for order",
		fmt.Sprintf("orderId: %d", orderID), false, nil)
}

// NewCandidateInvalidError marks a single malformed candidate in a rule run.
func NewCandidateInvalidError(details string) *StandardError {
	return newError(ErrCodeCandidateInvalid, "Malformed notification candidate", details, false, nil)
}

func NewUnsupportedNotificationTypeError(notificationType string) *StandardError {
	return newError(ErrCodeUnsupportedNotificationType, "Notification type has no dispatch rule",
		fmt.Sprintf("type: %s", notificationType), false, nil)
}

func NewInvalidEventPayloadError(details string) *StandardError {
	return newError(ErrCodeInvalidEventPayload, "Invalid notification event payload", details, false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryName string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", queryName, err.Error()), true, err)
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true, err)
}

// NewNotificationSendFailedError creates a retryable channel delivery error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a *StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in the chain, or "".
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ""
}

// IsNotFound reports whether err is any lookup-miss error.
func IsNotFound(err error) bool {
	return strings.HasSuffix(string(CodeOf(err)), "_NOT_FOUND")
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Retryable
	}
	return false
}

// IsConfigurationError reports whether err requires operator intervention.
func IsConfigurationError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeScheduleNotFound, ErrCodeScheduleInvalid, ErrCodeTemplateNotFound:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SCHEDULE"):
		return "SCHEDULE"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEND"):
		return "DELIVERY"
	case strings.HasSuffix(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
