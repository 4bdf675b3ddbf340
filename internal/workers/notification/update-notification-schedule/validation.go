// internal/workers/notification/update-notification-schedule/validation.go
package updatenotificationschedule

import "courier-notifier/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["notificationType", "schedule"],
	"properties": {
		"notificationType": {"type": "string", "minLength": 1},
		"schedule": {"type": "string", "minLength": 1, "maxLength": 120}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
