// internal/workers/notification/update-notification-template/validation.go
package updatenotificationtemplate

import "courier-notifier/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["notificationType", "languageCode", "receiverType", "body"],
	"properties": {
		"notificationType": {"type": "string", "minLength": 1},
		"languageCode": {"type": "string", "pattern": "^[a-z]{2}$"},
		"receiverType": {"type": "string", "enum": ["SITE", "OTHER"]},
		"body": {"type": "string", "minLength": 1, "maxLength": 4096}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
