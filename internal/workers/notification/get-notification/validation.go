// internal/workers/notification/get-notification/validation.go
package getnotification

import "courier-notifier/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["userUuid"],
	"properties": {
		"userUuid": {"type": "string", "minLength": 1},
		"notificationId": {"type": "integer", "minimum": 1},
		"languageCode": {"type": "string", "pattern": "^[a-z]{2}$"},
		"page": {"type": "integer", "minimum": 0},
		"size": {"type": "integer", "minimum": 1, "maximum": 100}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
