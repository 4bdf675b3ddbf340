// internal/workers/notification/notify-event/validation.go
package notifyevent

import "courier-notifier/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["eventType", "orderId"],
	"properties": {
		"eventType": {
			"type": "string",
			"enum": [
				"ORDER_IS_PAID",
				"COURIER_ITINERARY_FORMED",
				"ACCRUED_BONUSES_TO_ACCOUNT",
				"BONUSES_FROM_CANCELLED_ORDER",
				"VIOLATION_THE_RULES",
				"CHANGED_IN_RULE_VIOLATION_STATUS",
				"CANCELED_VIOLATION_THE_RULES_BY_THE_MANAGER",
				"ORDER_STATUS_CHANGED"
			]
		},
		"orderId": {"type": "integer", "minimum": 1},
		"amount": {"type": "integer", "minimum": 0}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
