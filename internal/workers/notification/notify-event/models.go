// internal/workers/notification/notify-event/models.go
package notifyevent

// Input is the job payload published by the order and violation processes.
type Input struct {
	EventType string `json:"eventType"`
	OrderID   int64  `json:"orderId"`
	// Amount is the overpayment credited as bonuses; only ACCRUED_BONUSES_TO_ACCOUNT reads it.
	Amount int64 `json:"amount,omitempty"`
}

type Output struct {
	Notified       bool   `json:"notified"`
	NotificationID int64  `json:"notificationId,omitempty"`
	EventType      string `json:"eventType"`
	Disabled       bool   `json:"disabled,omitempty"`
}

// ToVariables maps the output onto process variables.
func (o *Output) ToVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"notified":  o.Notified,
		"eventType": o.EventType,
	}
	if o.NotificationID != 0 {
		vars["notificationId"] = o.NotificationID
	}
	if o.Disabled {
		vars["notificationDisabled"] = true
	}
	return vars
}
