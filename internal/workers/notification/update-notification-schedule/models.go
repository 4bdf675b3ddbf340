// internal/workers/notification/update-notification-schedule/models.go
package updatenotificationschedule

import "time"

type Input struct {
	NotificationType string `json:"notificationType"`
	Schedule         string `json:"schedule"`
}

type Output struct {
	NotificationType string    `json:"notificationType"`
	Schedule         string    `json:"schedule"`
	Armed            bool      `json:"armed"`
	NextRun          time.Time `json:"nextRun,omitempty"`
}

func (o *Output) ToVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"notificationType": o.NotificationType,
		"schedule":         o.Schedule,
		"scheduleArmed":    o.Armed,
	}
	if !o.NextRun.IsZero() {
		vars["nextRun"] = o.NextRun.UTC().Format(time.RFC3339)
	}
	return vars
}
