// internal/workers/notification/update-notification-template/models.go
package updatenotificationtemplate

type Input struct {
	NotificationType string `json:"notificationType"`
	LanguageCode     string `json:"languageCode"`
	ReceiverType     string `json:"receiverType"`
	Body             string `json:"body"`
}

type Output struct {
	NotificationType string `json:"notificationType"`
	LanguageCode     string `json:"languageCode"`
	ReceiverType     string `json:"receiverType"`
	Updated          bool   `json:"updated"`
}

func (o *Output) ToVariables() map[string]interface{} {
	return map[string]interface{}{
		"notificationType": o.NotificationType,
		"languageCode":     o.LanguageCode,
		"receiverType":     o.ReceiverType,
		"templateUpdated":  o.Updated,
	}
}
