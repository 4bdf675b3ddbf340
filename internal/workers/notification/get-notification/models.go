// internal/workers/notification/get-notification/models.go
package getnotification

import "courier-notifier/internal/notification/inbox"

// Input selects one notification when NotificationID is set, otherwise a page
// of the user's inbox.
type Input struct {
	UserUUID       string `json:"userUuid"`
	NotificationID int64  `json:"notificationId,omitempty"`
	LanguageCode   string `json:"languageCode,omitempty"`
	Page           int    `json:"page,omitempty"`
	Size           int    `json:"size,omitempty"`
}

type Output struct {
	Notification *inbox.Entry `json:"notification,omitempty"`
	Page         *inbox.Page  `json:"page,omitempty"`
	UnreadCount  int          `json:"unreadCount"`
}

func (o *Output) ToVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"unreadCount": o.UnreadCount,
	}
	if o.Notification != nil {
		vars["notification"] = o.Notification
	}
	if o.Page != nil {
		vars["notifications"] = o.Page.Items
		vars["totalNotifications"] = o.Page.Total
		vars["totalPages"] = o.Page.TotalPages
	}
	return vars
}
