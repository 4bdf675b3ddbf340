// internal/models/notification.go
package models

import (
	"sort"
	"time"
)

type NotificationType string

const (
	NotificationUnpaidOrder               NotificationType = "UNPAID_ORDER"
	NotificationOrderIsPaid               NotificationType = "ORDER_IS_PAID"
	NotificationCourierItineraryFormed    NotificationType = "COURIER_ITINERARY_FORMED"
	NotificationUnpaidPackage             NotificationType = "UNPAID_PACKAGE"
	NotificationAccruedBonuses            NotificationType = "ACCRUED_BONUSES_TO_ACCOUNT"
	NotificationViolationTheRules         NotificationType = "VIOLATION_THE_RULES"
	NotificationCanceledViolation         NotificationType = "CANCELED_VIOLATION_THE_RULES_BY_THE_MANAGER"
	NotificationChangedViolationStatus    NotificationType = "CHANGED_IN_RULE_VIOLATION_STATUS"
	NotificationLetsStayConnected         NotificationType = "LETS_STAY_CONNECTED"
	NotificationBonusesFromCancelledOrder NotificationType = "BONUSES_FROM_CANCELLED_ORDER"
	NotificationOrderStatusChanged        NotificationType = "ORDER_STATUS_CHANGED"
	NotificationHalfPaidBroughtByHimself  NotificationType = "HALF_PAID_ORDER_WITH_STATUS_BROUGHT_BY_HIMSELF"
	NotificationDoneOrCanceledUnpaidOrder NotificationType = "DONE_OR_CANCELED_UNPAID_ORDER"
	NotificationCustom                    NotificationType = "CUSTOM"
	NotificationTariffPriceWasChanged     NotificationType = "TARIFF_PRICE_WAS_CHANGED"
	NotificationCreateNewOrder            NotificationType = "CREATE_NEW_ORDER"
	NotificationTest                      NotificationType = "TEST"
)

var allNotificationTypes = []NotificationType{
	NotificationUnpaidOrder,
	NotificationOrderIsPaid,
	NotificationCourierItineraryFormed,
	NotificationUnpaidPackage,
	NotificationAccruedBonuses,
	NotificationViolationTheRules,
	NotificationCanceledViolation,
	NotificationChangedViolationStatus,
	NotificationLetsStayConnected,
	NotificationBonusesFromCancelledOrder,
	NotificationOrderStatusChanged,
	NotificationHalfPaidBroughtByHimself,
	NotificationDoneOrCanceledUnpaidOrder,
	NotificationCustom,
	NotificationTariffPriceWasChanged,
	NotificationCreateNewOrder,
	NotificationTest,
}

// ParseNotificationType returns false for names outside the known set.
func ParseNotificationType(s string) (NotificationType, bool) {
	for _, t := range allNotificationTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// ReceiverType selects the template variant: SITE renders into the inbox,
// OTHER is used for bot, email and SMS bodies.
type ReceiverType string

const (
	ReceiverSite  ReceiverType = "SITE"
	ReceiverOther ReceiverType = "OTHER"
)

type TemplateStatus string

const (
	TemplateActive   TemplateStatus = "ACTIVE"
	TemplateInactive TemplateStatus = "INACTIVE"
)

type NotificationTemplate struct {
	ID           int64            `json:"id"`
	Type         NotificationType `json:"type"`
	LanguageCode string           `json:"languageCode"`
	ReceiverType ReceiverType     `json:"receiverType"`
	Title        string           `json:"title"`
	Body         string           `json:"body"`
	Schedule     string           `json:"schedule,omitempty"`
	Status       TemplateStatus   `json:"status"`
}

type UserNotification struct {
	ID         int64                   `json:"id"`
	Type       NotificationType        `json:"type"`
	UserID     int64                   `json:"userId"`
	OrderID    *int64                  `json:"orderId,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
	Read       bool                    `json:"read"`
	Parameters []NotificationParameter `json:"parameters,omitempty"`
}

type NotificationParameter struct {
	ID             int64  `json:"id,omitempty"`
	NotificationID int64  `json:"notificationId,omitempty"`
	Key            string `json:"key"`
	Value          string `json:"value"`
}

// ParameterMap flattens the parameter set for template rendering.
func (n *UserNotification) ParameterMap() map[string]string {
	out := make(map[string]string, len(n.Parameters))
	for _, p := range n.Parameters {
		out[p.Key] = p.Value
	}
	return out
}

// Parameters builds a deterministic parameter slice from a map.
func Parameters(values map[string]string) []NotificationParameter {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]NotificationParameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, NotificationParameter{Key: k, Value: values[k]})
	}
	return out
}
