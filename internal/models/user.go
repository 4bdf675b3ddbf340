package models

import "time"

type User struct {
	ID             int64  `json:"id"`
	UUID           string `json:"uuid"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	LanguageCode   string `json:"languageCode"`
	TelegramChatID string `json:"telegramChatId,omitempty"`
	ViberChatID    string `json:"viberChatId,omitempty"`
}

// InactiveUser is a user together with the date of their most recent order.
type InactiveUser struct {
	User
	LastOrderDate time.Time `json:"lastOrderDate"`
}
