package model

import (
	"encoding/json"
	"time"
)

// EmailEventType identifies which template a notification is rendered from.
type EmailEventType string

const (
	EmailEventUserSignup        EmailEventType = "USER_SIGNUP"
	EmailEventEmailVerification EmailEventType = "USER_EMAIL_VERIFICATION"
	EmailEventPasswordReset     EmailEventType = "PASSWORD_RESET"
)

// EmailEventTypes lists every supported event type.
var EmailEventTypes = []EmailEventType{
	EmailEventUserSignup,
	EmailEventEmailVerification,
	EmailEventPasswordReset,
}

// Valid reports whether t is a supported event type.
func (t EmailEventType) Valid() bool {
	for _, v := range EmailEventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EmailNotification is a queued or sent outbound email.
// Metadata holds the template data so the message can be re-rendered on retry.
type EmailNotification struct {
	ID         string
	UserID     string
	Email      string
	EventType  EmailEventType
	Subject    string
	Body       string
	Metadata   json.RawMessage
	IsSent     bool
	SentAt     *time.Time
	Error      string
	RetryCount int
	MaxRetries int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EmailStats summarizes the notification table.
type EmailStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}
