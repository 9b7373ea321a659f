package notifications

import "time"

// TypeRenewalDue marks reminders written by the renewal checker.
const TypeRenewalDue = "renewal_due"

// Notification is an admin-facing reminder.
type Notification struct {
	ID        string
	CreatedAt time.Time
	Type      string
	Message   string
	PolicyID  string
	ClientID  string
	DueDate   *time.Time
	IsRead    bool
}
