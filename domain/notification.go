package domain

import "time"

// Notification kinds. The kind tells clients which view to refresh.
const (
	NotifyUserRegistered    = "user_registered"
	NotifyAccountVerified   = "account_verified"
	NotifyDonationCreated   = "donation_created"
	NotifyDonationAccepted  = "donation_accepted"
	NotifyDonationCancelled = "donation_cancelled"
	NotifyTaskAssigned      = "task_assigned"
	NotifyTaskAccepted      = "task_accepted"
	NotifyTaskRejected      = "task_rejected"
	NotifyTaskProgress      = "task_progress"
	NotifyDonationDelivered = "donation_delivered"
)

// Notification is owned exclusively by its recipient.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"type,omitempty"`
	RelatedID string    `json:"relatedId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
