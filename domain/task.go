package domain

import "time"

type TaskStatus string

const (
	TaskAssigned  TaskStatus = "assigned"
	TaskAccepted  TaskStatus = "accepted"
	TaskPickedUp  TaskStatus = "picked_up"
	TaskInTransit TaskStatus = "in_transit"
	TaskDelivered TaskStatus = "delivered"
)

// taskOrder is the only legal progression; each step moves exactly one position forward.
var taskOrder = []TaskStatus{TaskAssigned, TaskAccepted, TaskPickedUp, TaskInTransit, TaskDelivered}

func (s TaskStatus) rank() int {
	for i, st := range taskOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s TaskStatus) Valid() bool {
	return s.rank() >= 0
}

// Next returns the status following s, or false when s is terminal or unknown.
func (s TaskStatus) Next() (TaskStatus, bool) {
	r := s.rank()
	if r < 0 || r == len(taskOrder)-1 {
		return "", false
	}
	return taskOrder[r+1], true
}

// CanAdvanceTo reports whether next is the adjacent successor of s.
func (s TaskStatus) CanAdvanceTo(next TaskStatus) bool {
	n, ok := s.Next()
	return ok && n == next
}

// DonationStatus returns the donation status implied by a task reaching s,
// or false when the donation is unaffected.
func (s TaskStatus) DonationStatus() (DonationStatus, bool) {
	switch s {
	case TaskInTransit:
		return DonationInTransit, true
	case TaskDelivered:
		return DonationDelivered, true
	}
	return "", false
}

// Task is a delivery unit derived from an accepted donation.
type Task struct {
	ID                  string     `json:"id"`
	TaskID              string     `json:"taskId"`
	DonationID          string     `json:"donationId"`
	NGOID               string     `json:"ngoId"`
	DonorID             string     `json:"donorId"`
	PickupLocation      Location   `json:"pickupLocation"`
	DeliveryLocation    Location   `json:"deliveryLocation"`
	Status              TaskStatus `json:"status"`
	AssignedVolunteerID *string    `json:"assignedVolunteerId"`
	RejectedBy          []string   `json:"-"`
	Distance            float64    `json:"distance"`
	EstimatedTime       int        `json:"estimatedTime"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == TaskDelivered
}

// AssignedTo reports whether the task is currently offered to or held by volunteerID.
func (t *Task) AssignedTo(volunteerID string) bool {
	return t != nil && t.AssignedVolunteerID != nil && *t.AssignedVolunteerID == volunteerID
}

// WasRejectedBy reports whether volunteerID has declined this task before.
func (t *Task) WasRejectedBy(volunteerID string) bool {
	if t == nil {
		return false
	}
	for _, id := range t.RejectedBy {
		if id == volunteerID {
			return true
		}
	}
	return false
}
