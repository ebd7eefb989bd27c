package domain

import (
	"encoding/json"
	"time"
)

// Aggregate kinds recorded in the lifecycle log.
const (
	AggregateDonation = "donation"
	AggregateTask     = "task"
	AggregateUser     = "user"
)

// Lifecycle event names.
const (
	EventDonationCreated   = "created"
	EventDonationAccepted  = "accepted"
	EventDonationCancelled = "cancelled"
	EventDonationInTransit = "in_transit"
	EventDonationDelivered = "delivered"
	EventTaskCreated       = "created"
	EventTaskOffered       = "offered"
	EventTaskAccepted      = "accepted"
	EventTaskRejected      = "rejected"
	EventTaskPickedUp      = "picked_up"
	EventTaskInTransit     = "in_transit"
	EventTaskDelivered     = "delivered"
	EventUserRegistered    = "registered"
	EventUserVerified      = "verified"
	EventUserRejected      = "rejected"
)

// Event represents one accepted state transition applied to an aggregate.
type Event struct {
	ID          string            `json:"id"`
	AggregateID string            `json:"aggregateId"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	ActorID     string            `json:"actorId,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// RoutingKey is the topic used when the event leaves the process.
func (e Event) RoutingKey() string {
	return e.Kind + "." + e.Name
}
