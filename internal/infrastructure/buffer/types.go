package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kinds of records the buffer can hold.
const (
	KindNotification = "notification"
	KindEvent        = "event"
)

// Item is a write that could not reach primary storage and waits for replay.
type Item struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Owner     string          `json:"owner"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	QueuedAt  time.Time       `json:"queued_at"`
}

func (i *Item) prepare(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.QueuedAt.IsZero() {
		i.QueuedAt = now
	}
}
