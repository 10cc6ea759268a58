package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxAttempts bounds how often one event is handed to the broker before it
// is parked as failed.
const MaxAttempts = 10

// Event is one row of the outbox table, written in the same transaction as
// the aggregate it describes.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
}

// NewEvent builds a pending event. Headers are copied so the caller may
// reuse its map.
func NewEvent(aggregateType, aggregateID, eventType string, payload []byte, headers map[string]string, traceparent string) Event {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       payload,
		Headers:       h,
		Traceparent:   traceparent,
		Status:        StatusPending,
	}
}

// StatusAfterFailure is the status an event moves to when the current
// dispatch attempt fails.
func (e Event) StatusAfterFailure() Status {
	if e.RetryCount+1 >= MaxAttempts {
		return StatusFailed
	}
	return StatusPending
}
