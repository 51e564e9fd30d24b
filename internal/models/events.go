package models

import "time"

// Campaign event constants.
const (
	EventRunStarted      = "run_started"
	EventRunCompleted    = "run_completed"
	EventSkipped         = "skipped"
	EventSent            = "sent"
	EventSendFailed      = "send_failed"
	EventDelivered       = "delivered"
	EventDeliveryFailed  = "delivery_failed"
	EventDeliveryUnknown = "delivery_unknown"
)

// CampaignEvent represents a lifecycle event emitted while a run progresses.
// Events are consumed by external sinks (structured logs, Kafka status topic).
type CampaignEvent struct {
	RunID     string    `json:"run_id"`
	EventType string    `json:"event_type"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
