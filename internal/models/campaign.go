package models

import (
	"sync"
	"time"
)

// Recipient is a single name/phone pair targeted for one message. Recipients
// are immutable once loaded; the engine never mutates them.
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// OptOutSet holds phone numbers that must never receive a message. It is
// populated by an external collaborator (e.g. a reply-handling subsystem) and
// read by the engine when filtering. The engine snapshots membership once per
// run; numbers added mid-run do not retroactively exclude recipients.
type OptOutSet struct {
	mu      sync.RWMutex
	numbers map[string]struct{}
}

// NewOptOutSet constructs a set seeded with the supplied numbers.
func NewOptOutSet(numbers ...string) *OptOutSet {
	s := &OptOutSet{numbers: make(map[string]struct{}, len(numbers))}
	for _, n := range numbers {
		s.numbers[n] = struct{}{}
	}
	return s
}

// Add registers a phone number as opted out.
func (s *OptOutSet) Add(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[number] = struct{}{}
}

// Contains reports whether the number is opted out.
func (s *OptOutSet) Contains(number string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.numbers[number]
	return ok
}

// Len returns the number of opted-out entries.
func (s *OptOutSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.numbers)
}

// SendOutcome classifies what happened to a recipient during the dispatch
// phase. Every input recipient receives exactly one SendOutcome.
type SendOutcome string

const (
	SendOutcomeSent                SendOutcome = "sent"
	SendOutcomeFailed              SendOutcome = "send_failed"
	SendOutcomeSkippedInvalidPhone SendOutcome = "skipped_invalid_phone"
	SendOutcomeSkippedOptedOut     SendOutcome = "skipped_opted_out"
)

// DeliveryOutcome classifies the result of status polling for a message that
// was accepted by the provider. It is only ever attached to recipients whose
// SendOutcome is SendOutcomeSent.
type DeliveryOutcome string

const (
	DeliveryDelivered DeliveryOutcome = "delivered"
	DeliveryFailed    DeliveryOutcome = "failed"
	DeliveryUnknown   DeliveryOutcome = "unknown"
)

// RecipientResult records the full outcome for one input recipient.
type RecipientResult struct {
	Recipient Recipient       `json:"recipient"`
	Send      SendOutcome     `json:"send"`
	MessageID string          `json:"message_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Delivery  DeliveryOutcome `json:"delivery,omitempty"`
}

// ReportCounts aggregates outcome totals for a run.
type ReportCounts struct {
	Sent                int `json:"sent"`
	SendFailed          int `json:"send_failed"`
	SkippedInvalidPhone int `json:"skipped_invalid_phone"`
	SkippedOptedOut     int `json:"skipped_opted_out"`
	Delivered           int `json:"delivered"`
	DeliveryFailed      int `json:"delivery_failed"`
	DeliveryUnknown     int `json:"delivery_unknown"`
}

// RunReport is the aggregated result of one campaign run. Results preserve
// the order of the input recipient list regardless of dispatch completion
// order.
type RunReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []RecipientResult `json:"results"`
	Counts     ReportCounts      `json:"counts"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Tally recomputes the outcome counts from the result slice.
func (r *RunReport) Tally() {
	counts := ReportCounts{}
	for _, res := range r.Results {
		switch res.Send {
		case SendOutcomeSent:
			counts.Sent++
		case SendOutcomeFailed:
			counts.SendFailed++
		case SendOutcomeSkippedInvalidPhone:
			counts.SkippedInvalidPhone++
		case SendOutcomeSkippedOptedOut:
			counts.SkippedOptedOut++
		}
		switch res.Delivery {
		case DeliveryDelivered:
			counts.Delivered++
		case DeliveryFailed:
			counts.DeliveryFailed++
		case DeliveryUnknown:
			counts.DeliveryUnknown++
		}
	}
	r.Counts = counts
}
