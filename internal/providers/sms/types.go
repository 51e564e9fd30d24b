package sms

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMissingCredentials indicates that provider credentials were absent or
// blank at construction time, before any network call was attempted.
var ErrMissingCredentials = errors.New("sms provider: missing credentials")

// ErrAuthRejected indicates the provider refused the configured credentials
// during the eager credential check.
var ErrAuthRejected = errors.New("sms provider: authentication rejected")

// Status is the provider-reported delivery state of a message.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusSending     Status = "sending"
	StatusSent        Status = "sent"
	StatusDelivered   Status = "delivered"
	StatusFailed      Status = "failed"
	StatusUndelivered Status = "undelivered"
	StatusUnknown     Status = "unknown"
)

// Terminal reports whether further polling is useful for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusUndelivered:
		return true
	}
	return false
}

// ParseStatus normalizes a raw provider status string.
func ParseStatus(raw string) Status {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return StatusUnknown
	}
	return Status(raw)
}

// Payload encapsulates the data required to send one SMS message. From may be
// empty, in which case the provider applies its configured sender address.
type Payload struct {
	From string
	To   string
	Body string
	Meta map[string]string
}

// RawResponse describes the low-level provider response after a send. ID is
// the provider-assigned message identifier used for later status fetches.
type RawResponse struct {
	ID        string
	Code      int
	Status    Status
	Body      string
	Timestamp time.Time
}

// Provider represents an outbound SMS provider (e.g. Twilio). Send submits a
// single message, FetchStatus retrieves the current delivery status of a
// previously sent message and VerifyCredentials performs an eager credential
// check before any message is dispatched.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
	FetchStatus(ctx context.Context, messageID string) (Status, error)
	VerifyCredentials(ctx context.Context) error
}
