package sms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scenario enumerates the mock behaviours supported by the SMS provider.
type Scenario string

const (
	ScenarioSuccess    Scenario = "success"
	ScenarioSendFailed Scenario = "send_failed"
	ScenarioAuthFailed Scenario = "auth_failed"
)

// Option customises the mock provider.
type Option func(*MockProvider)

// WithScenario sets the behaviour applied to every call.
func WithScenario(s Scenario) Option {
	return func(p *MockProvider) {
		p.scenario = s
	}
}

// WithLatency configures the artificial latency injected before sending.
func WithLatency(d time.Duration) Option {
	return func(p *MockProvider) {
		if d < 0 {
			d = 0
		}
		p.latency = d
	}
}

// WithClock overrides the clock used to timestamp responses (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(p *MockProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithStatusSequence scripts the statuses returned by successive FetchStatus
// calls for each message. Once the sequence is exhausted the final status is
// repeated.
func WithStatusSequence(statuses ...Status) Option {
	return func(p *MockProvider) {
		if len(statuses) > 0 {
			p.statusScript = append([]Status(nil), statuses...)
		}
	}
}

// MockProvider is a deterministic SMS provider used for tests and dry runs.
type MockProvider struct {
	logger       zerolog.Logger
	scenario     Scenario
	latency      time.Duration
	now          func() time.Time
	statusScript []Status

	mu      sync.Mutex
	sent    []Payload
	fetches map[string]int
}

// NewMockProvider constructs a mock SMS provider.
func NewMockProvider(logger zerolog.Logger, opts ...Option) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &MockProvider{
		logger:       logger,
		scenario:     ScenarioSuccess,
		latency:      25 * time.Millisecond,
		now:          time.Now,
		statusScript: []Status{StatusQueued, StatusSent, StatusDelivered},
		fetches:      make(map[string]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Send simulates submitting an SMS according to the configured scenario.
func (p *MockProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("sms mock: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("sms mock: recipient is required")
	}

	if err := p.sleep(ctx); err != nil {
		return nil, err
	}

	if p.scenario == ScenarioSendFailed {
		return &RawResponse{
			Code:      400,
			Status:    StatusFailed,
			Body:      "mock: send rejected",
			Timestamp: p.now(),
		}, fmt.Errorf("sms mock: send rejected for %s", payload.To)
	}

	id := "SM" + strings.ReplaceAll(uuid.NewString(), "-", "")
	p.mu.Lock()
	p.sent = append(p.sent, *payload)
	p.mu.Unlock()

	p.logger.Debug().Str("to", payload.To).Str("message_id", id).Msg("sms mock: message accepted")
	return &RawResponse{
		ID:        id,
		Code:      201,
		Status:    StatusQueued,
		Body:      "mock: message accepted",
		Timestamp: p.now(),
	}, nil
}

// FetchStatus walks the scripted status sequence for the supplied message.
func (p *MockProvider) FetchStatus(ctx context.Context, messageID string) (Status, error) {
	if strings.TrimSpace(messageID) == "" {
		return StatusUnknown, errors.New("sms mock: message id is required")
	}

	if err := p.sleep(ctx); err != nil {
		return StatusUnknown, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.fetches[messageID]
	p.fetches[messageID] = idx + 1
	if idx >= len(p.statusScript) {
		idx = len(p.statusScript) - 1
	}
	return p.statusScript[idx], nil
}

// VerifyCredentials succeeds unless the auth-failure scenario is configured.
func (p *MockProvider) VerifyCredentials(ctx context.Context) error {
	if err := p.sleep(ctx); err != nil {
		return err
	}
	if p.scenario == ScenarioAuthFailed {
		return fmt.Errorf("%w: mock credentials rejected", ErrAuthRejected)
	}
	return nil
}

// SentPayloads returns a copy of every payload accepted by Send.
func (p *MockProvider) SentPayloads() []Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Payload(nil), p.sent...)
}

// FetchCount reports how many FetchStatus calls were made for a message.
func (p *MockProvider) FetchCount(messageID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches[messageID]
}

func (p *MockProvider) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(p.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
