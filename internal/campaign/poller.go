package campaign

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/sms-campaign/internal/models"
	smsprovider "github.com/example/sms-campaign/internal/providers/sms"
)

// SleepFunc blocks for the supplied duration and reports whether the wait
// completed. A false return means the context was cancelled first. Injectable
// so tests can run the full attempt loop without wall-clock delay.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Wait is the default SleepFunc.
func Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Poller resolves delivery outcomes by polling the provider's status endpoint
// a bounded number of times per message.
type Poller struct {
	provider    smsprovider.Provider
	maxAttempts int
	delay       time.Duration
	sleep       SleepFunc
	logger      zerolog.Logger
}

// NewPoller constructs a status poller.
func NewPoller(provider smsprovider.Provider, maxAttempts int, delay time.Duration, logger zerolog.Logger, sleep SleepFunc) (*Poller, error) {
	if provider == nil {
		return nil, errors.New("campaign poller: provider dependency is required")
	}
	if maxAttempts < 1 {
		return nil, errors.New("campaign poller: max attempts must be >= 1")
	}
	if delay < 0 {
		return nil, errors.New("campaign poller: delay cannot be negative")
	}
	if sleep == nil {
		sleep = Wait
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Poller{
		provider:    provider,
		maxAttempts: maxAttempts,
		delay:       delay,
		sleep:       sleep,
		logger:      logger,
	}, nil
}

// Track polls the delivery status of one message until a terminal status is
// observed or the attempt budget is exhausted. Attempts for a single message
// are strictly sequential. A provider error abandons polling for that message
// and yields DeliveryUnknown.
func (p *Poller) Track(ctx context.Context, messageID string) models.DeliveryOutcome {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.provider.FetchStatus(ctx, messageID)
		if err != nil {
			p.logger.Warn().
				Str("message_id", messageID).
				Int("attempt", attempt).
				Err(err).
				Msg("status fetch failed, abandoning poll")
			return models.DeliveryUnknown
		}

		switch status {
		case smsprovider.StatusDelivered:
			return models.DeliveryDelivered
		case smsprovider.StatusFailed, smsprovider.StatusUndelivered:
			return models.DeliveryFailed
		}

		if attempt < p.maxAttempts && !p.sleep(ctx, p.delay) {
			p.logger.Warn().
				Str("message_id", messageID).
				Int("attempt", attempt).
				Msg("poll wait cancelled")
			return models.DeliveryUnknown
		}
	}

	return models.DeliveryUnknown
}
