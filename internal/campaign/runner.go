package campaign

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

	"github.com/example/sms-campaign/internal/models"
	smsprovider "github.com/example/sms-campaign/internal/providers/sms"
)

// Phase identifies the state of a run's state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFiltering   Phase = "filtering"
	PhaseDispatching Phase = "dispatching"
	PhasePolling     Phase = "polling"
	PhaseCompleted   Phase = "completed"
)

// Config contains the runtime settings the runner relies on to orchestrate a
// campaign run.
type Config struct {
	WorkerConcurrency int
	PollMaxAttempts   int
	PollDelay         time.Duration
}

// StatusPublisher receives campaign lifecycle events. Implementations may
// forward them to a Kafka topic or any other sink.
type StatusPublisher interface {
	PublishEvent(ctx context.Context, event models.CampaignEvent) error
}

// Dependencies collects the runtime collaborators required by the runner.
// Status, Progress and Sleep are optional.
type Dependencies struct {
	Provider smsprovider.Provider
	Status   StatusPublisher
	Progress ProgressFunc
	Logger   zerolog.Logger
	Now      func() time.Time
	Sleep    SleepFunc
}

// Campaign describes one run: a fixed recipient list, a message template and
// a snapshot handle of the opt-out set.
type Campaign struct {
	Recipients []models.Recipient
	Template   string
	OptOuts    *models.OptOutSet
}

// Runner coordinates filter, render, dispatch and poll phases for a single
// campaign run and aggregates per-recipient outcomes into a RunReport. A
// runner is one-shot: Completed is terminal and a new run requires a new
// instance.
type Runner struct {
	cfg      Config
	provider smsprovider.Provider
	status   StatusPublisher
	logger   zerolog.Logger
	now      func() time.Time

	pool   *Pool
	poller *Poller

	mu    sync.Mutex
	phase Phase
}

// NewRunner constructs a campaign runner using the supplied configuration and
// collaborators.
func NewRunner(cfg Config, deps Dependencies) (*Runner, error) {
	if cfg.WorkerConcurrency < 1 {
		return nil, errors.New("campaign: worker concurrency must be >= 1")
	}
	if cfg.PollMaxAttempts < 1 {
		return nil, errors.New("campaign: poll max attempts must be >= 1")
	}
	if cfg.PollDelay < 0 {
		return nil, errors.New("campaign: poll delay cannot be negative")
	}
	if deps.Provider == nil {
		return nil, errors.New("campaign: provider dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "campaign_runner").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	pool, err := NewPool(deps.Provider, cfg.WorkerConcurrency, logger, deps.Progress)
	if err != nil {
		return nil, err
	}
	poller, err := NewPoller(deps.Provider, cfg.PollMaxAttempts, cfg.PollDelay, logger, deps.Sleep)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		provider: deps.Provider,
		status:   deps.Status,
		logger:   logger,
		now:      nowFunc,
		pool:     pool,
		poller:   poller,
		phase:    PhaseIdle,
	}, nil
}

// Phase returns the current state of the run's state machine.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Run executes the campaign: filter, render, dispatch, poll, aggregate. Every
// input recipient yields exactly one SendOutcome in the returned report, in
// input order. The context may cancel the run between phases; individual
// in-flight provider calls are allowed to complete.
func (r *Runner) Run(ctx context.Context, c Campaign) (*models.RunReport, error) {
	if err := r.preflight(ctx, c); err != nil {
		return nil, err
	}
	if err := r.transition(PhaseIdle, PhaseFiltering); err != nil {
		return nil, err
	}

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Results:   make([]models.RecipientResult, len(c.Recipients)),
	}

	log := r.logger.With().Str("run_id", report.RunID).Logger()
	log.Info().
		Int("recipients", len(c.Recipients)).
		Time("started_at", report.StartedAt).
		Msg("campaign run started")
	r.publish(ctx, log, models.CampaignEvent{
		RunID:     report.RunID,
		EventType: models.EventRunStarted,
		Total:     len(c.Recipients),
		Timestamp: report.StartedAt,
	})

	jobs, skips := Filter(c.Recipients, c.OptOuts)
	for _, s := range skips {
		report.Results[s.Index] = models.RecipientResult{Recipient: s.Recipient, Send: s.Outcome}
		r.recordSkip(ctx, log, report.RunID, s)
	}
	for i := range jobs {
		jobs[i].Body = Render(c.Template, jobs[i].Recipient)
	}

	if err := ctx.Err(); err != nil {
		return r.finish(ctx, log, report), err
	}

	r.setPhase(PhaseDispatching)
	type sentMessage struct {
		index     int
		recipient models.Recipient
		messageID string
	}
	var sent []sentMessage
	for res := range r.pool.Dispatch(ctx, jobs) {
		report.Results[res.Job.Index] = models.RecipientResult{
			Recipient: res.Job.Recipient,
			Send:      res.Outcome,
			MessageID: res.MessageID,
			Reason:    res.Reason,
		}
		switch res.Outcome {
		case models.SendOutcomeSent:
			sent = append(sent, sentMessage{index: res.Job.Index, recipient: res.Job.Recipient, messageID: res.MessageID})
			r.publish(ctx, log, models.CampaignEvent{
				RunID:     report.RunID,
				EventType: models.EventSent,
				Name:      res.Job.Recipient.Name,
				Phone:     res.Job.Recipient.Phone,
				MessageID: res.MessageID,
				Timestamp: r.now(),
			})
		case models.SendOutcomeFailed:
			r.publish(ctx, log, models.CampaignEvent{
				RunID:     report.RunID,
				EventType: models.EventSendFailed,
				Name:      res.Job.Recipient.Name,
				Phone:     res.Job.Recipient.Phone,
				Error:     res.Reason,
				Timestamp: r.now(),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn().Msg("run cancelled before polling phase")
		return r.finish(ctx, log, report), err
	}

	r.setPhase(PhasePolling)
	for _, m := range sent {
		outcome := r.poller.Track(ctx, m.messageID)
		report.Results[m.index].Delivery = outcome
		r.recordDelivery(ctx, log, report.RunID, m.recipient, m.messageID, outcome)
	}

	return r.finish(ctx, log, report), nil
}

func (r *Runner) preflight(ctx context.Context, c Campaign) error {
	if len(c.Recipients) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(c.Template) == "" {
		return ErrNoTemplate
	}
	if err := r.provider.VerifyCredentials(ctx); err != nil {
		r.logger.Error().Err(err).Msg("provider credential check failed")
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return nil
}

func (r *Runner) recordSkip(ctx context.Context, log zerolog.Logger, runID string, s Skip) {
	switch s.Outcome {
	case models.SendOutcomeSkippedInvalidPhone:
		log.Warn().
			Str("name", s.Recipient.Name).
			Str("phone", s.Recipient.Phone).
			Msg("invalid phone number skipped")
	case models.SendOutcomeSkippedOptedOut:
		log.Info().
			Str("name", s.Recipient.Name).
			Str("phone", s.Recipient.Phone).
			Msg("opted-out number skipped")
	}
	r.publish(ctx, log, models.CampaignEvent{
		RunID:     runID,
		EventType: models.EventSkipped,
		Name:      s.Recipient.Name,
		Phone:     s.Recipient.Phone,
		Outcome:   string(s.Outcome),
		Timestamp: r.now(),
	})
}

func (r *Runner) recordDelivery(ctx context.Context, log zerolog.Logger, runID string, recipient models.Recipient, messageID string, outcome models.DeliveryOutcome) {
	event := models.CampaignEvent{
		RunID:     runID,
		EventType: models.EventDeliveryUnknown,
		Name:      recipient.Name,
		Phone:     recipient.Phone,
		MessageID: messageID,
		Outcome:   string(outcome),
		Timestamp: r.now(),
	}

	switch outcome {
	case models.DeliveryDelivered:
		event.EventType = models.EventDelivered
		log.Info().
			Str("name", recipient.Name).
			Str("phone", recipient.Phone).
			Str("message_id", messageID).
			Msg("message delivered")
	case models.DeliveryFailed:
		event.EventType = models.EventDeliveryFailed
		log.Error().
			Str("name", recipient.Name).
			Str("phone", recipient.Phone).
			Str("message_id", messageID).
			Msg("message delivery failed")
	default:
		log.Warn().
			Str("name", recipient.Name).
			Str("phone", recipient.Phone).
			Str("message_id", messageID).
			Msg("message delivery status unknown")
	}

	r.publish(ctx, log, event)
}

func (r *Runner) finish(ctx context.Context, log zerolog.Logger, report *models.RunReport) *models.RunReport {
	report.FinishedAt = r.now()
	report.Tally()
	r.setPhase(PhaseCompleted)

	log.Info().
		Time("finished_at", report.FinishedAt).
		Dur("duration", report.Duration()).
		Int("sent", report.Counts.Sent).
		Int("send_failed", report.Counts.SendFailed).
		Int("skipped_invalid_phone", report.Counts.SkippedInvalidPhone).
		Int("skipped_opted_out", report.Counts.SkippedOptedOut).
		Int("delivered", report.Counts.Delivered).
		Int("delivery_failed", report.Counts.DeliveryFailed).
		Int("delivery_unknown", report.Counts.DeliveryUnknown).
		Msg("campaign run finished")

	r.publish(ctx, log, models.CampaignEvent{
		RunID:     report.RunID,
		EventType: models.EventRunCompleted,
		Total:     len(report.Results),
		Timestamp: report.FinishedAt,
	})
	return report
}

func (r *Runner) publish(ctx context.Context, log zerolog.Logger, event models.CampaignEvent) {
	if r.status == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	if err := r.status.PublishEvent(ctx, event); err != nil {
		log.Error().
			Str("event", event.EventType).
			Err(err).
			Msg("failed to publish campaign event")
	}
}

func (r *Runner) transition(from, to Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != from {
		return ErrRunConsumed
	}
	r.phase = to
	return nil
}

func (r *Runner) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}
