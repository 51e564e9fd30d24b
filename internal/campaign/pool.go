package campaign

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/sms-campaign/internal/models"
	smsprovider "github.com/example/sms-campaign/internal/providers/sms"
)

// ProgressFunc receives (completedCount, totalCount) once per completed
// dispatch job, regardless of success or failure.
type ProgressFunc func(completed, total int)

// SendResult pairs a job with its send outcome. MessageID is set only when
// the provider accepted the message; Reason only when the send failed.
type SendResult struct {
	Job       Job
	Outcome   models.SendOutcome
	MessageID string
	Reason    string
}

// Pool executes send operations with a fixed concurrency budget. Each job's
// failure is isolated: a provider error becomes a SendFailed outcome and
// never aborts sibling jobs.
type Pool struct {
	provider    smsprovider.Provider
	concurrency int64
	logger      zerolog.Logger
	progress    ProgressFunc
}

// NewPool constructs a dispatch pool.
func NewPool(provider smsprovider.Provider, concurrency int, logger zerolog.Logger, progress ProgressFunc) (*Pool, error) {
	if provider == nil {
		return nil, errors.New("campaign pool: provider dependency is required")
	}
	if concurrency < 1 {
		return nil, errors.New("campaign pool: concurrency must be >= 1")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Pool{
		provider:    provider,
		concurrency: int64(concurrency),
		logger:      logger,
		progress:    progress,
	}, nil
}

// Dispatch submits every job with at most the configured number of in-flight
// sends and streams results in completion order. The returned channel is
// closed once every job has been observed exactly once.
func (p *Pool) Dispatch(ctx context.Context, jobs []Job) <-chan SendResult {
	results := make(chan SendResult, len(jobs))
	total := len(jobs)

	go func() {
		defer close(results)

		sem := semaphore.NewWeighted(p.concurrency)
		var wg sync.WaitGroup
		var completed atomic.Int64

		for _, job := range jobs {
			job := job
			if err := sem.Acquire(ctx, 1); err != nil {
				// Cancelled mid-phase. Still emit one outcome per job.
				results <- SendResult{
					Job:     job,
					Outcome: models.SendOutcomeFailed,
					Reason:  err.Error(),
				}
				p.reportProgress(int(completed.Add(1)), total)
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				results <- p.send(ctx, job)
				p.reportProgress(int(completed.Add(1)), total)
			}()
		}

		wg.Wait()
	}()

	return results
}

func (p *Pool) send(ctx context.Context, job Job) SendResult {
	resp, err := p.provider.Send(ctx, &smsprovider.Payload{
		To:   job.Recipient.Phone,
		Body: job.Body,
	})
	if err != nil {
		p.logger.Warn().
			Str("name", job.Recipient.Name).
			Str("phone", job.Recipient.Phone).
			Err(err).
			Msg("send failed")
		return SendResult{Job: job, Outcome: models.SendOutcomeFailed, Reason: err.Error()}
	}

	p.logger.Info().
		Str("name", job.Recipient.Name).
		Str("phone", job.Recipient.Phone).
		Str("message_id", resp.ID).
		Msg("message sent")
	return SendResult{Job: job, Outcome: models.SendOutcomeSent, MessageID: resp.ID}
}

func (p *Pool) reportProgress(completed, total int) {
	if p.progress != nil {
		p.progress(completed, total)
	}
}
