package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

// Handler processes one job payload and may return a JSON-encodable result.
type Handler func(ctx context.Context, job *domain.Job) (any, error)

// WorkerOptions tunes lease and retry behavior.
type WorkerOptions struct {
	ID           string
	Lease        time.Duration
	PollInterval time.Duration
	RetryBackoff time.Duration
}

// Worker claims and runs one job at a time.
type Worker struct {
	id       string
	jobs     domain.JobRepository
	handlers map[string]Handler
	lease    time.Duration
	poll     time.Duration
	backoff  time.Duration
	logger   infra.Logger
	now      func() time.Time
}

func NewWorker(jobs domain.JobRepository, opts WorkerOptions, logger infra.Logger) *Worker {
	if opts.ID == "" {
		opts.ID = "worker-" + uuid.NewString()[:8]
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 10 * time.Second
	}
	return &Worker{
		id:       opts.ID,
		jobs:     jobs,
		handlers: make(map[string]Handler),
		lease:    opts.Lease,
		poll:     opts.PollInterval,
		backoff:  opts.RetryBackoff,
		logger:   logger.With().Str("component", "worker").Str("worker_id", opts.ID).Logger(),
		now:      time.Now,
	}
}

// Handle registers h for taskType. It must be called before Run.
func (w *Worker) Handle(taskType string, h Handler) {
	w.handlers[taskType] = h
}

func (w *Worker) ID() string { return w.id }

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := w.ProcessOne(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("worker: process job failed")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.poll):
		}
	}
}

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx, w.id, w.lease)
	if err != nil {
		if errors.Is(err, domain.ErrNoJobAvailable) {
			return false, nil
		}
		return false, err
	}
	log := w.logger.With().Str("job_id", job.ID).Str("task_type", job.TaskType).Int("attempt", job.Attempts+1).Logger()
	log.Info().Msg("worker: picked job")

	hctx, cancel := context.WithCancelCause(ctx)
	stop := w.heartbeat(hctx, cancel, job, log)
	result, runErr := w.dispatch(hctx, job)
	stop()
	cancel(nil)
	if runErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			raw = nil
		}
		if err := w.jobs.Complete(ctx, job.ID, job.LeaseToken, raw); err != nil {
			if errors.Is(err, domain.ErrLeaseExpired) {
				log.Warn().Msg("worker: lease lost before completion")
				return true, nil
			}
			return true, err
		}
		log.Info().Msg("worker: job completed")
		return true, nil
	}

	retryAt := w.retryAt(job, runErr)
	if err := w.jobs.Fail(ctx, job.ID, job.LeaseToken, runErr.Error(), retryAt); err != nil {
		if errors.Is(err, domain.ErrLeaseExpired) {
			log.Warn().Err(runErr).Msg("worker: lease lost before failure was recorded")
			return true, nil
		}
		return true, err
	}
	if retryAt != nil {
		log.Warn().Err(runErr).Time("retry_at", *retryAt).Msg("worker: job failed, retry scheduled")
	} else {
		log.Error().Err(runErr).Msg("worker: job failed")
	}
	return true, nil
}

// heartbeat renews the job's lease until stop is called. Losing the lease
// cancels the handler's context with ErrLeaseExpired as the cause.
func (w *Worker) heartbeat(ctx context.Context, cancel context.CancelCauseFunc, job *domain.Job, log infra.Logger) (stop func()) {
	every := w.lease / 3
	if every <= 0 {
		every = w.lease
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := w.jobs.ExtendLease(ctx, job.ID, job.LeaseToken, w.lease)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLeaseExpired):
				log.Warn().Msg("worker: lease lost, cancelling handler")
				cancel(err)
				return
			default:
				log.Warn().Err(err).Msg("worker: lease renewal failed")
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (w *Worker) dispatch(ctx context.Context, job *domain.Job) (result any, err error) {
	h, ok := w.handlers[job.TaskType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported job type %q", job.TaskType))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// retryAt returns nil when the failure is terminal. Attempts on the claimed
// job do not yet include the current run.
func (w *Worker) retryAt(job *domain.Job, err error) *time.Time {
	if IsPermanent(err) {
		return nil
	}
	attempt := job.Attempts + 1
	if attempt >= job.MaxAttempts {
		return nil
	}
	delay := w.backoff << (attempt - 1)
	if ceiling := 30 * time.Minute; delay > ceiling || delay < 0 {
		delay = ceiling
	}
	at := w.now().UTC().Add(delay)
	return &at
}
