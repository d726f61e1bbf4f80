// Package queue runs durable background jobs with lease-based ownership.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

// Queue enqueues jobs on a job repository.
type Queue struct {
	jobs        domain.JobRepository
	maxAttempts int
	now         func() time.Time
}

func New(jobs domain.JobRepository, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Queue{jobs: jobs, maxAttempts: maxAttempts, now: time.Now}
}

// Enqueue stores a pending job whose payload is the JSON encoding of payload.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any, priority int) (*domain.Job, error) {
	job, _, err := q.EnqueueUnique(ctx, taskType, "", payload, priority)
	return job, err
}

// EnqueueUnique is Enqueue with a dedupe key. While a job holding key is
// pending or processing it is returned instead and created is false.
func (q *Queue) EnqueueUnique(ctx context.Context, taskType, key string, payload any, priority int) (job *domain.Job, created bool, err error) {
	if taskType == "" {
		return nil, false, fmt.Errorf("%w: task type is required", domain.ErrValidation)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: encode %s payload: %w", domain.ErrValidation, taskType, err)
	}
	id := uuid.NewString()
	job = &domain.Job{
		ID:           id,
		TaskType:     taskType,
		DedupeKey:    key,
		Payload:      raw,
		Priority:     priority,
		MaxAttempts:  q.maxAttempts,
		ScheduledFor: q.now().UTC(),
	}
	if err := q.jobs.Enqueue(ctx, job); err != nil {
		return nil, false, err
	}
	return job, job.ID == id, nil
}

// Get returns the stored job.
func (q *Queue) Get(ctx context.Context, id string) (*domain.Job, error) {
	return q.jobs.GetJob(ctx, id)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent or is a failure
// that a retry cannot fix. A unit busy in another executor is retried.
func IsPermanent(err error) bool {
	var p permanentError
	if errors.As(err, &p) {
		return true
	}
	if errors.Is(err, domain.ErrUnitBusy) {
		return false
	}
	return errors.Is(err, domain.ErrAdmissionDenied) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrIllegalTransition)
}
