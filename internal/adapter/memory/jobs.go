package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

func (s *Store) Enqueue(ctx context.Context, job *domain.Job) error {
	if job == nil || job.TaskType == "" {
		return fmt.Errorf("%w: job task type is required", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.DedupeKey != "" {
		for _, open := range s.jobs {
			if open.DedupeKey == job.DedupeKey && open.Open() {
				*job = open
				job.Payload = append(json.RawMessage(nil), open.Payload...)
				return nil
			}
		}
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	now := s.now()
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}
	if len(job.Payload) == 0 {
		job.Payload = json.RawMessage("{}")
	}
	job.Status = domain.JobStatusPending
	job.Attempts = 0
	job.CreatedAt, job.UpdatedAt = now, now
	s.seq++
	s.jobSeq[job.ID] = s.seq
	stored := *job
	stored.Payload = append(json.RawMessage(nil), job.Payload...)
	s.jobs[job.ID] = stored
	return nil
}

// ClaimNext leases the highest priority due job. Ties go to the earliest
// scheduled, then the earliest enqueued.
func (s *Store) ClaimNext(ctx context.Context, workerID string, lease time.Duration) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var (
		best  domain.Job
		found bool
	)
	for _, j := range s.jobs {
		if !j.Claimable(now) {
			continue
		}
		if !found || s.claimsBefore(j, best) {
			best, found = j, true
		}
	}
	if !found {
		return nil, domain.ErrNoJobAvailable
	}
	until := now.Add(lease)
	best.Status = domain.JobStatusProcessing
	best.LockedBy = workerID
	best.LockedUntil = &until
	best.LeaseToken = uuid.NewString()
	best.UpdatedAt = now
	s.jobs[best.ID] = best
	return &best, nil
}

func (s *Store) claimsBefore(a, b domain.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.ScheduledFor.Equal(b.ScheduledFor) {
		return a.ScheduledFor.Before(b.ScheduledFor)
	}
	return s.jobSeq[a.ID] < s.jobSeq[b.ID]
}

func (s *Store) Complete(ctx context.Context, jobID, leaseToken string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.ownedLocked(jobID, leaseToken)
	if err != nil {
		return err
	}
	if len(result) == 0 {
		result = []byte("{}")
	}
	j.Status = domain.JobStatusCompleted
	j.Result = append(json.RawMessage(nil), result...)
	j.Attempts++
	releaseLease(&j, s.now())
	s.jobs[jobID] = j
	return nil
}

func (s *Store) Fail(ctx context.Context, jobID, leaseToken, lastError string, retryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.ownedLocked(jobID, leaseToken)
	if err != nil {
		return err
	}
	j.Status = domain.JobStatusFailed
	if retryAt != nil {
		j.Status = domain.JobStatusPending
		j.ScheduledFor = *retryAt
	}
	j.LastError = lastError
	j.Attempts++
	releaseLease(&j, s.now())
	s.jobs[jobID] = j
	return nil
}

func (s *Store) ExtendLease(ctx context.Context, jobID, leaseToken string, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.ownedLocked(jobID, leaseToken)
	if err != nil {
		return err
	}
	now := s.now()
	until := now.Add(lease)
	j.LockedUntil = &until
	j.UpdatedAt = now
	s.jobs[jobID] = j
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return &j, nil
}

func (s *Store) ownedLocked(jobID, leaseToken string) (domain.Job, error) {
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobStatusProcessing || j.LeaseToken != leaseToken {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, domain.ErrLeaseExpired)
	}
	return j, nil
}

func releaseLease(j *domain.Job, now time.Time) {
	j.LockedBy = ""
	j.LockedUntil = nil
	j.LeaseToken = ""
	j.UpdatedAt = now
}
