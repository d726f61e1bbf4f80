package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Enqueue inserts a pending job, or loads the open job holding its dedupe key.
func (r *JobRepositoryPG) Enqueue(ctx context.Context, job *domain.Job) error {
	if job == nil || job.TaskType == "" {
		return fmt.Errorf("%w: job task type is required", domain.ErrValidation)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = time.Now().UTC()
	}
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	err := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID, job.TaskType, []byte(payload), job.MaxAttempts, job.Priority, job.ScheduledFor, job.DedupeKey,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err == nil {
		job.Status = domain.JobStatusPending
		return nil
	}
	if !infra.IsNoRows(err) || job.DedupeKey == "" {
		return wrap("enqueue job", err)
	}
	open, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectOpenJobByKey, job.DedupeKey))
	if err != nil {
		// The open job finished between the insert and the lookup.
		if infra.IsNoRows(err) {
			return fmt.Errorf("%w: job %s is settling, enqueue again", domain.ErrPersistence, job.DedupeKey)
		}
		return wrap("load open job", err)
	}
	*job = *open
	return nil
}

// ClaimNext leases one due job in a single statement.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context, workerID string, lease time.Duration) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimJob, workerID, lease.Seconds()))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNoJobAvailable
		}
		return nil, wrap("claim job", err)
	}
	return job, nil
}

func (r *JobRepositoryPG) Complete(ctx context.Context, jobID, leaseToken string, result []byte) error {
	if len(result) == 0 {
		result = []byte("{}")
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob, jobID, leaseToken, result)
	if err != nil {
		return wrap("complete job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrLeaseExpired)
	}
	return nil
}

func (r *JobRepositoryPG) Fail(ctx context.Context, jobID, leaseToken, lastError string, retryAt *time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailJob, jobID, leaseToken, lastError, retryAt)
	if err != nil {
		return wrap("fail job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrLeaseExpired)
	}
	return nil
}

// ExtendLease renews the lease held by leaseToken.
func (r *JobRepositoryPG) ExtendLease(ctx context.Context, jobID, leaseToken string, lease time.Duration) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QExtendJobLease, jobID, leaseToken, lease.Seconds())
	if err != nil {
		return wrap("extend job lease", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrLeaseExpired)
	}
	return nil
}

// GetJob fetches a job by its identifier.
func (r *JobRepositoryPG) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJob, id))
	if err != nil {
		return nil, wrap("get job", err)
	}
	return job, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j       domain.Job
		status  string
		payload []byte
		result  []byte
	)
	if err := row.Scan(
		&j.ID,
		&j.TaskType,
		&payload,
		&status,
		&j.Attempts,
		&j.MaxAttempts,
		&j.LastError,
		&j.LockedBy,
		&j.LockedUntil,
		&j.LeaseToken,
		&j.DedupeKey,
		&j.Priority,
		&j.ScheduledFor,
		&result,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	// Copy so callers never alias the driver's buffers.
	j.Payload = append(json.RawMessage(nil), payload...)
	if len(result) > 0 {
		j.Result = append(json.RawMessage(nil), result...)
	}
	return &j, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
