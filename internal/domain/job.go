package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job priorities. Higher runs first.
const (
	JobPriorityLow    = 0
	JobPriorityNormal = 5
	JobPriorityHigh   = 9
)

// Job is a durable unit of background work leased to one worker at a time.
type Job struct {
	ID           string
	TaskType     string
	Payload      json.RawMessage
	Status       JobStatus
	Attempts     int
	MaxAttempts  int
	LastError    string
	LockedBy     string
	LockedUntil  *time.Time
	LeaseToken   string
	DedupeKey    string
	Priority     int
	ScheduledFor time.Time
	Result       json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open reports whether the job is waiting or running.
func (j Job) Open() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// Claimable reports whether the job may be leased at now.
func (j Job) Claimable(now time.Time) bool {
	switch j.Status {
	case JobStatusPending:
		return !j.ScheduledFor.After(now)
	case JobStatusProcessing:
		return j.LockedUntil != nil && j.LockedUntil.Before(now)
	}
	return false
}
