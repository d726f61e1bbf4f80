package domain

import (
	"context"
	"time"
)

// ProjectRepository persists the project graph.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	CreateStoryline(ctx context.Context, storyline *Storyline) error
	ListStorylines(ctx context.Context, projectID string) ([]Storyline, error)
	SelectedStoryline(ctx context.Context, projectID string) (*Storyline, error)
	// SetSelectedStoryline clears the previous selection and sets the new
	// one in a single transaction.
	SetSelectedStoryline(ctx context.Context, projectID, storylineID string) error
	// ReplaceBreakdown removes prior scenes, characters, shots and their
	// units, then inserts the new breakdown.
	ReplaceBreakdown(ctx context.Context, breakdown Breakdown) error
	ListScenes(ctx context.Context, projectID string) ([]Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)
	ListCharacters(ctx context.Context, projectID string) ([]Character, error)
	GetCharacter(ctx context.Context, id string) (*Character, error)
	// CreateShots inserts shots and their units unless the scene already has
	// shots, in which case it reports false.
	CreateShots(ctx context.Context, sceneID string, shots []Shot, units []GenerationUnit) (bool, error)
	ListShots(ctx context.Context, projectID string) ([]Shot, error)
	ListSceneShots(ctx context.Context, sceneID string) ([]Shot, error)
	GetShot(ctx context.Context, id string) (*Shot, error)
	UpdateShotPrompt(ctx context.Context, shotID, shotType, visualPrompt, dialogue string) error
}

// UnitRepository persists generation units and performs compare-and-set
// status transitions.
type UnitRepository interface {
	GetUnit(ctx context.Context, id string) (*GenerationUnit, error)
	FindUnit(ctx context.Context, parentID string, kind UnitKind) (*GenerationUnit, error)
	EnsureUnit(ctx context.Context, unit *GenerationUnit) (*GenerationUnit, error)
	ListProjectUnits(ctx context.Context, projectID string) ([]GenerationUnit, error)
	// Transition returns ErrIllegalTransition when the unit is not in any of
	// the expected source statuses.
	Transition(ctx context.Context, t Transition) (*GenerationUnit, error)
	// ExpireGenerating fails every generating unit whose deadline is before now.
	ExpireGenerating(ctx context.Context, now time.Time, reason string) ([]GenerationUnit, error)
}

// CreditRepository is the durable side of the credit ledger.
type CreditRepository interface {
	TryDebit(ctx context.Context, req DebitRequest) (DebitResult, error)
	Grant(ctx context.Context, userID string, amount int, resourceType string, metadata map[string]any) (*CreditAccount, error)
	Refund(ctx context.Context, userID string, amount int, resourceType string, metadata map[string]any) (*CreditAccount, error)
	GetAccount(ctx context.Context, userID string) (*CreditAccount, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
	SumTransactions(ctx context.Context, userID string) (int, error)
}

// JobRepository is the durable side of the lease-based queue.
type JobRepository interface {
	// Enqueue stores job as pending. When job.DedupeKey names an open job,
	// nothing is inserted and *job is replaced by that job.
	Enqueue(ctx context.Context, job *Job) error
	// ClaimNext returns ErrNoJobAvailable when nothing is due.
	ClaimNext(ctx context.Context, workerID string, lease time.Duration) (*Job, error)
	// Complete and Fail return ErrLeaseExpired when leaseToken no longer
	// owns the job.
	Complete(ctx context.Context, jobID, leaseToken string, result []byte) error
	Fail(ctx context.Context, jobID, leaseToken, lastError string, retryAt *time.Time) error
	// ExtendLease pushes locked_until to now+lease while leaseToken owns the job.
	ExtendLease(ctx context.Context, jobID, leaseToken string, lease time.Duration) error
	GetJob(ctx context.Context, id string) (*Job, error)
}
