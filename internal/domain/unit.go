package domain

import (
	"fmt"
	"time"
)

// UnitKind identifies which stage produces a generation unit's artifact.
type UnitKind string

const (
	UnitKindStoryline        UnitKind = "storyline"
	UnitKindSceneBreakdown   UnitKind = "scene_breakdown"
	UnitKindCharacterImage   UnitKind = "character_image"
	UnitKindShotVisualPrompt UnitKind = "shot_visual_prompt"
	UnitKindShotImage        UnitKind = "shot_image"
	UnitKindShotAudio        UnitKind = "shot_audio"
)

// UnitStatus enumerates the lifecycle states of a generation unit.
type UnitStatus string

const (
	UnitStatusPending     UnitStatus = "pending"
	UnitStatusPromptReady UnitStatus = "prompt_ready"
	UnitStatusGenerating  UnitStatus = "generating"
	UnitStatusCompleted   UnitStatus = "completed"
	UnitStatusFailed      UnitStatus = "failed"
)

// ParentType names the entity that owns a unit.
type ParentType string

const (
	ParentProject   ParentType = "project"
	ParentCharacter ParentType = "character"
	ParentShot      ParentType = "shot"
)

// FailureReasonTimeout is recorded by the reconciliation sweep.
const FailureReasonTimeout = "timeout"

// GenerationUnit is one independently generated artifact and its status.
type GenerationUnit struct {
	ID                 string
	ParentType         ParentType
	ParentID           string
	ProjectID          string
	SceneID            string
	Kind               UnitKind
	Status             UnitStatus
	ArtifactRef        string
	FailureReason      string
	ContentFingerprint string
	Attempts           int
	DeadlineAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Valid reports whether k is a known kind.
func (k UnitKind) Valid() bool {
	switch k {
	case UnitKindStoryline, UnitKindSceneBreakdown, UnitKindCharacterImage,
		UnitKindShotVisualPrompt, UnitKindShotImage, UnitKindShotAudio:
		return true
	}
	return false
}

// TwoStep reports whether units of this kind must pass through prompt_ready.
func (k UnitKind) TwoStep() bool {
	return k == UnitKindShotImage
}

// Paid reports whether the stage consumes provider spend worth charging for.
func (k UnitKind) Paid() bool {
	switch k {
	case UnitKindCharacterImage, UnitKindShotImage, UnitKindShotAudio:
		return true
	}
	return false
}

// ResourceType is the ledger resource label used when charging for a kind.
func (k UnitKind) ResourceType() string {
	switch k {
	case UnitKindCharacterImage, UnitKindShotImage:
		return "image"
	case UnitKindShotAudio:
		return "audio"
	default:
		return "text"
	}
}

// Terminal reports whether s is completed or failed.
func (s UnitStatus) Terminal() bool {
	return s == UnitStatusCompleted || s == UnitStatusFailed
}

// CanTransition reports whether a unit of the given kind may move from one
// status to another.
func CanTransition(kind UnitKind, from, to UnitStatus) bool {
	switch from {
	case UnitStatusPending:
		if to == UnitStatusPromptReady {
			return kind.TwoStep()
		}
		if to == UnitStatusGenerating {
			return !kind.TwoStep()
		}
	case UnitStatusPromptReady:
		return to == UnitStatusGenerating
	case UnitStatusGenerating:
		return to == UnitStatusCompleted || to == UnitStatusFailed
	case UnitStatusFailed, UnitStatusCompleted:
		return to == UnitStatusGenerating
	}
	return false
}

// SourcesFor lists every status from which a unit of kind may enter to.
func SourcesFor(kind UnitKind, to UnitStatus) []UnitStatus {
	all := []UnitStatus{UnitStatusPending, UnitStatusPromptReady, UnitStatusGenerating, UnitStatusCompleted, UnitStatusFailed}
	var out []UnitStatus
	for _, from := range all {
		if CanTransition(kind, from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Transition describes a compare-and-set status change.
type Transition struct {
	UnitID      string
	From        []UnitStatus
	To          UnitStatus
	ArtifactRef string
	Failure     string
	Fingerprint string
	Deadline    *time.Time
}

// Validate checks the field invariants tied to the target status.
func (t Transition) Validate() error {
	if t.UnitID == "" {
		return fmt.Errorf("%w: unit id is required", ErrValidation)
	}
	if len(t.From) == 0 {
		return fmt.Errorf("%w: transition to %s has no source status", ErrIllegalTransition, t.To)
	}
	switch t.To {
	case UnitStatusCompleted:
		if t.ArtifactRef == "" {
			return fmt.Errorf("%w: completed requires an artifact reference", ErrValidation)
		}
	case UnitStatusFailed:
		if t.Failure == "" {
			return fmt.Errorf("%w: failed requires a reason", ErrValidation)
		}
	}
	return nil
}

// Apply mutates u to reflect a successful transition.
func (t Transition) Apply(u *GenerationUnit, now time.Time) {
	u.Status = t.To
	u.UpdatedAt = now
	switch t.To {
	case UnitStatusGenerating:
		u.ArtifactRef = ""
		u.FailureReason = ""
		u.Attempts++
		u.DeadlineAt = t.Deadline
		if t.Fingerprint != "" {
			u.ContentFingerprint = t.Fingerprint
		}
	case UnitStatusCompleted:
		u.ArtifactRef = t.ArtifactRef
		u.FailureReason = ""
		u.DeadlineAt = nil
	case UnitStatusFailed:
		u.ArtifactRef = ""
		u.FailureReason = t.Failure
		u.DeadlineAt = nil
	case UnitStatusPromptReady, UnitStatusPending:
		u.ArtifactRef = ""
		u.FailureReason = ""
		u.DeadlineAt = nil
	}
}
