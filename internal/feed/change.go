// Package feed fans unit status changes out to subscribers keyed by the
// unit's parent id and project id.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

// Change is one observed unit transition.
type Change struct {
	ID            string    `json:"id"`
	UnitID        string    `json:"unit_id"`
	ParentType    string    `json:"parent_type"`
	ParentID      string    `json:"parent_id"`
	ProjectID     string    `json:"project_id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	ArtifactRef   string    `json:"artifact_ref,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	FromCache     bool      `json:"from_cache,omitempty"`
	At            time.Time `json:"at"`
}

// FromUnit snapshots u as a change.
func FromUnit(u domain.GenerationUnit) Change {
	at := u.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Change{
		ID:            uuid.NewString(),
		UnitID:        u.ID,
		ParentType:    string(u.ParentType),
		ParentID:      u.ParentID,
		ProjectID:     u.ProjectID,
		Kind:          string(u.Kind),
		Status:        string(u.Status),
		ArtifactRef:   u.ArtifactRef,
		FailureReason: u.FailureReason,
		At:            at,
	}
}

// Channels lists the subscription keys the change is delivered on.
func (c Change) Channels() []string {
	var out []string
	if c.ParentID != "" {
		out = append(out, c.ParentID)
	}
	if c.ProjectID != "" && c.ProjectID != c.ParentID {
		out = append(out, c.ProjectID)
	}
	return out
}

// Publisher delivers changes. Delivery is at least once per change with no
// ordering across entities.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// changeEvent adapts a Change to eventsource.Event.
type changeEvent struct {
	c    Change
	data string
}

func newChangeEvent(c Change) (changeEvent, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return changeEvent{}, err
	}
	return changeEvent{c: c, data: string(raw)}, nil
}

func (e changeEvent) Id() string    { return e.c.ID }
func (e changeEvent) Event() string { return "unit" }
func (e changeEvent) Data() string  { return e.data }

// Nop discards every change.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }
