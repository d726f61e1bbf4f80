package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"storyboard/internal/domain"
	"storyboard/internal/queue"
)

// Background task types.
const (
	TaskShotImage      = "shot_image"
	TaskCharacterImage = "character_image"
)

type imageTask struct {
	ShotID      string `json:"shot_id,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
	UserID      string `json:"user_id"`
}

// RegisterHandlers binds the pipeline's background tasks to w.
func (p *Pipeline) RegisterHandlers(w *queue.Worker) {
	w.Handle(TaskShotImage, func(ctx context.Context, job *domain.Job) (any, error) {
		task, err := decodeTask(job)
		if err != nil {
			return nil, err
		}
		if res, ok := p.renderedSince(ctx, task.ShotID, domain.UnitKindShotImage, job); ok {
			return res, nil
		}
		return p.GenerateShotImage(ctx, task.ShotID, task.UserID)
	})
	w.Handle(TaskCharacterImage, func(ctx context.Context, job *domain.Job) (any, error) {
		task, err := decodeTask(job)
		if err != nil {
			return nil, err
		}
		if res, ok := p.renderedSince(ctx, task.CharacterID, domain.UnitKindCharacterImage, job); ok {
			return res, nil
		}
		return p.GenerateCharacterImage(ctx, task.CharacterID, task.UserID)
	})
}

// jobKey names the open-job slot of a render target.
func jobKey(taskType, targetID string) string {
	return taskType + ":" + targetID
}

// renderedSince reports the unit's artifact when it completed after job was
// queued. A redelivered job then finishes without rendering again.
func (p *Pipeline) renderedSince(ctx context.Context, parentID string, kind domain.UnitKind, job *domain.Job) (*RenderResult, bool) {
	u, err := p.units.FindUnit(ctx, parentID, kind)
	if err != nil || u.Status != domain.UnitStatusCompleted || !u.UpdatedAt.After(job.CreatedAt) {
		return nil, false
	}
	p.logger.Info().Str("job_id", job.ID).Str("unit_id", u.ID).Msg("unit already rendered for job")
	return &RenderResult{UnitID: u.ID, URL: u.ArtifactRef}, true
}

func decodeTask(job *domain.Job) (imageTask, error) {
	var task imageTask
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return task, queue.Permanent(fmt.Errorf("decode %s payload: %w", job.TaskType, err))
	}
	if task.ShotID == "" && task.CharacterID == "" {
		return task, queue.Permanent(fmt.Errorf("%s payload names no target", job.TaskType))
	}
	return task, nil
}
