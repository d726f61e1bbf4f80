package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storyboard/internal/domain"
	"storyboard/internal/writer"
)

// ShotPromptResult is the outcome of the visual prompt stage.
type ShotPromptResult struct {
	ShotID       string `json:"shot_id"`
	ShotType     string `json:"shot_type"`
	VisualPrompt string `json:"visual_prompt"`
	Dialogue     string `json:"dialogue,omitempty"`
}

// createSceneShots turns a scene's shot ideas into shots with pending units.
// It returns zero when the scene already has shots.
func (p *Pipeline) createSceneShots(ctx context.Context, scene domain.Scene) (int, error) {
	var (
		shots []domain.Shot
		units []domain.GenerationUnit
	)
	for i, idea := range scene.ShotIdeas {
		idea = strings.TrimSpace(idea)
		if idea == "" {
			continue
		}
		sh := domain.Shot{
			ID:        uuid.NewString(),
			ProjectID: scene.ProjectID,
			SceneID:   scene.ID,
			Position:  i + 1,
			Idea:      idea,
		}
		shots = append(shots, sh)
		for _, kind := range []domain.UnitKind{domain.UnitKindShotVisualPrompt, domain.UnitKindShotImage, domain.UnitKindShotAudio} {
			units = append(units, domain.GenerationUnit{
				ParentType: domain.ParentShot,
				ParentID:   sh.ID,
				ProjectID:  scene.ProjectID,
				SceneID:    scene.ID,
				Kind:       kind,
			})
		}
	}
	if len(shots) == 0 {
		return 0, nil
	}
	created, err := p.projects.CreateShots(ctx, scene.ID, shots, units)
	if err != nil {
		return 0, persistence(err)
	}
	if !created {
		return 0, nil
	}
	return len(shots), nil
}

// GenerateVisualPrompt classifies the shot, writes its image prompt and marks
// the image unit ready to render.
func (p *Pipeline) GenerateVisualPrompt(ctx context.Context, shotID, userID string) (*ShotPromptResult, error) {
	shot, err := p.projects.GetShot(ctx, shotID)
	if err != nil {
		return nil, err
	}
	proj, err := p.project(ctx, shot.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	return p.writeShotPrompt(ctx, proj, shot)
}

func (p *Pipeline) writeShotPrompt(ctx context.Context, proj *domain.Project, shot *domain.Shot) (*ShotPromptResult, error) {
	unit, err := p.units.FindUnit(ctx, shot.ID, domain.UnitKindShotVisualPrompt)
	if err != nil {
		return nil, err
	}
	in, err := p.shotInput(ctx, proj, shot)
	if err != nil {
		return nil, err
	}
	if unit, err = p.claim(ctx, unit, "", false); err != nil {
		return nil, err
	}

	if err := p.pace(ctx); err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, err
	}
	shotType, err := p.writer.ClassifyShot(ctx, in)
	if err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, upstream(err)
	}
	shotType = writer.NormalizeShotType(shotType)

	if err := p.pace(ctx); err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, err
	}
	prompt, err := p.writer.VisualPrompt(ctx, in, shotType)
	if err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, upstream(err)
	}
	if strings.TrimSpace(prompt.VisualPrompt) == "" {
		err := fmt.Errorf("%w: empty visual prompt", domain.ErrUpstreamProvider)
		p.fail(ctx, unit.ID, err)
		return nil, err
	}
	if err := p.projects.UpdateShotPrompt(ctx, shot.ID, shotType, prompt.VisualPrompt, prompt.Dialogue); err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, persistence(err)
	}
	if _, err := p.complete(ctx, unit.ID, "shot/"+shot.ID+"/visual_prompt", false); err != nil {
		return nil, err
	}

	image, err := p.units.FindUnit(ctx, shot.ID, domain.UnitKindShotImage)
	if err != nil {
		return nil, err
	}
	if err := p.markPromptReady(ctx, image); err != nil {
		return nil, err
	}
	return &ShotPromptResult{
		ShotID:       shot.ID,
		ShotType:     shotType,
		VisualPrompt: prompt.VisualPrompt,
		Dialogue:     prompt.Dialogue,
	}, nil
}

func (p *Pipeline) shotInput(ctx context.Context, proj *domain.Project, shot *domain.Shot) (writer.ShotInput, error) {
	scene, err := p.projects.GetScene(ctx, shot.SceneID)
	if err != nil {
		return writer.ShotInput{}, err
	}
	cast, err := p.projects.ListCharacters(ctx, proj.ID)
	if err != nil {
		return writer.ShotInput{}, err
	}
	return writer.ShotInput{Project: *proj, Scene: *scene, Shot: *shot, Characters: cast}, nil
}
