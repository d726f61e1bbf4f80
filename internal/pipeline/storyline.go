package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

// CreateProject stores a new project for userID.
func (p *Pipeline) CreateProject(ctx context.Context, proj *domain.Project) error {
	if proj == nil || strings.TrimSpace(proj.UserID) == "" {
		return fmt.Errorf("%w: project owner is required", domain.ErrValidation)
	}
	proj.Title = strings.TrimSpace(proj.Title)
	proj.Concept = strings.TrimSpace(proj.Concept)
	if proj.Title == "" || proj.Concept == "" {
		return fmt.Errorf("%w: title and concept are required", domain.ErrValidation)
	}
	if proj.AspectRatio == "" {
		proj.AspectRatio = "16:9"
	}
	if proj.ID == "" {
		proj.ID = uuid.NewString()
	}
	return p.projects.CreateProject(ctx, proj)
}

// generateStoryline writes one storyline and makes it the selected one.
func (p *Pipeline) generateStoryline(ctx context.Context, proj *domain.Project) (*domain.Storyline, error) {
	unit, err := p.ensureProjectUnit(ctx, proj.ID, domain.UnitKindStoryline)
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
	draft, err := p.writer.Storyline(ctx, *proj)
	if err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, upstream(err)
	}
	st := &domain.Storyline{
		ID:        uuid.NewString(),
		ProjectID: proj.ID,
		Title:     draft.Title,
		Synopsis:  draft.Synopsis,
		Content:   draft.Content,
	}
	if err := p.projects.CreateStoryline(ctx, st); err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, persistence(err)
	}
	if err := p.projects.SetSelectedStoryline(ctx, proj.ID, st.ID); err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, persistence(err)
	}
	st.IsSelected = true
	if _, err := p.complete(ctx, unit.ID, "storyline/"+st.ID, false); err != nil {
		return nil, err
	}
	p.logger.Info().Str("project_id", proj.ID).Str("storyline_id", st.ID).Msg("storyline generated")
	return st, nil
}

// SelectStoryline makes storylineID the project's only selected storyline.
func (p *Pipeline) SelectStoryline(ctx context.Context, projectID, storylineID, userID string) error {
	if _, err := p.project(ctx, projectID, userID); err != nil {
		return err
	}
	if storylineID == "" {
		return fmt.Errorf("%w: storyline id is required", domain.ErrValidation)
	}
	return p.projects.SetSelectedStoryline(ctx, projectID, storylineID)
}
