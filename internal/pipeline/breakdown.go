package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

// generateBreakdown splits the selected storyline into scenes and a cast,
// replacing any earlier breakdown of the project.
func (p *Pipeline) generateBreakdown(ctx context.Context, proj *domain.Project, st *domain.Storyline) (*domain.Breakdown, error) {
	unit, err := p.ensureProjectUnit(ctx, proj.ID, domain.UnitKindSceneBreakdown)
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
	draft, err := p.writer.Breakdown(ctx, *proj, *st)
	if err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, upstream(err)
	}
	if len(draft.Scenes) == 0 {
		err := fmt.Errorf("%w: breakdown has no scenes", domain.ErrUpstreamProvider)
		p.fail(ctx, unit.ID, err)
		return nil, err
	}

	b := domain.Breakdown{ProjectID: proj.ID, StorylineID: st.ID}
	for i, sd := range draft.Scenes {
		b.Scenes = append(b.Scenes, domain.Scene{
			ID:          uuid.NewString(),
			ProjectID:   proj.ID,
			StorylineID: st.ID,
			Position:    i + 1,
			Title:       sd.Title,
			Description: sd.Description,
			Location:    sd.Location,
			Mood:        sd.Mood,
			ShotIdeas:   sd.ShotIdeas,
		})
	}
	for _, cd := range draft.Characters {
		ch := domain.Character{
			ID:          uuid.NewString(),
			ProjectID:   proj.ID,
			Name:        cd.Name,
			Description: cd.Description,
		}
		b.Characters = append(b.Characters, ch)
		b.Units = append(b.Units, domain.GenerationUnit{
			ParentType: domain.ParentCharacter,
			ParentID:   ch.ID,
			ProjectID:  proj.ID,
			Kind:       domain.UnitKindCharacterImage,
		})
	}
	if err := p.projects.ReplaceBreakdown(ctx, b); err != nil {
		p.fail(ctx, unit.ID, err)
		return nil, persistence(err)
	}
	if _, err := p.complete(ctx, unit.ID, "breakdown/"+proj.ID, false); err != nil {
		return nil, err
	}

	for _, ch := range b.Characters {
		if u, err := p.units.FindUnit(ctx, ch.ID, domain.UnitKindCharacterImage); err == nil {
			p.publish(ctx, *u, false)
		}
		if _, _, err := p.queue.EnqueueUnique(ctx, TaskCharacterImage, jobKey(TaskCharacterImage, ch.ID), imageTask{CharacterID: ch.ID, UserID: proj.UserID}, domain.JobPriorityLow); err != nil {
			p.logger.Error().Err(err).Str("character_id", ch.ID).Msg("enqueue character portrait failed")
		}
	}
	p.logger.Info().
		Str("project_id", proj.ID).
		Int("scenes", len(b.Scenes)).
		Int("characters", len(b.Characters)).
		Msg("breakdown generated")
	return &b, nil
}
