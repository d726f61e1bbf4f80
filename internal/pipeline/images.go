package pipeline

import (
	"context"
	"fmt"
	"strings"

	"storyboard/internal/cache"
	"storyboard/internal/domain"
	"storyboard/internal/providers/genai"
)

const imageExt = "png"

// GenerateShotImage renders the frame for a shot whose visual prompt is ready.
func (p *Pipeline) GenerateShotImage(ctx context.Context, shotID, userID string) (*RenderResult, error) {
	shot, err := p.projects.GetShot(ctx, shotID)
	if err != nil {
		return nil, err
	}
	proj, err := p.project(ctx, shot.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(shot.VisualPrompt) == "" {
		return nil, fmt.Errorf("%w: shot %s has no visual prompt", domain.ErrValidation, shot.ID)
	}
	unit, err := p.units.FindUnit(ctx, shot.ID, domain.UnitKindShotImage)
	if err != nil {
		return nil, err
	}
	return p.renderImage(ctx, proj, unit, shot.VisualPrompt, map[string]any{"shot_id": shot.ID})
}

// GenerateCharacterImage renders a character's reference portrait.
func (p *Pipeline) GenerateCharacterImage(ctx context.Context, characterID, userID string) (*RenderResult, error) {
	ch, err := p.projects.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	proj, err := p.project(ctx, ch.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	unit, err := p.units.FindUnit(ctx, ch.ID, domain.UnitKindCharacterImage)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Character reference portrait of %s. %s", ch.Name, ch.Description)
	return p.renderImage(ctx, proj, unit, strings.TrimSpace(prompt), map[string]any{"character_id": ch.ID})
}

func (p *Pipeline) renderImage(ctx context.Context, proj *domain.Project, unit *domain.GenerationUnit, prompt string, meta map[string]any) (*RenderResult, error) {
	req := genai.ImageRequest{Prompt: prompt, AspectRatio: proj.AspectRatio, Style: proj.VisualStyle}
	return p.runPaid(ctx, render{
		unit:        unit,
		userID:      proj.UserID,
		fingerprint: cache.ImageFingerprint(prompt, p.images.ImageModel(), proj.AspectRatio, proj.VisualStyle),
		ext:         imageExt,
		metadata:    meta,
		produce: func(ctx context.Context) ([]byte, string, error) {
			asset, err := p.images.GenerateImage(ctx, req)
			if err != nil {
				return nil, "", err
			}
			return asset.Data, asset.Format, nil
		},
	})
}
