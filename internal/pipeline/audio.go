package pipeline

import (
	"context"
	"fmt"
	"strings"

	"storyboard/internal/cache"
	"storyboard/internal/domain"
	"storyboard/internal/providers/voice"
)

// AudioRequest selects the voice for a narration render. Empty fields fall
// back to the project voice and the synthesizer's default model.
type AudioRequest struct {
	ShotID  string
	UserID  string
	VoiceID string
	ModelID string
}

// GenerateShotAudio synthesizes the shot's narration. Identical text, voice
// and model are served from the cache without charging.
func (p *Pipeline) GenerateShotAudio(ctx context.Context, req AudioRequest) (*RenderResult, error) {
	shot, err := p.projects.GetShot(ctx, req.ShotID)
	if err != nil {
		return nil, err
	}
	proj, err := p.project(ctx, shot.ProjectID, req.UserID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(shot.NarrationText())
	if text == "" {
		return nil, fmt.Errorf("%w: shot %s has no narration", domain.ErrValidation, shot.ID)
	}
	voiceID := coalesce(req.VoiceID, proj.DefaultVoiceID, p.defaultVoiceID)
	if voiceID == "" {
		return nil, fmt.Errorf("%w: no voice configured", domain.ErrValidation)
	}
	modelID := coalesce(req.ModelID, p.voice.DefaultModel())
	unit, err := p.units.FindUnit(ctx, shot.ID, domain.UnitKindShotAudio)
	if err != nil {
		return nil, err
	}

	ext := "wav"
	if p.voice.ContentType() == voice.ContentTypeMPEG {
		ext = "mp3"
	}
	return p.runPaid(ctx, render{
		unit:        unit,
		userID:      proj.UserID,
		fingerprint: cache.AudioFingerprint(text, voiceID, modelID),
		ext:         ext,
		metadata:    map[string]any{"shot_id": shot.ID, "voice_id": voiceID},
		produce: func(ctx context.Context) ([]byte, string, error) {
			data, err := p.voice.Synthesize(ctx, voice.Request{Text: text, VoiceID: voiceID, ModelID: modelID})
			if err != nil {
				return nil, "", err
			}
			return data, p.voice.ContentType(), nil
		},
	})
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
