package writer

import (
	"context"
	"fmt"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

// TextModel is a chat model that answers with JSON.
type TextModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type classifyPayload struct {
	ShotType string `json:"shot_type"`
}

// LLMWriter drives every text stage through one TextModel.
type LLMWriter struct {
	model  TextModel
	name   string
	logger infra.Logger
}

func NewLLMWriter(model TextModel, name string, logger infra.Logger) *LLMWriter {
	return &LLMWriter{model: model, name: name, logger: logger.With().Str("component", "writer").Str("provider", name).Logger()}
}

func (w *LLMWriter) Name() string {
	return w.name
}

func (w *LLMWriter) Storyline(ctx context.Context, p domain.Project) (*StorylineDraft, error) {
	draft, err := complete[StorylineDraft](ctx, w, "storyline", buildStorylinePrompt(p.Title, p.Concept, p.Genre, p.VisualStyle))
	if err != nil {
		return nil, err
	}
	draft.Title = coalesce(draft.Title, p.Title)
	draft.Content = coalesce(draft.Content, draft.Synopsis)
	if draft.Content == "" {
		return nil, fmt.Errorf("%w: storyline response had no content", domain.ErrUpstreamProvider)
	}
	return &draft, nil
}

func (w *LLMWriter) Breakdown(ctx context.Context, p domain.Project, st domain.Storyline) (*BreakdownDraft, error) {
	draft, err := complete[BreakdownDraft](ctx, w, "breakdown", buildBreakdownPrompt(p.Title, p.Genre, st.Content))
	if err != nil {
		return nil, err
	}
	normalizeBreakdown(&draft)
	if len(draft.Scenes) == 0 {
		return nil, fmt.Errorf("%w: breakdown response had no scenes", domain.ErrUpstreamProvider)
	}
	return &draft, nil
}

func (w *LLMWriter) ClassifyShot(ctx context.Context, in ShotInput) (string, error) {
	out, err := complete[classifyPayload](ctx, w, "classify", buildClassifyPrompt(in))
	if err != nil {
		return "", err
	}
	return NormalizeShotType(out.ShotType), nil
}

func (w *LLMWriter) VisualPrompt(ctx context.Context, in ShotInput, shotType string) (*ShotPrompt, error) {
	out, err := complete[ShotPrompt](ctx, w, "visual_prompt", buildVisualPromptPrompt(in, shotType))
	if err != nil {
		return nil, err
	}
	out.VisualPrompt = coalesce(out.VisualPrompt)
	if out.VisualPrompt == "" {
		return nil, fmt.Errorf("%w: visual prompt response was empty", domain.ErrUpstreamProvider)
	}
	out.Dialogue = coalesce(out.Dialogue)
	return &out, nil
}

func complete[T any](ctx context.Context, w *LLMWriter, stage, prompt string) (T, error) {
	var zero T
	raw, err := w.model.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		w.logger.Warn().Err(err).Str("stage", stage).Msg("writer: model call failed")
		return zero, err
	}
	out, err := parseModelPayload[T](raw)
	if err != nil {
		w.logger.Warn().Err(err).Str("stage", stage).Msg("writer: unparseable model output")
		return zero, fmt.Errorf("%w: parse %s response: %w", domain.ErrUpstreamProvider, stage, err)
	}
	return out, nil
}

var _ Writer = (*LLMWriter)(nil)
