package writer

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyboard/internal/domain"
)

const staticProviderName = "static"

// StaticWriter produces deterministic text without a model. It backs local
// runs with no provider key and the pipeline tests.
type StaticWriter struct {
	// ScenesPerStory and ShotsPerScene size the generated breakdown.
	ScenesPerStory int
	ShotsPerScene  int
}

func NewStaticWriter() *StaticWriter {
	return &StaticWriter{ScenesPerStory: 3, ShotsPerScene: 2}
}

func (s *StaticWriter) Name() string {
	return staticProviderName
}

func (s *StaticWriter) Storyline(ctx context.Context, p domain.Project) (*StorylineDraft, error) {
	c := cases.Title(language.Und)
	title := coalesce(p.Title, "Untitled")
	concept := coalesce(p.Concept, "a stranger arrives in a quiet town")
	genre := coalesce(p.Genre, "drama")
	return &StorylineDraft{
		Title:    c.String(title),
		Synopsis: fmt.Sprintf("A %s about %s.", genre, concept),
		Content: fmt.Sprintf("%s opens on %s. The tension builds until the protagonist must choose. In the end the %s resolves on a quiet image.",
			c.String(title), concept, genre),
	}, nil
}

func (s *StaticWriter) Breakdown(ctx context.Context, p domain.Project, st domain.Storyline) (*BreakdownDraft, error) {
	scenes := s.ScenesPerStory
	if scenes <= 0 {
		scenes = 3
	}
	shots := s.ShotsPerScene
	if shots <= 0 {
		shots = 2
	}
	moods := []string{"calm", "tense", "hopeful"}
	draft := &BreakdownDraft{}
	for i := 1; i <= scenes; i++ {
		sc := SceneDraft{
			Title:       fmt.Sprintf("Scene %d", i),
			Description: fmt.Sprintf("Part %d of %s.", i, coalesce(st.Title, p.Title)),
			Location:    "interior",
			Mood:        moods[(i-1)%len(moods)],
		}
		for j := 1; j <= shots; j++ {
			sc.ShotIdeas = append(sc.ShotIdeas, fmt.Sprintf("Shot %d of scene %d", j, i))
		}
		draft.Scenes = append(draft.Scenes, sc)
	}
	draft.Characters = []CharacterDraft{
		{Name: "the lead", Description: "The protagonist, in a worn coat."},
		{Name: "the stranger", Description: "A tall figure with a lantern."},
	}
	normalizeBreakdown(draft)
	return draft, nil
}

func (s *StaticWriter) ClassifyShot(ctx context.Context, in ShotInput) (string, error) {
	idea := strings.ToLower(in.Shot.Idea)
	switch {
	case in.Shot.Position == 1:
		return ShotEstablishing, nil
	case strings.Contains(idea, "face") || strings.Contains(idea, "eyes"):
		return ShotCloseUp, nil
	default:
		return NormalizeShotType(idea), nil
	}
}

func (s *StaticWriter) VisualPrompt(ctx context.Context, in ShotInput, shotType string) (*ShotPrompt, error) {
	style := coalesce(in.Project.VisualStyle, "cinematic")
	prompt := fmt.Sprintf("%s %s frame: %s. Setting: %s, %s mood.",
		style, strings.ReplaceAll(shotType, "_", " "), in.Shot.Idea, coalesce(in.Scene.Location, "unspecified"), coalesce(in.Scene.Mood, "neutral"))
	return &ShotPrompt{VisualPrompt: prompt, Dialogue: in.Shot.Idea}, nil
}

var _ Writer = (*StaticWriter)(nil)
