// Package writer produces the text stages of a storyboard: the storyline,
// its scene and character breakdown, and per-shot visual prompts.
package writer

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyboard/internal/domain"
)

const (
	maxScenes        = 12
	maxShotsPerScene = 8
	maxCharacters    = 8
)

// Shot types understood by the image stage.
const (
	ShotEstablishing    = "establishing"
	ShotWide            = "wide"
	ShotMedium          = "medium"
	ShotCloseUp         = "close_up"
	ShotExtremeCloseUp  = "extreme_close_up"
	ShotOverTheShoulder = "over_the_shoulder"
	ShotPOV             = "pov"
	ShotInsert          = "insert"
)

var shotTypeAliases = map[string]string{
	"establishing":      ShotEstablishing,
	"establishing shot": ShotEstablishing,
	"wide":              ShotWide,
	"wide shot":         ShotWide,
	"long shot":         ShotWide,
	"full shot":         ShotWide,
	"medium":            ShotMedium,
	"medium shot":       ShotMedium,
	"mid shot":          ShotMedium,
	"two shot":          ShotMedium,
	"close up":          ShotCloseUp,
	"close-up":          ShotCloseUp,
	"closeup":           ShotCloseUp,
	"extreme close up":  ShotExtremeCloseUp,
	"extreme close-up":  ShotExtremeCloseUp,
	"over the shoulder": ShotOverTheShoulder,
	"over-the-shoulder": ShotOverTheShoulder,
	"ots":               ShotOverTheShoulder,
	"pov":               ShotPOV,
	"point of view":     ShotPOV,
	"insert":            ShotInsert,
	"insert shot":       ShotInsert,
}

// containsOrder is checked when a label is not an exact alias. More specific
// phrases come first.
var containsOrder = []string{
	"extreme close-up", "extreme close up", "over-the-shoulder", "over the shoulder",
	"establishing", "point of view", "close-up", "close up", "closeup",
	"insert", "wide", "long shot", "full shot", "medium", "mid shot", "two shot",
}

// StorylineDraft is a generated storyline before it is persisted.
type StorylineDraft struct {
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
	Content  string `json:"content"`
}

type SceneDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Mood        string   `json:"mood"`
	ShotIdeas   []string `json:"shot_ideas"`
}

type CharacterDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BreakdownDraft splits a storyline into scenes and a cast.
type BreakdownDraft struct {
	Scenes     []SceneDraft     `json:"scenes"`
	Characters []CharacterDraft `json:"characters"`
}

// ShotInput is the context for per-shot writing.
type ShotInput struct {
	Project    domain.Project
	Scene      domain.Scene
	Shot       domain.Shot
	Characters []domain.Character
}

// ShotPrompt is the image prompt and narration for one shot.
type ShotPrompt struct {
	VisualPrompt string `json:"visual_prompt"`
	Dialogue     string `json:"dialogue"`
}

// Writer generates every text stage.
type Writer interface {
	Storyline(ctx context.Context, project domain.Project) (*StorylineDraft, error)
	Breakdown(ctx context.Context, project domain.Project, storyline domain.Storyline) (*BreakdownDraft, error)
	ClassifyShot(ctx context.Context, in ShotInput) (string, error)
	VisualPrompt(ctx context.Context, in ShotInput, shotType string) (*ShotPrompt, error)
	Name() string
}

// NormalizeShotType maps free-form labels onto the known shot types. Unknown
// labels become medium.
func NormalizeShotType(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, ".\"'")
	key = strings.ReplaceAll(key, "_", " ")
	if v, ok := shotTypeAliases[key]; ok {
		return v
	}
	for _, alias := range containsOrder {
		if strings.Contains(key, alias) {
			return shotTypeAliases[alias]
		}
	}
	return ShotMedium
}

// normalizeBreakdown trims, caps and de-duplicates a breakdown in place.
func normalizeBreakdown(b *BreakdownDraft) {
	title := cases.Title(language.Und)
	scenes := b.Scenes[:0]
	for _, sc := range b.Scenes {
		sc.Title = strings.TrimSpace(sc.Title)
		sc.Description = strings.TrimSpace(sc.Description)
		sc.Location = strings.TrimSpace(sc.Location)
		sc.Mood = strings.TrimSpace(sc.Mood)
		sc.ShotIdeas = cleanList(sc.ShotIdeas, maxShotsPerScene)
		if sc.Title == "" && sc.Description == "" {
			continue
		}
		if sc.Title == "" {
			sc.Title = firstWords(sc.Description, 6)
		}
		if len(sc.ShotIdeas) == 0 {
			sc.ShotIdeas = []string{coalesce(sc.Description, sc.Title)}
		}
		scenes = append(scenes, sc)
		if len(scenes) == maxScenes {
			break
		}
	}
	b.Scenes = scenes

	seen := map[string]struct{}{}
	chars := b.Characters[:0]
	for _, ch := range b.Characters {
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.ToLower(name) == name {
			name = title.String(name)
		}
		chars = append(chars, CharacterDraft{Name: name, Description: strings.TrimSpace(ch.Description)})
		if len(chars) == maxCharacters {
			break
		}
	}
	b.Characters = chars
}

func cleanList(items []string, limit int) []string {
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
