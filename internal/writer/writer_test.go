package writer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

type scriptedModel struct {
	replies map[string]string
	err     error
	calls   int
}

func (m *scriptedModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	for marker, reply := range m.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("no scripted reply")
}

func TestNormalizeShotType(t *testing.T) {
	cases := map[string]string{
		"Close-Up":                  ShotCloseUp,
		"close_up":                  ShotCloseUp,
		"EXTREME CLOSE-UP":          ShotExtremeCloseUp,
		"an extreme close-up shot":  ShotExtremeCloseUp,
		"Wide shot.":                ShotWide,
		"OTS":                       ShotOverTheShoulder,
		"over_the_shoulder":         ShotOverTheShoulder,
		"slow establishing pan":     ShotEstablishing,
		"something nobody expected": ShotMedium,
		"":                          ShotMedium,
	}
	for in, want := range cases {
		if got := NormalizeShotType(in); got != want {
			t.Fatalf("NormalizeShotType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLLMWriterBreakdownNormalizes(t *testing.T) {
	model := &scriptedModel{replies: map[string]string{
		"Split this storyline": "```json\n" + `{"scenes":[
			{"title":" Arrival ","description":"Train pulls in","shot_ideas":["wide of platform"," ","close on ticket"]},
			{"title":"","description":"","shot_ideas":["ghost"]},
			{"title":"","description":"Night falls over the harbor town","shot_ideas":[]}
		],"characters":[{"name":"mara","description":"red scarf"},{"name":"Mara","description":"dup"},{"name":" ","description":"blank"}]}` + "\n```",
	}}
	w := NewLLMWriter(model, "test", infra.NopLogger())
	b, err := w.Breakdown(context.Background(), domain.Project{Title: "Harbor"}, domain.Storyline{Content: "..."})
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if len(b.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(b.Scenes))
	}
	if b.Scenes[0].Title != "Arrival" || len(b.Scenes[0].ShotIdeas) != 2 {
		t.Fatalf("unexpected first scene %+v", b.Scenes[0])
	}
	if b.Scenes[1].Title != "Night falls over the harbor town" || len(b.Scenes[1].ShotIdeas) != 1 {
		t.Fatalf("unexpected second scene %+v", b.Scenes[1])
	}
	if len(b.Characters) != 1 || b.Characters[0].Name != "Mara" {
		t.Fatalf("unexpected characters %+v", b.Characters)
	}
}

func TestLLMWriterBreakdownEmpty(t *testing.T) {
	model := &scriptedModel{replies: map[string]string{"Split this storyline": `{"scenes":[],"characters":[]}`}}
	w := NewLLMWriter(model, "test", infra.NopLogger())
	if _, err := w.Breakdown(context.Background(), domain.Project{}, domain.Storyline{}); !errors.Is(err, domain.ErrUpstreamProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestLLMWriterUnparseable(t *testing.T) {
	model := &scriptedModel{replies: map[string]string{"film storyline": "sorry, I cannot"}}
	w := NewLLMWriter(model, "test", infra.NopLogger())
	if _, err := w.Storyline(context.Background(), domain.Project{Title: "x"}); !errors.Is(err, domain.ErrUpstreamProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestLLMWriterShotStages(t *testing.T) {
	model := &scriptedModel{replies: map[string]string{
		"Classify the camera": `{"shot_type":"Close Up"}`,
		"image-generation":    `{"visual_prompt":"Tight on Mara's eyes, neon rain","dialogue":"Not again."}`,
	}}
	w := NewLLMWriter(model, "test", infra.NopLogger())
	in := ShotInput{Shot: domain.Shot{Idea: "Mara looks up"}}
	st, err := w.ClassifyShot(context.Background(), in)
	if err != nil || st != ShotCloseUp {
		t.Fatalf("ClassifyShot = %q, %v", st, err)
	}
	p, err := w.VisualPrompt(context.Background(), in, st)
	if err != nil {
		t.Fatalf("VisualPrompt: %v", err)
	}
	if p.Dialogue != "Not again." || !strings.Contains(p.VisualPrompt, "neon") {
		t.Fatalf("unexpected prompt %+v", p)
	}
	if model.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", model.calls)
	}
}

func TestStaticWriterIsDeterministic(t *testing.T) {
	w := NewStaticWriter()
	ctx := context.Background()
	p := domain.Project{Title: "night train", Genre: "thriller"}
	a, _ := w.Storyline(ctx, p)
	b, _ := w.Storyline(ctx, p)
	if *a != *b || a.Title != "Night Train" {
		t.Fatalf("unexpected storyline %+v", a)
	}
	bd, err := w.Breakdown(ctx, p, domain.Storyline{Title: a.Title})
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if len(bd.Scenes) != 3 || len(bd.Scenes[0].ShotIdeas) != 2 {
		t.Fatalf("unexpected breakdown %+v", bd)
	}
	if bd.Characters[0].Name != "The Lead" {
		t.Fatalf("expected title-cased character name, got %q", bd.Characters[0].Name)
	}
}
