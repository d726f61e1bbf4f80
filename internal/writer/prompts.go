package writer

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a film pre-production assistant who writes storyboards. Respond only with valid JSON matching the requested schema."

func buildStorylinePrompt(title, concept, genre, style string) string {
	sb := &strings.Builder{}
	sb.WriteString("Write a short film storyline. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"title":string,"synopsis":string,"content":string}`)
	fmt.Fprintf(sb, ". The synopsis is two sentences; content is the full storyline in 4-8 paragraphs. Input details: title=%q, concept=%q, genre=%q, visual_style=%q.", title, concept, genre, style)
	return sb.String()
}

func buildBreakdownPrompt(title, genre, storyline string) string {
	sb := &strings.Builder{}
	sb.WriteString("Split this storyline into scenes and list its characters. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"scenes":[{"title":string,"description":string,"location":string,"mood":string,"shot_ideas":string[]}],"characters":[{"name":string,"description":string}]}`)
	fmt.Fprintf(sb, ". Use 3-%d scenes with 2-%d shot ideas each; each shot idea is one sentence describing what the camera sees. Describe each character's appearance so a portrait can be drawn. Film title=%q, genre=%q.\n\nStoryline:\n%s", maxScenes, maxShotsPerScene, title, genre, storyline)
	return sb.String()
}

func buildClassifyPrompt(in ShotInput) string {
	sb := &strings.Builder{}
	sb.WriteString("Classify the camera framing for this shot. Respond strictly with JSON: ")
	sb.WriteString(`{"shot_type":string}`)
	fmt.Fprintf(sb, " where shot_type is one of establishing, wide, medium, close_up, extreme_close_up, over_the_shoulder, pov, insert. Scene=%q (%s). Shot idea=%q.", in.Scene.Title, in.Scene.Description, in.Shot.Idea)
	return sb.String()
}

func buildVisualPromptPrompt(in ShotInput, shotType string) string {
	sb := &strings.Builder{}
	sb.WriteString("Write an image-generation prompt and one line of narration for this storyboard frame. Respond strictly with JSON: ")
	sb.WriteString(`{"visual_prompt":string,"dialogue":string}`)
	fmt.Fprintf(sb, ". The visual prompt is one paragraph naming framing, subject, setting, lighting and mood; keep characters' appearance consistent with their descriptions. Visual style=%q, aspect ratio=%q, shot type=%q. Scene=%q at %q, mood %q. Shot idea=%q.",
		in.Project.VisualStyle, in.Project.AspectRatio, shotType, in.Scene.Title, in.Scene.Location, in.Scene.Mood, in.Shot.Idea)
	if len(in.Characters) > 0 {
		sb.WriteString(" Characters:")
		for _, ch := range in.Characters {
			fmt.Fprintf(sb, " %s: %s;", ch.Name, ch.Description)
		}
	}
	return sb.String()
}
