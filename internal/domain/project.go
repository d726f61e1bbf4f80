package domain

import "time"

// Project is the root of a storyboard and carries the creative brief.
type Project struct {
	ID             string
	UserID         string
	Title          string
	Concept        string
	Genre          string
	VisualStyle    string
	AspectRatio    string
	DefaultVoiceID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Storyline is one generated narrative option for a project.
type Storyline struct {
	ID         string
	ProjectID  string
	Title      string
	Synopsis   string
	Content    string
	IsSelected bool
	CreatedAt  time.Time
}

// Scene is an ordered section of the selected storyline.
type Scene struct {
	ID          string
	ProjectID   string
	StorylineID string
	Position    int
	Title       string
	Description string
	Location    string
	Mood        string
	ShotIdeas   []string
	CreatedAt   time.Time
}

// Character is a recurring figure with a portrait unit.
type Character struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Shot is a single storyboard frame within a scene.
type Shot struct {
	ID           string
	ProjectID    string
	SceneID      string
	Position     int
	Idea         string
	ShotType     string
	VisualPrompt string
	Dialogue     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NarrationText returns the text spoken over the shot.
func (s Shot) NarrationText() string {
	if s.Dialogue != "" {
		return s.Dialogue
	}
	return s.Idea
}

// Breakdown is the persisted result of the scene breakdown stage.
type Breakdown struct {
	ProjectID   string
	StorylineID string
	Scenes      []Scene
	Characters  []Character
	Units       []GenerationUnit
}

// ProjectSnapshot is the full observable state of a project.
type ProjectSnapshot struct {
	Project    Project
	Storylines []Storyline
	Scenes     []Scene
	Characters []Character
	Shots      []Shot
	Units      []GenerationUnit
}
