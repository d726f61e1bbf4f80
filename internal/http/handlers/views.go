package handlers

import (
	"encoding/json"
	"time"

	"storyboard/internal/domain"
)

type projectDTO struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Concept        string    `json:"concept"`
	Genre          string    `json:"genre,omitempty"`
	VisualStyle    string    `json:"visual_style,omitempty"`
	AspectRatio    string    `json:"aspect_ratio"`
	DefaultVoiceID string    `json:"default_voice_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type storylineDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Synopsis   string `json:"synopsis"`
	Content    string `json:"content"`
	IsSelected bool   `json:"is_selected"`
}

type sceneDTO struct {
	ID          string   `json:"id"`
	Position    int      `json:"position"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Mood        string   `json:"mood"`
	ShotIdeas   []string `json:"shot_ideas"`
}

type characterDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageStatus string `json:"image_status,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type shotDTO struct {
	ID            string `json:"id"`
	SceneID       string `json:"scene_id"`
	Position      int    `json:"position"`
	Idea          string `json:"idea"`
	ShotType      string `json:"shot_type,omitempty"`
	VisualPrompt  string `json:"visual_prompt,omitempty"`
	Dialogue      string `json:"dialogue,omitempty"`
	PromptStatus  string `json:"prompt_status,omitempty"`
	ImageStatus   string `json:"image_status,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	AudioStatus   string `json:"audio_status,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type unitDTO struct {
	ID            string     `json:"id"`
	ParentType    string     `json:"parent_type"`
	ParentID      string     `json:"parent_id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	ArtifactRef   string     `json:"artifact_ref,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Attempts      int        `json:"attempts"`
	DeadlineAt    *time.Time `json:"deadline_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type snapshotDTO struct {
	Project    projectDTO     `json:"project"`
	Storylines []storylineDTO `json:"storylines"`
	Scenes     []sceneDTO     `json:"scenes"`
	Characters []characterDTO `json:"characters"`
	Shots      []shotDTO      `json:"shots"`
	Units      []unitDTO      `json:"units"`
}

type jobDTO struct {
	ID          string          `json:"id"`
	TaskType    string          `json:"task_type"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toProjectDTO(p domain.Project) projectDTO {
	return projectDTO{
		ID:             p.ID,
		Title:          p.Title,
		Concept:        p.Concept,
		Genre:          p.Genre,
		VisualStyle:    p.VisualStyle,
		AspectRatio:    p.AspectRatio,
		DefaultVoiceID: p.DefaultVoiceID,
		CreatedAt:      p.CreatedAt,
	}
}

func toUnitDTO(u domain.GenerationUnit) unitDTO {
	return unitDTO{
		ID:            u.ID,
		ParentType:    string(u.ParentType),
		ParentID:      u.ParentID,
		Kind:          string(u.Kind),
		Status:        string(u.Status),
		ArtifactRef:   u.ArtifactRef,
		FailureReason: u.FailureReason,
		Attempts:      u.Attempts,
		DeadlineAt:    u.DeadlineAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toJobDTO(j domain.Job) jobDTO {
	out := jobDTO{
		ID:          j.ID,
		TaskType:    j.TaskType,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if len(j.Result) > 0 {
		out.Result = j.Result
	}
	return out
}

// toSnapshotDTO folds unit state onto the entities that own it.
func toSnapshotDTO(s domain.ProjectSnapshot) snapshotDTO {
	type unitKey struct {
		parent string
		kind   domain.UnitKind
	}
	units := make(map[unitKey]domain.GenerationUnit, len(s.Units))
	out := snapshotDTO{
		Project:    toProjectDTO(s.Project),
		Storylines: []storylineDTO{},
		Scenes:     []sceneDTO{},
		Characters: []characterDTO{},
		Shots:      []shotDTO{},
		Units:      []unitDTO{},
	}
	for _, u := range s.Units {
		units[unitKey{u.ParentID, u.Kind}] = u
		out.Units = append(out.Units, toUnitDTO(u))
	}
	for _, st := range s.Storylines {
		out.Storylines = append(out.Storylines, storylineDTO{
			ID: st.ID, Title: st.Title, Synopsis: st.Synopsis, Content: st.Content, IsSelected: st.IsSelected,
		})
	}
	for _, sc := range s.Scenes {
		out.Scenes = append(out.Scenes, sceneDTO{
			ID: sc.ID, Position: sc.Position, Title: sc.Title, Description: sc.Description,
			Location: sc.Location, Mood: sc.Mood, ShotIdeas: sc.ShotIdeas,
		})
	}
	for _, ch := range s.Characters {
		dto := characterDTO{ID: ch.ID, Name: ch.Name, Description: ch.Description}
		if u, ok := units[unitKey{ch.ID, domain.UnitKindCharacterImage}]; ok {
			dto.ImageStatus = string(u.Status)
			dto.ImageURL = u.ArtifactRef
		}
		out.Characters = append(out.Characters, dto)
	}
	for _, sh := range s.Shots {
		dto := shotDTO{
			ID: sh.ID, SceneID: sh.SceneID, Position: sh.Position, Idea: sh.Idea,
			ShotType: sh.ShotType, VisualPrompt: sh.VisualPrompt, Dialogue: sh.Dialogue,
		}
		if u, ok := units[unitKey{sh.ID, domain.UnitKindShotVisualPrompt}]; ok {
			dto.PromptStatus = string(u.Status)
		}
		if u, ok := units[unitKey{sh.ID, domain.UnitKindShotImage}]; ok {
			dto.ImageStatus = string(u.Status)
			dto.ImageURL = u.ArtifactRef
			dto.FailureReason = u.FailureReason
		}
		if u, ok := units[unitKey{sh.ID, domain.UnitKindShotAudio}]; ok {
			dto.AudioStatus = string(u.Status)
			dto.AudioURL = u.ArtifactRef
			if dto.FailureReason == "" {
				dto.FailureReason = u.FailureReason
			}
		}
		out.Shots = append(out.Shots, dto)
	}
	return out
}
