package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyboard/internal/domain"
)

type createProjectRequest struct {
	Title          string `json:"title"`
	Concept        string `json:"concept"`
	Genre          string `json:"genre"`
	VisualStyle    string `json:"visual_style"`
	AspectRatio    string `json:"aspect_ratio"`
	DefaultVoiceID string `json:"default_voice_id"`
}

func (a *App) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	proj := &domain.Project{
		UserID:         a.currentUserID(r),
		Title:          req.Title,
		Concept:        req.Concept,
		Genre:          req.Genre,
		VisualStyle:    req.VisualStyle,
		AspectRatio:    req.AspectRatio,
		DefaultVoiceID: req.DefaultVoiceID,
	}
	if err := a.Pipeline.CreateProject(r.Context(), proj); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toProjectDTO(*proj))
}

func (a *App) GetProject(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Pipeline.Snapshot(r.Context(), chi.URLParam(r, "projectID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSnapshotDTO(*snap))
}

func (a *App) GenerateStoryline(w http.ResponseWriter, r *http.Request) {
	res, err := a.Pipeline.GenerateStoryline(r.Context(), chi.URLParam(r, "projectID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) SelectStoryline(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	storylineID := chi.URLParam(r, "storylineID")
	if err := a.Pipeline.SelectStoryline(r.Context(), projectID, storylineID, a.currentUserID(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"project_id": projectID, "storyline_id": storylineID})
}

func (a *App) FinalizeProject(w http.ResponseWriter, r *http.Request) {
	res, err := a.Pipeline.FinalizeProjectSetup(r.Context(), chi.URLParam(r, "projectID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
