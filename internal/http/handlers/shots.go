package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyboard/internal/pipeline"
)

type audioRequest struct {
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`
}

type audioResponse struct {
	AudioURL  string `json:"audio_url"`
	FromCache bool   `json:"from_cache"`
}

type queuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (a *App) GenerateVisualPrompt(w http.ResponseWriter, r *http.Request) {
	res, err := a.Pipeline.GenerateVisualPrompt(r.Context(), chi.URLParam(r, "shotID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) GenerateShotImage(w http.ResponseWriter, r *http.Request) {
	job, err := a.Pipeline.RequestShotImage(r.Context(), chi.URLParam(r, "shotID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, queuedResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) GenerateCharacterImage(w http.ResponseWriter, r *http.Request) {
	job, err := a.Pipeline.RequestCharacterImage(r.Context(), chi.URLParam(r, "characterID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, queuedResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) GenerateShotAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Pipeline.GenerateShotAudio(r.Context(), pipeline.AudioRequest{
		ShotID:  chi.URLParam(r, "shotID"),
		UserID:  a.currentUserID(r),
		VoiceID: req.VoiceID,
		ModelID: req.ModelID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, audioResponse{AudioURL: res.URL, FromCache: res.FromCache})
}

func (a *App) RetryUnit(w http.ResponseWriter, r *http.Request) {
	res, err := a.Pipeline.RetryUnit(r.Context(), chi.URLParam(r, "unitID"), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.JobID != "" {
		status = http.StatusAccepted
	}
	a.json(w, status, res)
}
