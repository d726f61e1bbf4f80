package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyboard/internal/domain"
)

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := a.Jobs.Get(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var owner struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(job.Payload, &owner)
	if owner.UserID != a.currentUserID(r) {
		a.fail(w, r, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound))
		return
	}
	a.json(w, http.StatusOK, toJobDTO(*job))
}
