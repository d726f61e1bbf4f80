package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"storyboard/internal/credits"
	"storyboard/internal/domain"
	"storyboard/internal/feed"
	"storyboard/internal/infra"
	"storyboard/internal/middleware"
	"storyboard/internal/pipeline"
)

// JobReader reads background job state.
type JobReader interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
}

// App holds the collaborators shared by every handler.
type App struct {
	Pipeline *pipeline.Pipeline
	Ledger   *credits.Ledger
	Jobs     JobReader
	Hub      *feed.Hub
	Logger   infra.Logger
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps a domain error onto its HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		middleware.LoggerFromContext(r.Context(), a.Logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	}
	a.error(w, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAdmissionDenied):
		return http.StatusPaymentRequired, "insufficient_credits"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUpstreamProvider):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
	}
	return nil
}
