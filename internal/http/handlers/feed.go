package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Feed streams unit changes for a project, shot or character as
// server-sent events.
func (a *App) Feed(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")
	if err := a.Pipeline.AuthorizeParent(r.Context(), parentID, a.currentUserID(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Hub.ServeSSE(w, r, parentID)
}

// FeedWS streams the same changes over a WebSocket.
func (a *App) FeedWS(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")
	if err := a.Pipeline.AuthorizeParent(r.Context(), parentID, a.currentUserID(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Hub.ServeWS(w, r, parentID)
}
