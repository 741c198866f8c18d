package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/workflow"
)

// UserHandler is the builder's student directory.
type UserHandler struct {
	ctrl   workflow.Controller
	logger *slog.Logger
}

func NewUserHandler(ctrl workflow.Controller, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		ctrl:   ctrl,
		logger: logger,
	}
}

// HandleList returns every student with their request count.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.ctrl.Users(s)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleHistory returns one student's requests, newest first.
//
// HTTP: GET /api/users/{id}/requests
func (h *UserHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	reqs, err := h.ctrl.StudentHistory(s, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// HandleUpdate edits a student's name and/or phone. The new values are
// copied onto all of the student's requests.
//
// HTTP: PATCH /api/users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	var patch model.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	u, err := h.ctrl.EditUser(r.Context(), s, id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleDelete removes a student and all of their requests.
//
// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.ctrl.DeleteUser(r.Context(), s, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
