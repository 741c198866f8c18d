package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/workflow"
)

// RequestHandler serves the request feed, student submissions and the
// builder's processing trigger.
type RequestHandler struct {
	ctrl   workflow.Controller
	logger *slog.Logger
}

func NewRequestHandler(ctrl workflow.Controller, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{
		ctrl:   ctrl,
		logger: logger,
	}
}

// HandleList returns the builder's feed (oldest first, ?view=pending|completed)
// or a student's own history (newest first).
//
// HTTP: GET /api/requests
func (h *RequestHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	var reqs []model.Request
	if s.IsAdmin() {
		reqs, err = h.ctrl.Requests(s, workflow.View(r.URL.Query().Get("view")))
	} else {
		reqs, err = h.ctrl.History(s)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

// HandleCreate submits a new request for the signed-in student.
//
// HTTP: POST /api/requests
func (h *RequestHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	var draft model.RequestDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.ctrl.SubmitRequest(r.Context(), s, draft)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// HandleProcess starts generation and delivery for a request. The work
// continues after the response; poll the feed for the result.
//
// HTTP: POST /api/requests/{id}/process
func (h *RequestHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	req, err := h.ctrl.ProcessRequest(r.Context(), s, id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("processing started", slog.String("requestID", req.ID))
	writeJSON(w, http.StatusAccepted, req)
}
