package handler

import (
	"net/http"

	"github.com/sakif/apfiles/internal/workflow"
)

// StatusResponse reports which backend is active and whether the first
// snapshot has arrived.
type StatusResponse struct {
	Mode    workflow.Mode `json:"mode"`
	Loading bool          `json:"loading"`
}

// HandleStatus returns a handler for GET /api/status.
func HandleStatus(ctrl workflow.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			Mode:    ctrl.Mode(),
			Loading: ctrl.Loading(),
		})
	}
}
