package handler

import (
	"net/http"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/auth"
	"github.com/sakif/apfiles/internal/workflow"
)

// currentSession rebuilds the caller's session from the user id the auth
// middleware placed in the context.
func currentSession(r *http.Request, ctrl workflow.Controller) (*workflow.Session, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("Please sign in first.")
	}
	return ctrl.Resume(r.Context(), userID)
}
