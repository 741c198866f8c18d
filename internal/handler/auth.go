package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/apfiles/internal/auth"
	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/workflow"
)

// AuthHandler signs students and the builder in and out.
//
//   - HandleLogin    → student by phone + name, or builder by email + password
//   - HandleRegister → create a student account and sign it in
//   - HandleLogout   → clear the session cookie
//   - HandleMe       → the signed-in user
type AuthHandler struct {
	ctrl   workflow.Controller
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthHandler(ctrl workflow.Controller, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		ctrl:   ctrl,
		tokens: tokens,
		logger: logger,
	}
}

// LoginRequest carries either the student pair or the builder pair.
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
}

// SessionResponse is returned by login and registration.
type SessionResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// HandleLogin signs a user in.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		s   *workflow.Session
		err error
	)
	if strings.TrimSpace(req.Email) != "" {
		s, err = h.ctrl.LoginAdmin(req.Email, req.Password)
	} else {
		s, err = h.ctrl.Login(r.Context(), req.PhoneNumber, req.FullName)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.issue(w, s, http.StatusOK)
}

// HandleRegister creates a student account and signs it in.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.ctrl.Register(r.Context(), reg)
	if err != nil {
		writeError(w, err)
		return
	}

	h.issue(w, s, http.StatusCreated)
}

// HandleLogout clears the session cookie. The token stays valid until it
// expires but the browser no longer sends it.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if s, err := currentSession(r, h.ctrl); err == nil {
		h.ctrl.Logout(s)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r, h.ctrl)
	if err != nil {
		writeError(w, err)
		return
	}
	u, _ := s.User()
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) issue(w http.ResponseWriter, s *workflow.Session, status int) {
	u, _ := s.User()

	token, err := h.tokens.Generate(u.ID)
	if err != nil {
		h.logger.Error("token generation failed",
			slog.String("userID", u.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// Secure should be set when served over HTTPS.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, SessionResponse{User: u, Token: token})
}
