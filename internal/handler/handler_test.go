package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/apfiles/internal/auth"
	"github.com/sakif/apfiles/internal/generator"
	"github.com/sakif/apfiles/internal/handler"
	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/repository/local"
	"github.com/sakif/apfiles/internal/service"
	"github.com/sakif/apfiles/internal/workflow"
)

type fixedPair struct{}

func (fixedPair) IsValidAdminCredential(email, password string) bool {
	return email == "builder@apfiles.app" && password == "open-sesame"
}

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := local.New(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := service.NewSyncService(store, logger)
	ctrl := workflow.New(workflow.Config{
		Sync:        svc,
		Processor:   service.NewRequestProcessor(svc, generator.Static{}, 0, logger),
		Credentials: fixedPair{},
		Logger:      logger,
	})
	require.NoError(t, ctrl.Start(context.Background()))
	t.Cleanup(func() { ctrl.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123")
	require.NoError(t, err)

	authH := handler.NewAuthHandler(ctrl, tokens, logger)
	reqH := handler.NewRequestHandler(ctrl, logger)
	userH := handler.NewUserHandler(ctrl, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", handler.HandleStatus(ctrl))
		r.Post("/auth/login", authH.HandleLogin)
		r.Post("/auth/register", authH.HandleRegister)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/auth/logout", authH.HandleLogout)
			r.Get("/me", authH.HandleMe)
			r.Get("/requests", reqH.HandleList)
			r.Post("/requests", reqH.HandleCreate)
			r.Post("/requests/{id}/process", reqH.HandleProcess)
			r.Get("/users", userH.HandleList)
			r.Get("/users/{id}/requests", userH.HandleHistory)
			r.Patch("/users/{id}", userH.HandleUpdate)
			r.Delete("/users/{id}", userH.HandleDelete)
		})
	})

	return &testAPI{t: t, router: r}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func (a *testAPI) register(name, phone string) handler.SessionResponse {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{"fullName": name, "phoneNumber": phone})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[handler.SessionResponse](a.t, rr)
}

func (a *testAPI) builderToken() string {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "builder@apfiles.app", "password": "open-sesame"})
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[handler.SessionResponse](a.t, rr).Token
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"mode":"local","loading":false}`, rr.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	reg := api.register("Ada Lovelace", "0501234567")
	assert.Equal(t, model.RoleStudent, reg.User.Role)
	assert.NotEmpty(t, reg.Token)

	rr := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"phoneNumber": "0501234567", "fullName": " ada lovelace"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[handler.SessionResponse](t, rr)
	assert.Equal(t, reg.User.ID, login.User.ID)

	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	me := api.do(http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, reg.User, decode[model.User](t, me))
}

func TestRegister_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.register("Ada", "0501234567")

	rr := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"fullName": "Bob", "phoneNumber": "0501234567"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "phoneNumber", decode[handler.ErrorResponse](t, rr).Field)

	rr = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"fullName": "Bob", "phoneNumber": "12"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"nickname": "Bob"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_Rejected(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"phoneNumber": "0501234567", "fullName": "Nobody"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Message, "Account not found")

	rr = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "builder@apfiles.app", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid Admin credentials.", decode[handler.ErrorResponse](t, rr).Message)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/me", "/api/requests", "/api/users"} {
		rr := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRequestLifecycle(t *testing.T) {
	api := newTestAPI(t)
	student := api.register("Ada", "0501234567")
	builder := api.builderToken()

	draft := map[string]string{
		"subject":          "Physics",
		"unit":             "3",
		"type":             "STUDY_GUIDE",
		"materialCategory": "PRACTICE",
	}
	rr := api.do(http.MethodPost, "/api/requests", student.Token, draft)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[model.Request](t, rr)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Empty(t, created.AttachedFileName)

	// Answer key without a file is rejected.
	rr = api.do(http.MethodPost, "/api/requests", student.Token, map[string]string{"subject": "Calculus", "unit": "2", "type": "ANSWER_KEY"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "attachedFileName", decode[handler.ErrorResponse](t, rr).Field)

	// Builders cannot submit, students cannot process.
	rr = api.do(http.MethodPost, "/api/requests", builder, draft)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = api.do(http.MethodPost, "/api/requests/"+created.ID+"/process", student.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodPost, "/api/requests/"+created.ID+"/process", builder, nil)
	require.Equal(t, http.StatusAccepted, rr.Code)

	assert.Eventually(t, func() bool {
		rr := api.do(http.MethodGet, "/api/requests?view=completed", builder, nil)
		return len(decode[[]model.Request](t, rr)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rr = api.do(http.MethodGet, "/api/requests", student.Token, nil)
	history := decode[[]model.Request](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusCompleted, history[0].Status)
	assert.NotEmpty(t, history[0].Content)

	rr = api.do(http.MethodPost, "/api/requests/missing/process", builder, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserManagement(t *testing.T) {
	api := newTestAPI(t)
	student := api.register("Ada", "0501234567")
	builder := api.builderToken()

	for range 2 {
		rr := api.do(http.MethodPost, "/api/requests", student.Token, map[string]string{
			"subject": "Biology", "unit": "1", "type": "ANSWER_KEY", "attachedFileName": "hw.pdf",
		})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := api.do(http.MethodGet, "/api/users", student.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodPatch, "/api/users/"+student.User.ID, builder, map[string]string{"phoneNumber": "0509999999"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "0509999999", decode[model.User](t, rr).PhoneNumber)

	rr = api.do(http.MethodGet, "/api/requests", builder, nil)
	feed := decode[[]model.Request](t, rr)
	require.Len(t, feed, 2)
	for _, r := range feed {
		assert.Equal(t, "0509999999", r.UserPhone)
	}

	rr = api.do(http.MethodGet, "/api/users", builder, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	students := decode[[]workflow.StudentSummary](t, rr)
	require.Len(t, students, 1)
	assert.Equal(t, student.User.ID, students[0].ID)
	assert.Equal(t, "0509999999", students[0].PhoneNumber)
	assert.Equal(t, 2, students[0].RequestCount)

	rr = api.do(http.MethodGet, "/api/users/"+student.User.ID+"/requests", builder, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]model.Request](t, rr)
	require.Len(t, history, 2)
	assert.GreaterOrEqual(t, history[0].CreatedAt, history[1].CreatedAt)

	rr = api.do(http.MethodGet, "/api/users/"+student.User.ID+"/requests", student.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = api.do(http.MethodGet, "/api/users/ghost/requests", builder, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodDelete, "/api/users/"+student.User.ID, builder, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(http.MethodGet, "/api/requests", builder, nil)
	assert.Empty(t, decode[[]model.Request](t, rr))
	rr = api.do(http.MethodGet, "/api/users", builder, nil)
	assert.Empty(t, decode[[]model.User](t, rr))

	// The deleted student's token no longer resolves.
	rr = api.do(http.MethodGet, "/api/me", student.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	api := newTestAPI(t)
	student := api.register("Ada", "0501234567")

	rr := api.do(http.MethodPost, "/api/auth/logout", student.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
