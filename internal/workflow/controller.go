// Package workflow is the session and workflow controller: it owns the
// in-memory projections of users and requests and runs every user-facing
// operation against the sync engine.
//
// There are two controllers behind one interface, chosen once at startup:
//
//	Local   projection loaded once; each successful write is echoed into
//	        the projection as soon as the backend returns
//	Remote  projection replaced wholesale by backend snapshot pushes;
//	        writes never touch it
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/repository"
	"github.com/sakif/apfiles/internal/service"
)

// Mode names the active controller variant.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// View selects a slice of the request feed.
type View string

const (
	ViewAll       View = ""
	ViewPending   View = "pending"
	ViewCompleted View = "completed"
)

// User-visible rejections.
const (
	msgAccountNotFound = "Account not found. Please check your name and number or create an account."
	msgBadAdmin        = "Invalid Admin credentials."
	msgSignInRequired  = "Please sign in first."
	msgBuilderOnly     = "Only the builder can do this."
	msgStudentOnly     = "Only students can submit requests."
	msgInFlight        = "This request is already being processed."
)

// CredentialChecker verifies the fixed admin pair.
type CredentialChecker interface {
	IsValidAdminCredential(email, password string) bool
}

// Controller is the operation set the HTTP layer drives.
type Controller interface {
	Mode() Mode

	// Start loads or subscribes. Ready is closed once the request feed
	// has been populated for the first time.
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	Loading() bool

	Login(ctx context.Context, phone, name string) (*Session, error)
	LoginAdmin(email, password string) (*Session, error)
	Register(ctx context.Context, reg model.Registration) (*Session, error)
	Resume(ctx context.Context, userID string) (*Session, error)
	Logout(s *Session)

	SubmitRequest(ctx context.Context, s *Session, draft model.RequestDraft) (model.Request, error)
	ProcessRequest(ctx context.Context, s *Session, id string) (model.Request, error)
	EditUser(ctx context.Context, s *Session, id string, patch model.UserPatch) (model.User, error)
	DeleteUser(ctx context.Context, s *Session, id string) error

	Users(s *Session) ([]StudentSummary, error)
	Requests(s *Session, view View) ([]model.Request, error)
	History(s *Session) ([]model.Request, error)
	StudentHistory(s *Session, userID string) ([]model.Request, error)

	// Close stops subscriptions and waits for in-flight processing.
	Close() error
}

// Config carries the controller's dependencies.
type Config struct {
	Sync        *service.SyncService
	Processor   *service.RequestProcessor
	Credentials CredentialChecker
	Logger      *slog.Logger
}

// New returns the Remote controller when the backend can push snapshots
// and the Local controller otherwise.
func New(cfg Config) Controller {
	if sub, ok := cfg.Sync.Backend().(repository.Subscriber); ok {
		return NewRemote(cfg, sub)
	}
	return NewLocal(cfg)
}

// base implements every operation. The variants differ only in Start,
// Close and echo.
type base struct {
	mode      Mode
	sync      *service.SyncService
	processor *service.RequestProcessor
	creds     CredentialChecker
	logger    *slog.Logger
	proj      *Projection

	// echo applies a successful write to the projection. It is a no-op
	// for the Remote controller.
	echo func(func(*Projection))

	ready     chan struct{}
	readyOnce sync.Once

	runCtx context.Context
	stop   context.CancelFunc
	jobs   sync.WaitGroup

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func newBase(cfg Config, mode Mode) *base {
	runCtx, stop := context.WithCancel(context.Background())
	return &base{
		mode:      mode,
		sync:      cfg.Sync,
		processor: cfg.Processor,
		creds:     cfg.Credentials,
		logger:    cfg.Logger.With(slog.String("mode", string(mode))),
		proj:      NewProjection(),
		echo:      func(func(*Projection)) {},
		ready:     make(chan struct{}),
		runCtx:    runCtx,
		stop:      stop,
		inflight:  make(map[string]struct{}),
	}
}

func (c *base) Mode() Mode {
	return c.mode
}

func (c *base) Ready() <-chan struct{} {
	return c.ready
}

func (c *base) Loading() bool {
	select {
	case <-c.ready:
		return false
	default:
		return true
	}
}

func (c *base) markReady() {
	c.readyOnce.Do(func() {
		close(c.ready)
		c.logger.Info("projection ready")
	})
}

// Login signs a student in by phone and name.
func (c *base) Login(_ context.Context, phone, name string) (*Session, error) {
	u, ok := c.proj.FindStudent(phone, name)
	if !ok {
		return nil, apperror.Unauthorized(msgAccountNotFound)
	}
	c.logger.Info("student signed in", slog.String("userID", u.ID))
	return NewSession(u), nil
}

// LoginAdmin signs the Builder in. The identity is synthetic and never
// stored.
func (c *base) LoginAdmin(email, password string) (*Session, error) {
	if c.creds == nil || !c.creds.IsValidAdminCredential(email, password) {
		return nil, apperror.Unauthorized(msgBadAdmin)
	}
	c.logger.Info("builder signed in")
	return NewSession(model.BuilderIdentity()), nil
}

// Register creates a student account and signs it in.
func (c *base) Register(ctx context.Context, reg model.Registration) (*Session, error) {
	u, err := c.sync.RegisterUser(ctx, reg)
	if err != nil {
		return nil, err
	}
	c.echo(func(p *Projection) { p.PutUser(u) })
	return NewSession(u), nil
}

// Resume rebuilds a session for a previously signed-in user id. A user
// not yet visible in the projection is looked up in the backend, which
// covers a Remote registration whose push has not arrived.
func (c *base) Resume(ctx context.Context, userID string) (*Session, error) {
	if userID == model.BuilderID {
		return NewSession(model.BuilderIdentity()), nil
	}
	if u, ok := c.proj.User(userID); ok {
		return NewSession(u), nil
	}

	users, err := c.sync.Backend().LoadAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("workflow: resuming session: %w", err)
	}
	for _, u := range users {
		if u.ID == userID {
			return NewSession(u), nil
		}
	}
	return nil, apperror.Unauthorized(msgSignInRequired)
}

func (c *base) Logout(s *Session) {
	s.clear()
}

// SubmitRequest files a new request for the signed-in student.
func (c *base) SubmitRequest(ctx context.Context, s *Session, draft model.RequestDraft) (model.Request, error) {
	owner, ok := s.User()
	if !ok {
		return model.Request{}, apperror.Unauthorized(msgSignInRequired)
	}
	if owner.Role != model.RoleStudent {
		return model.Request{}, apperror.Forbidden(msgStudentOnly)
	}
	draft.Description = strings.TrimSpace(draft.Description)
	if err := draft.Validate(); err != nil {
		return model.Request{}, err
	}

	req, err := c.sync.SubmitRequest(ctx, owner, draft)
	if err != nil {
		return model.Request{}, err
	}
	c.echo(func(p *Projection) { p.PutRequest(req) })
	return req, nil
}

// ProcessRequest starts fulfilment of a request in the background and
// returns the request as it was found. Progress shows up in the feed. A
// request already being processed by this controller is a conflict.
func (c *base) ProcessRequest(_ context.Context, s *Session, id string) (model.Request, error) {
	if err := c.requireAdmin(s); err != nil {
		return model.Request{}, err
	}
	req, ok := c.proj.Request(id)
	if !ok {
		return model.Request{}, apperror.NotFound("request", id)
	}
	if !c.claim(id) {
		return model.Request{}, apperror.Conflict("id", msgInFlight)
	}

	// Only the written fields are echoed so a concurrent user edit is
	// not overwritten with the owner fields read above.
	step := func(id string, patch model.RequestPatch) {
		c.echo(func(p *Projection) { p.PatchRequest(id, patch) })
	}

	c.jobs.Add(1)
	go func() {
		defer c.jobs.Done()
		defer c.release(id)
		if _, err := c.processor.Process(c.runCtx, req, step); err != nil {
			c.logger.Error("processing request failed",
				slog.String("requestID", req.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return req, nil
}

func (c *base) claim(id string) bool {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *base) release(id string) {
	c.inflightMu.Lock()
	delete(c.inflight, id)
	c.inflightMu.Unlock()
}

// EditUser changes a student's name or phone and propagates the change to
// their requests. If propagation fails the user edit stands and the
// error is returned.
func (c *base) EditUser(ctx context.Context, s *Session, id string, patch model.UserPatch) (model.User, error) {
	if err := c.requireAdmin(s); err != nil {
		return model.User{}, err
	}

	updated, err := c.sync.UpdateUser(ctx, id, patch)
	if updated.ID != "" {
		c.echo(func(p *Projection) { p.PutUser(updated) })
	}
	if err != nil {
		return updated, err
	}
	if patch.TouchesContact() {
		c.echo(func(p *Projection) { p.SyncContact(id, updated.FullName, updated.PhoneNumber) })
	}
	return updated, nil
}

// DeleteUser removes a student and all of their requests.
func (c *base) DeleteUser(ctx context.Context, s *Session, id string) error {
	if err := c.requireAdmin(s); err != nil {
		return err
	}
	if id == model.BuilderID {
		return apperror.ValidationFailed("id", "the builder account cannot be deleted")
	}
	if err := c.sync.DeleteUserCascade(ctx, id); err != nil {
		return err
	}
	c.echo(func(p *Projection) { p.DeleteUser(id) })
	return nil
}

// Users is the Builder's student directory with per-student request
// counts.
func (c *base) Users(s *Session) ([]StudentSummary, error) {
	if err := c.requireAdmin(s); err != nil {
		return nil, err
	}
	return c.proj.Students(), nil
}

// Requests is the Builder's feed.
func (c *base) Requests(s *Session, view View) ([]model.Request, error) {
	if err := c.requireAdmin(s); err != nil {
		return nil, err
	}
	switch view {
	case ViewPending:
		return c.proj.Pending(), nil
	case ViewCompleted:
		return c.proj.Completed(), nil
	case ViewAll:
		return c.proj.Requests(), nil
	}
	return nil, apperror.ValidationFailed("view", fmt.Sprintf("unknown view %q", view))
}

// History is the signed-in student's own requests, newest first.
func (c *base) History(s *Session) ([]model.Request, error) {
	u, ok := s.User()
	if !ok {
		return nil, apperror.Unauthorized(msgSignInRequired)
	}
	return c.proj.History(u.ID), nil
}

// StudentHistory is one student's requests, newest first, as the Builder
// sees them.
func (c *base) StudentHistory(s *Session, userID string) ([]model.Request, error) {
	if err := c.requireAdmin(s); err != nil {
		return nil, err
	}
	u, ok := c.proj.User(userID)
	if !ok || u.Role != model.RoleStudent {
		return nil, apperror.NotFound("user", userID)
	}
	return c.proj.History(userID), nil
}

func (c *base) requireAdmin(s *Session) error {
	if _, ok := s.User(); !ok {
		return apperror.Unauthorized(msgSignInRequired)
	}
	if !s.IsAdmin() {
		return apperror.Forbidden(msgBuilderOnly)
	}
	return nil
}

// shutdown cancels background processing and waits for it.
func (c *base) shutdown() {
	c.stop()
	c.jobs.Wait()
}
