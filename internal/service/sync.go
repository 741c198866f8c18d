// Package service contains the sync engine: the business rules that keep
// users and requests consistent regardless of which backend is active.
//
//	Controller (workflow) → SyncService (rules) → repository.Backend (local | redis)
//
// SyncService only sees the Backend interface. It never touches a
// projection; keeping in-memory views current is the controller's job.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/repository"
)

const duplicatePhoneMessage = "An account with this phone number already exists."

// SyncService enforces phone uniqueness, denormalization of owner contact
// fields onto requests, and the user→requests cascade.
type SyncService struct {
	backend repository.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewSyncService creates a SyncService over backend.
func NewSyncService(backend repository.Backend, logger *slog.Logger) *SyncService {
	return &SyncService{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the time source used to stamp createdAt.
func (s *SyncService) WithClock(now func() time.Time) *SyncService {
	s.now = now
	return s
}

// Backend exposes the store the service writes to.
func (s *SyncService) Backend() repository.Backend {
	return s.backend
}

// RegisterUser creates a STUDENT account. A phone number already held by
// another student is a conflict regardless of name. The check runs inside
// the backend's commit, so concurrent registrations cannot both win.
func (s *SyncService) RegisterUser(ctx context.Context, reg model.Registration) (model.User, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return model.User{}, err
	}

	user := model.User{
		ID:          model.NewID(),
		FullName:    reg.FullName,
		PhoneNumber: reg.PhoneNumber,
		Role:        model.RoleStudent,
	}
	if err := s.backend.Commit(ctx, repository.NewBatch().AddUser(user)); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return model.User{}, apperror.Conflict("phoneNumber", duplicatePhoneMessage)
		}
		return model.User{}, fmt.Errorf("service: registering user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// UpdateUser patches the user and then rewrites the denormalized contact
// fields on every request they own. The two writes are not atomic: if the
// second fails the user record is already updated and the error says so.
// Calling SyncDenormalizedFields again repairs it.
func (s *SyncService) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (model.User, error) {
	if patch.Empty() {
		return model.User{}, apperror.ValidationFailed("", "nothing to update")
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return model.User{}, apperror.ValidationFailed("fullName", "fullName is required")
		}
		patch.FullName = &name
	}
	if patch.PhoneNumber != nil {
		phone := strings.TrimSpace(*patch.PhoneNumber)
		if err := model.ValidatePhone(phone); err != nil {
			return model.User{}, err
		}
		patch.PhoneNumber = &phone
	}

	current, err := s.findUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	if err := s.backend.PatchUser(ctx, id, patch); err != nil {
		return model.User{}, fmt.Errorf("service: patching user %s: %w", id, err)
	}
	updated := patch.Apply(current)

	if patch.TouchesContact() {
		if _, err := s.SyncDenormalizedFields(ctx, id, updated.FullName, updated.PhoneNumber); err != nil {
			s.logger.Error("denormalized fields out of date",
				slog.String("userID", id),
				slog.String("error", err.Error()),
			)
			return updated, fmt.Errorf("service: user %s updated but requests not synced: %w", id, err)
		}
	}
	return updated, nil
}

// SyncDenormalizedFields sets userName/userPhone on every request owned by
// userID and returns how many were rewritten. It is idempotent.
func (s *SyncService) SyncDenormalizedFields(ctx context.Context, userID, name, phone string) (int, error) {
	reqs, err := s.backend.QueryRequestsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service: querying requests of %s: %w", userID, err)
	}
	if len(reqs) == 0 {
		return 0, nil
	}

	batch := repository.NewBatch()
	patch := model.ContactPatch(name, phone)
	for _, r := range reqs {
		batch.PatchRequest(r.ID, patch)
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return 0, fmt.Errorf("service: syncing contact fields of %s: %w", userID, err)
	}

	s.logger.Debug("denormalized fields synced",
		slog.String("userID", userID),
		slog.Int("requests", len(reqs)),
	)
	return len(reqs), nil
}

// DeleteUserCascade removes the user and every request they own in one
// batch. The owned requests are resolved at commit time, so a request
// submitted while the delete is in flight goes too.
func (s *SyncService) DeleteUserCascade(ctx context.Context, id string) error {
	if err := s.backend.Commit(ctx, repository.NewBatch().DeleteUser(id)); err != nil {
		return fmt.Errorf("service: deleting user %s: %w", id, err)
	}

	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}

// SubmitRequest validates the draft and persists a new PENDING request.
// Owner name and phone are copied from the owner's stored record, not from
// the caller's possibly stale copy.
func (s *SyncService) SubmitRequest(ctx context.Context, owner model.User, draft model.RequestDraft) (model.Request, error) {
	if err := draft.Validate(); err != nil {
		return model.Request{}, err
	}

	current, err := s.findUser(ctx, owner.ID)
	if err != nil {
		return model.Request{}, err
	}

	req := model.Request{
		ID:          model.NewID(),
		UserID:      current.ID,
		UserName:    current.FullName,
		UserPhone:   current.PhoneNumber,
		Subject:     draft.Subject,
		Unit:        draft.Unit,
		Type:        draft.Type,
		Description: strings.TrimSpace(draft.Description),
		Status:      model.StatusPending,
		CreatedAt:   s.now().UnixMilli(),
	}
	switch draft.Type {
	case model.TypeStudyGuide:
		req.MaterialCategory = draft.MaterialCategory
	case model.TypeAnswerKey:
		req.AttachedFileName = draft.AttachedFileName
	}

	// The owner is checked again inside the commit in case they were
	// deleted after findUser.
	if err := s.backend.Commit(ctx, repository.NewBatch().AddRequest(req)); err != nil {
		return model.Request{}, fmt.Errorf("service: submitting request: %w", err)
	}

	s.logger.Info("request submitted",
		slog.String("requestID", req.ID),
		slog.String("userID", req.UserID),
		slog.String("type", string(req.Type)),
	)
	return req, nil
}

// AdvanceRequest sets the status (and optionally the content) of a request.
// Any of the three statuses may follow any other.
func (s *SyncService) AdvanceRequest(ctx context.Context, id string, status model.Status, content *string) error {
	if !status.Valid() {
		return apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}

	patch := model.RequestPatch{Status: &status, Content: content}
	if err := s.backend.PatchRequest(ctx, id, patch); err != nil {
		return fmt.Errorf("service: advancing request %s: %w", id, err)
	}

	s.logger.Debug("request advanced",
		slog.String("requestID", id),
		slog.String("status", string(status)),
	)
	return nil
}

func (s *SyncService) findUser(ctx context.Context, id string) (model.User, error) {
	users, err := s.backend.LoadAllUsers(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("service: loading users: %w", err)
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, apperror.NotFound("user", id)
}
