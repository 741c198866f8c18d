package local

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openStore(t, ":memory:")
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func student(id, name, phone string) model.User {
	return model.User{ID: id, FullName: name, PhoneNumber: phone, Role: model.RoleStudent}
}

func request(id, userID string, createdAt int64) model.Request {
	return model.Request{
		ID:               id,
		UserID:           userID,
		UserName:         "Ada",
		UserPhone:        "0501234567",
		Subject:          model.SubjectPhysics,
		Unit:             "3",
		Type:             model.TypeStudyGuide,
		MaterialCategory: model.CategoryPractice,
		Status:           model.StatusPending,
		CreatedAt:        createdAt,
	}
}

func TestPutAndLoadUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutUser(ctx, student("u2", "Grace", "0502222222")))
	require.NoError(t, s.PutUser(ctx, student("u1", "Ada", "0501111111")))

	users, err := s.LoadAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)
}

func TestPatchUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, student("u1", "Ada", "0501111111")))

	err := s.PatchUser(ctx, "u1", model.UserPatch{PhoneNumber: model.Ptr("0509999999")})
	require.NoError(t, err)

	users, _ := s.LoadAllUsers(ctx)
	assert.Equal(t, "Ada", users[0].FullName)
	assert.Equal(t, "0509999999", users[0].PhoneNumber)
}

func TestPatchUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.PatchUser(context.Background(), "missing", model.UserPatch{FullName: model.Ptr("x")})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestPatchRequest_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.PatchRequest(context.Background(), "missing", model.RequestPatch{Status: model.Ptr(model.StatusProcessing)})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestRequestsOrderedAndQueried(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRequest(ctx, request("r3", "u1", 300)))
	require.NoError(t, s.PutRequest(ctx, request("r1", "u1", 100)))
	require.NoError(t, s.PutRequest(ctx, request("r2", "u2", 200)))

	all, err := s.LoadAllRequests(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r1", "r2", "r3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := s.QueryRequestsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "r1", mine[0].ID)
	assert.Equal(t, "r3", mine[1].ID)

	none, err := s.QueryRequestsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCommitCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutUser(ctx, student("u1", "Ada", "0501111111")))
	require.NoError(t, s.PutUser(ctx, student("u2", "Grace", "0502222222")))
	require.NoError(t, s.PutRequest(ctx, request("r1", "u1", 100)))
	require.NoError(t, s.PutRequest(ctx, request("r2", "u1", 200)))
	require.NoError(t, s.PutRequest(ctx, request("r3", "u2", 300)))

	batch := repository.NewBatch().DeleteUser("u1").DeleteRequest("r1").DeleteRequest("r2")
	require.NoError(t, s.Commit(ctx, batch))

	users, _ := s.LoadAllUsers(ctx)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)

	left, _ := s.QueryRequestsByUser(ctx, "u1")
	assert.Empty(t, left)
	other, _ := s.QueryRequestsByUser(ctx, "u2")
	assert.Len(t, other, 1)
}

func TestCommitFailureLeavesProjectionUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, student("u1", "Ada", "0501111111")))
	require.NoError(t, s.PutRequest(ctx, request("r1", "u1", 100)))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := s.Commit(canceled, repository.NewBatch().DeleteUser("u1").DeleteRequest("r1"))
	require.Error(t, err)

	users, _ := s.LoadAllUsers(ctx)
	assert.Len(t, users, 1)
	reqs, _ := s.LoadAllRequests(ctx)
	assert.Len(t, reqs, 1)
}

func TestBlobSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apfiles.db")
	ctx := context.Background()

	first := openStore(t, path)
	require.NoError(t, first.PutUser(ctx, student("u1", "Ada", "0501111111")))
	req := request("r1", "u1", 100)
	req.Description = "chapter on optics"
	require.NoError(t, first.PutRequest(ctx, req))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	users, err := second.LoadAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ada", users[0].FullName)

	reqs, err := second.LoadAllRequests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "chapter on optics", reqs[0].Description)
	assert.Equal(t, model.CategoryPractice, reqs[0].MaterialCategory)
	assert.Empty(t, reqs[0].AttachedFileName)
}

func TestCommitDeleteUserTakesRequestsWrittenLate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, student("u1", "Ada", "0501111111")))
	require.NoError(t, s.PutRequest(ctx, request("r1", "u1", 100)))

	seen, err := s.QueryRequestsByUser(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, s.PutRequest(ctx, request("late", "u1", 200)))

	batch := repository.NewBatch().DeleteUser("u1")
	for _, r := range seen {
		batch.DeleteRequest(r.ID)
	}
	require.NoError(t, s.Commit(ctx, batch))

	left, _ := s.QueryRequestsByUser(ctx, "u1")
	assert.Empty(t, left)
}

func TestCommitAddChecks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, repository.NewBatch().AddUser(student("u1", "Ada", "0501111111"))))

	err := s.Commit(ctx, repository.NewBatch().AddUser(student("u2", "Bob", "0501111111")))
	assert.ErrorIs(t, err, repository.ErrPhoneTaken)

	err = s.Commit(ctx, repository.NewBatch().AddRequest(request("r1", "ghost", 100)))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	require.NoError(t, s.Commit(ctx, repository.NewBatch().AddRequest(request("r1", "u1", 100))))

	users, _ := s.LoadAllUsers(ctx)
	assert.Len(t, users, 1)
	reqs, _ := s.LoadAllRequests(ctx)
	assert.Len(t, reqs, 1)
}
