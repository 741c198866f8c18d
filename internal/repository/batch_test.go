package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
)

func TestBatchApply(t *testing.T) {
	users := map[string]model.User{
		"u1": {ID: "u1", FullName: "Ada"},
		"u2": {ID: "u2", FullName: "Grace"},
	}
	reqs := map[string]model.Request{
		"r1": {ID: "r1", UserID: "u1"},
		"r2": {ID: "r2", UserID: "u2", UserName: "Grace"},
		"r3": {ID: "r3", UserID: "u1"},
	}

	b := NewBatch().
		DeleteUser("u1").
		DeleteRequest("r1").
		PatchRequest("r2", model.ContactPatch("Grace H", "0501111111")).
		PatchRequest("r3", model.ContactPatch("gone", "gone"))

	nextUsers, nextReqs, err := b.Apply(users, reqs)
	require.NoError(t, err)

	assert.Equal(t, 4, b.Len())
	assert.NotContains(t, nextUsers, "u1")
	assert.Contains(t, nextUsers, "u2")
	assert.Len(t, nextReqs, 1, "r3 goes with its owner even without a DeleteRequest")
	assert.Equal(t, "Grace H", nextReqs["r2"].UserName)

	// inputs untouched
	assert.Len(t, users, 2)
	assert.Len(t, reqs, 3)
	assert.Equal(t, "Grace", reqs["r2"].UserName)
}

func TestBatchApply_AddChecks(t *testing.T) {
	ada := model.User{ID: "u1", FullName: "Ada", PhoneNumber: "0501111111", Role: model.RoleStudent}
	users := map[string]model.User{"u1": ada}

	tests := []struct {
		name    string
		batch   *Batch
		wantErr error
	}{
		{
			name:    "taken phone",
			batch:   NewBatch().AddUser(model.User{ID: "u2", PhoneNumber: "0501111111", Role: model.RoleStudent}),
			wantErr: ErrPhoneTaken,
		},
		{
			name:  "builder may share a phone",
			batch: NewBatch().AddUser(model.User{ID: "b", PhoneNumber: "0501111111", Role: model.RoleBuilder}),
		},
		{
			name:  "re-adding the same user",
			batch: NewBatch().AddUser(ada),
		},
		{
			name:    "request without owner",
			batch:   NewBatch().AddRequest(model.Request{ID: "r1", UserID: "ghost"}),
			wantErr: apperror.ErrNotFound,
		},
		{
			name:    "owner deleted earlier in the batch",
			batch:   NewBatch().DeleteUser("u1").AddRequest(model.Request{ID: "r1", UserID: "u1"}),
			wantErr: apperror.ErrNotFound,
		},
		{
			name:  "request with owner",
			batch: NewBatch().AddRequest(model.Request{ID: "r1", UserID: "u1"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextUsers, nextReqs, err := tt.batch.Apply(users, nil)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, nextUsers)
				assert.Nil(t, nextReqs)
				return
			}
			require.NoError(t, err)
		})
	}
}
