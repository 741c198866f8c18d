package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
)

// LoadAllUsers returns every stored user ordered by id.
func (s *Store) LoadAllUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedUsers(s.users), nil
}

// PutUser inserts the user or merges it over an existing record.
func (s *Store) PutUser(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneUsers(s.users)
	next[user.ID] = user
	if err := s.commit(ctx, next, nil); err != nil {
		return fmt.Errorf("local: putting user %s: %w", user.ID, err)
	}
	return nil
}

// PatchUser merges patch into the stored user.
func (s *Store) PatchUser(ctx context.Context, id string, patch model.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}

	next := cloneUsers(s.users)
	next[id] = patch.Apply(current)
	if err := s.commit(ctx, next, nil); err != nil {
		return fmt.Errorf("local: patching user %s: %w", id, err)
	}
	return nil
}

// DeleteUser removes only the user record. Cascades go through Commit.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return nil
	}

	next := cloneUsers(s.users)
	delete(next, id)
	if err := s.commit(ctx, next, nil); err != nil {
		return fmt.Errorf("local: deleting user %s: %w", id, err)
	}
	return nil
}

func cloneUsers(in map[string]model.User) map[string]model.User {
	out := make(map[string]model.User, len(in)+1)
	for id, u := range in {
		out[id] = u
	}
	return out
}

func sortedUsers(in map[string]model.User) []model.User {
	out := make([]model.User, 0, len(in))
	for _, u := range in {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
