package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
)

// LoadAllRequests returns every stored request, oldest first.
func (s *Store) LoadAllRequests(_ context.Context) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRequests(s.requests), nil
}

func (s *Store) PutRequest(ctx context.Context, req model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneRequests(s.requests)
	next[req.ID] = req
	if err := s.commit(ctx, nil, next); err != nil {
		return fmt.Errorf("local: putting request %s: %w", req.ID, err)
	}
	return nil
}

func (s *Store) PatchRequest(ctx context.Context, id string, patch model.RequestPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[id]
	if !ok {
		return apperror.NotFound("request", id)
	}

	next := cloneRequests(s.requests)
	next[id] = patch.Apply(current)
	if err := s.commit(ctx, nil, next); err != nil {
		return fmt.Errorf("local: patching request %s: %w", id, err)
	}
	return nil
}

// QueryRequestsByUser scans the projection for requests owned by userID.
func (s *Store) QueryRequestsByUser(_ context.Context, userID string) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Request, 0)
	for _, r := range s.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	model.SortRequests(out, false)
	return out, nil
}

func cloneRequests(in map[string]model.Request) map[string]model.Request {
	out := make(map[string]model.Request, len(in)+1)
	for id, r := range in {
		out[id] = r
	}
	return out
}

func sortedRequests(in map[string]model.Request) []model.Request {
	out := make([]model.Request, 0, len(in))
	for _, r := range in {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	model.SortRequests(out, false)
	return out
}
