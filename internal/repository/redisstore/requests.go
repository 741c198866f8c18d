package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
	"github.com/sakif/apfiles/internal/repository"
)

// LoadAllRequests reads the authoritative requests collection, oldest first.
func (s *Store) LoadAllRequests(ctx context.Context) ([]model.Request, error) {
	data, err := s.client.HGetAll(ctx, s.key(repository.CollectionRequests)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: loading requests: %w", err)
	}
	reqs, err := decodeRequests(data)
	if err != nil {
		return nil, err
	}
	model.SortRequests(reqs, false)
	return reqs, nil
}

func (s *Store) PutRequest(ctx context.Context, req model.Request) error {
	if err := s.put(ctx, repository.CollectionRequests, req.ID, req); err != nil {
		return fmt.Errorf("redisstore: putting request %s: %w", req.ID, err)
	}
	return nil
}

func (s *Store) PatchRequest(ctx context.Context, id string, patch model.RequestPatch) error {
	err := s.patch(ctx, repository.CollectionRequests, id, apperror.NotFound("request", id), func(raw []byte) (any, error) {
		var r model.Request
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return patch.Apply(r), nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: patching request %s: %w", id, err)
	}
	return nil
}

// QueryRequestsByUser is a linear scan of the requests hash.
func (s *Store) QueryRequestsByUser(ctx context.Context, userID string) ([]model.Request, error) {
	all, err := s.LoadAllRequests(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Request, 0)
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Commit applies the batch inside one WATCH/MULTI/EXEC. Both hashes are
// read under WATCH and the batch runs against that state, so its checks
// and the cascade of a user delete see every write committed before EXEC.
// A concurrent change to either hash aborts the EXEC and the batch is
// retried against the new state.
func (s *Store) Commit(ctx context.Context, batch *repository.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	usersKey := s.key(repository.CollectionUsers)
	reqsKey := s.key(repository.CollectionRequests)

	txf := func(tx *redis.Tx) error {
		users, reqs, err := s.readState(ctx, tx, usersKey, reqsKey)
		if err != nil {
			return err
		}
		nextUsers, nextReqs, err := batch.Apply(users, reqs)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			usersChanged, err := writeDiff(ctx, pipe, usersKey, users, nextUsers)
			if err != nil {
				return err
			}
			reqsChanged, err := writeDiff(ctx, pipe, reqsKey, reqs, nextReqs)
			if err != nil {
				return err
			}
			if usersChanged {
				pipe.Publish(ctx, s.changesChannel(), repository.CollectionUsers)
			}
			if reqsChanged {
				pipe.Publish(ctx, s.changesChannel(), repository.CollectionRequests)
			}
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, usersKey, reqsKey); err != nil {
		return fmt.Errorf("redisstore: committing batch of %d ops: %w", batch.Len(), err)
	}
	return nil
}

func (s *Store) readState(ctx context.Context, tx *redis.Tx, usersKey, reqsKey string) (map[string]model.User, map[string]model.Request, error) {
	rawUsers, err := tx.HGetAll(ctx, usersKey).Result()
	if err != nil {
		return nil, nil, err
	}
	rawReqs, err := tx.HGetAll(ctx, reqsKey).Result()
	if err != nil {
		return nil, nil, err
	}

	users := make(map[string]model.User, len(rawUsers))
	for id, raw := range rawUsers {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, nil, fmt.Errorf("decoding user %s: %w", id, err)
		}
		users[id] = u
	}
	reqs := make(map[string]model.Request, len(rawReqs))
	for id, raw := range rawReqs {
		var r model.Request
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, nil, fmt.Errorf("decoding request %s: %w", id, err)
		}
		reqs[id] = r
	}
	return users, reqs, nil
}

// writeDiff queues the HDEL/HSET commands that turn before into after and
// reports whether anything changed.
func writeDiff[T comparable](ctx context.Context, pipe redis.Pipeliner, key string, before, after map[string]T) (bool, error) {
	changed := false
	for id := range before {
		if _, ok := after[id]; !ok {
			pipe.HDel(ctx, key, id)
			changed = true
		}
	}
	for id, rec := range after {
		if old, ok := before[id]; ok && old == rec {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return false, err
		}
		pipe.HSet(ctx, key, id, data)
		changed = true
	}
	return changed, nil
}

func decodeRequests(data map[string]string) ([]model.Request, error) {
	reqs := make([]model.Request, 0, len(data))
	for id, raw := range data {
		var r model.Request
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("redisstore: decoding request %s: %w", id, err)
		}
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}
