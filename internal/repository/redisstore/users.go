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

// LoadAllUsers reads the authoritative users collection, ordered by id.
func (s *Store) LoadAllUsers(ctx context.Context) ([]model.User, error) {
	data, err := s.client.HGetAll(ctx, s.key(repository.CollectionUsers)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: loading users: %w", err)
	}
	users := make([]model.User, 0, len(data))
	for id, raw := range data {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("redisstore: decoding user %s: %w", id, err)
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) PutUser(ctx context.Context, user model.User) error {
	if err := s.put(ctx, repository.CollectionUsers, user.ID, user); err != nil {
		return fmt.Errorf("redisstore: putting user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) PatchUser(ctx context.Context, id string, patch model.UserPatch) error {
	err := s.patch(ctx, repository.CollectionUsers, id, apperror.NotFound("user", id), func(raw []byte) (any, error) {
		var u model.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return patch.Apply(u), nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: patching user %s: %w", id, err)
	}
	return nil
}

// DeleteUser removes only the user record. Cascades go through Commit.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key(repository.CollectionUsers), id)
		pipe.Publish(ctx, s.changesChannel(), repository.CollectionUsers)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: deleting user %s: %w", id, err)
	}
	return nil
}
