// Package redisstore implements repository.Backend for Remote Mode on top
// of Redis.
//
// Each collection is a hash of id → JSON record:
//
//	<prefix>:users     HSET id {"id":...,"fullName":...}
//	<prefix>:requests  HSET id {"id":...,"userId":...}
//
// Every committed write also PUBLISHes the collection name on
// <prefix>:changes inside the same MULTI/EXEC. Subscribers react to the
// notification by re-reading the whole collection, so what they deliver is
// always the server's authoritative state, never the writer's guess.
//
// Concurrent writers from different clients are last-write-wins. Patches
// use WATCH so a read-modify-write is never interleaved with another patch
// of the same collection.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/apfiles/internal/repository"
)

// DefaultPrefix namespaces every key the store touches.
const DefaultPrefix = "apfiles"

// maxWatchRetries bounds optimistic-transaction retries when another client
// modifies a watched hash between read and EXEC.
const maxWatchRetries = 5

var (
	_ repository.Backend    = (*Store)(nil)
	_ repository.Subscriber = (*Store)(nil)
)

type Config struct {
	Addr     string
	Password string
	Prefix   string
}

// Store is the Remote Mode backend.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// New builds a store for the Redis server at cfg.Addr. It does not dial;
// call Ping to check reachability.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redisstore: redis addr required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password})
	return NewWithClient(client, cfg.Prefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisstore: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(collection string) string {
	return s.prefix + ":" + collection
}

func (s *Store) changesChannel() string {
	return s.prefix + ":changes"
}

// put writes one record and announces the change atomically.
func (s *Store) put(ctx context.Context, collection, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", collection, id, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(collection), id, data)
		pipe.Publish(ctx, s.changesChannel(), collection)
		return nil
	})
	return err
}

// patch runs a WATCHed read-modify-write of one record. mutate receives the
// stored JSON and returns the replacement. A missing record yields notFound.
func (s *Store) patch(ctx context.Context, collection, id string, notFound error, mutate func([]byte) (any, error)) error {
	key := s.key(collection)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Bytes()
		if err == redis.Nil {
			return notFound
		}
		if err != nil {
			return err
		}
		next, err := mutate(raw)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			pipe.Publish(ctx, s.changesChannel(), collection)
			return nil
		})
		return err
	}
	return s.watch(ctx, txf, key)
}

func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("redisstore: watched key changed, retrying",
			slog.Any("keys", keys),
			slog.Int("attempt", i+1),
		)
	}
	return fmt.Errorf("redisstore: transaction on %v kept conflicting: %w", keys, redis.TxFailedErr)
}
