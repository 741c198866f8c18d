package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/apfiles/internal/repository"
)

// Subscribe delivers the current contents of collection and then a fresh
// snapshot after every change notification for it. Snapshots are read
// after the notification arrives, so a burst of writes may collapse into
// fewer deliveries; each delivery is still the full authoritative state.
//
// The returned function stops delivery and releases the Redis connection.
// It is safe to call more than once but must not be called from inside
// onSnapshot.
func (s *Store) Subscribe(ctx context.Context, collection string, onSnapshot func(repository.Snapshot)) (func(), error) {
	if collection != repository.CollectionUsers && collection != repository.CollectionRequests {
		return nil, fmt.Errorf("redisstore: unknown collection %q", collection)
	}

	pubsub := s.client.Subscribe(ctx, s.changesChannel())
	// Wait for the subscription to be confirmed so no change committed
	// after this point can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redisstore: subscribing to %s: %w", collection, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	messages := pubsub.Channel()

	go func() {
		defer close(done)

		s.deliver(subCtx, collection, onSnapshot)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload != collection {
					continue
				}
				s.deliver(subCtx, collection, onSnapshot)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			if err := pubsub.Close(); err != nil {
				s.logger.Warn("redisstore: closing subscription",
					slog.String("collection", collection),
					slog.String("error", err.Error()),
				)
			}
			<-done
		})
	}
	return unsubscribe, nil
}

// deliver reads the collection and hands it to onSnapshot. Read failures
// are logged and skipped; the next notification retries.
func (s *Store) deliver(ctx context.Context, collection string, onSnapshot func(repository.Snapshot)) {
	snap := repository.Snapshot{Collection: collection}
	var err error
	switch collection {
	case repository.CollectionUsers:
		snap.Users, err = s.LoadAllUsers(ctx)
	case repository.CollectionRequests:
		snap.Requests, err = s.LoadAllRequests(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("redisstore: reading snapshot",
				slog.String("collection", collection),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	onSnapshot(snap)
}
