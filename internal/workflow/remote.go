package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/apfiles/internal/repository"
)

// RemoteController drives a server-authoritative backend. Only snapshot
// pushes change the projection, so a client may briefly not see its own
// write.
type RemoteController struct {
	*base
	sub repository.Subscriber

	mu     sync.Mutex
	unsubs []func()
}

var _ Controller = (*RemoteController)(nil)

func NewRemote(cfg Config, sub repository.Subscriber) *RemoteController {
	return &RemoteController{
		base: newBase(cfg, ModeRemote),
		sub:  sub,
	}
}

// Start subscribes to both collections concurrently. Ready closes when
// the first requests snapshot lands.
func (c *RemoteController) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	collections := []string{repository.CollectionUsers, repository.CollectionRequests}
	unsubs := make([]func(), len(collections))

	var g errgroup.Group
	for i, collection := range collections {
		g.Go(func() error {
			unsub, err := c.sub.Subscribe(c.runCtx, collection, c.onSnapshot)
			if err != nil {
				return fmt.Errorf("workflow: subscribing to %s: %w", collection, err)
			}
			unsubs[i] = unsub
			return nil
		})
	}
	err := g.Wait()

	if err != nil {
		for _, unsub := range unsubs {
			if unsub != nil {
				unsub()
			}
		}
		return err
	}

	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsubs...)
	c.mu.Unlock()
	return nil
}

func (c *RemoteController) onSnapshot(snap repository.Snapshot) {
	switch snap.Collection {
	case repository.CollectionUsers:
		c.proj.ReplaceUsers(snap.Users)
	case repository.CollectionRequests:
		c.proj.ReplaceRequests(snap.Requests)
		c.markReady()
	}
	c.logger.Debug("snapshot applied",
		slog.String("collection", snap.Collection),
		slog.Int("users", len(snap.Users)),
		slog.Int("requests", len(snap.Requests)),
	)
}

// Close stops processing and both subscriptions.
func (c *RemoteController) Close() error {
	c.shutdown()

	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	return nil
}
