package workflow

import (
	"context"
	"fmt"
	"log/slog"
)

// LocalController drives a single-writer backend. The projection is
// loaded once and then kept current by echoing each successful write.
type LocalController struct {
	*base
}

var _ Controller = (*LocalController)(nil)

func NewLocal(cfg Config) *LocalController {
	b := newBase(cfg, ModeLocal)
	b.echo = func(apply func(*Projection)) { apply(b.proj) }
	return &LocalController{base: b}
}

// Start loads both collections and signals ready.
func (c *LocalController) Start(ctx context.Context) error {
	backend := c.sync.Backend()

	users, err := backend.LoadAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("workflow: loading users: %w", err)
	}
	reqs, err := backend.LoadAllRequests(ctx)
	if err != nil {
		return fmt.Errorf("workflow: loading requests: %w", err)
	}

	c.proj.ReplaceUsers(users)
	c.proj.ReplaceRequests(reqs)
	c.logger.Info("projection loaded",
		slog.Int("users", len(users)),
		slog.Int("requests", len(reqs)),
	)
	c.markReady()
	return nil
}

func (c *LocalController) Close() error {
	c.shutdown()
	return nil
}
