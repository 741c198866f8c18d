package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/apfiles/internal/generator"
	"github.com/sakif/apfiles/internal/model"
)

// DefaultDeliveryDelay stands in for handing the finished material to the
// student over a messaging channel.
const DefaultDeliveryDelay = 2 * time.Second

// RequestProcessor runs the builder's fulfilment flow for one request:
// PROCESSING, generate content, deliver, COMPLETED.
type RequestProcessor struct {
	sync   *SyncService
	gen    generator.Generator
	delay  time.Duration
	logger *slog.Logger
}

func NewRequestProcessor(sync *SyncService, gen generator.Generator, delay time.Duration, logger *slog.Logger) *RequestProcessor {
	if delay < 0 {
		delay = 0
	}
	return &RequestProcessor{
		sync:   sync,
		gen:    gen,
		delay:  delay,
		logger: logger,
	}
}

// StepFunc observes each status change Process writes, after the backend
// accepted it. patch holds only the fields Process wrote.
type StepFunc func(id string, patch model.RequestPatch)

// Process fulfils req and returns it in its COMPLETED form. Generation
// never fails; only backend writes and ctx cancellation do. A request left
// in PROCESSING after a failure can be processed again. step may be nil.
func (p *RequestProcessor) Process(ctx context.Context, req model.Request, step StepFunc) (model.Request, error) {
	if step == nil {
		step = func(string, model.RequestPatch) {}
	}

	if err := p.sync.AdvanceRequest(ctx, req.ID, model.StatusProcessing, nil); err != nil {
		return model.Request{}, err
	}
	req.Status = model.StatusProcessing
	step(req.ID, model.RequestPatch{Status: model.Ptr(model.StatusProcessing)})

	start := time.Now()
	content := p.gen.Generate(ctx, generator.ParamsFor(req))
	p.logger.Info("content generated",
		slog.String("requestID", req.ID),
		slog.Duration("took", time.Since(start)),
		slog.Int("bytes", len(content)),
	)

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.Request{}, fmt.Errorf("service: delivering request %s: %w", req.ID, ctx.Err())
		case <-timer.C:
		}
	}

	if err := p.sync.AdvanceRequest(ctx, req.ID, model.StatusCompleted, &content); err != nil {
		return model.Request{}, err
	}
	req.Status = model.StatusCompleted
	req.Content = content
	step(req.ID, model.RequestPatch{Status: model.Ptr(model.StatusCompleted), Content: &content})

	p.logger.Info("request completed",
		slog.String("requestID", req.ID),
		slog.String("userID", req.UserID),
	)
	return req, nil
}
