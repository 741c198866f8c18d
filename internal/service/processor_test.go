package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/apfiles/internal/generator"
	"github.com/sakif/apfiles/internal/model"
)

// recordingGenerator captures the request status seen at generation time.
type recordingGenerator struct {
	svc        *SyncService
	statusSeen model.Status
	params     generator.Params
}

func (g *recordingGenerator) Generate(ctx context.Context, p generator.Params) string {
	g.params = p
	all, _ := g.svc.Backend().LoadAllRequests(ctx)
	if len(all) > 0 {
		g.statusSeen = all[0].Status
	}
	return "# Generated"
}

func TestProcess_CompletesWithContent(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()
	ada := register(t, svc, "Ada", "0501234567")
	req, err := svc.SubmitRequest(ctx, ada, practiceDraft())
	require.NoError(t, err)

	gen := &recordingGenerator{svc: svc}
	var steps []model.RequestPatch
	done, err := NewRequestProcessor(svc, gen, 0, discardLogger()).Process(ctx, req, func(id string, patch model.RequestPatch) {
		assert.Equal(t, req.ID, id)
		steps = append(steps, patch)
	})
	require.NoError(t, err)

	// Steps carry only what the processor wrote, never owner fields.
	require.Len(t, steps, 2)
	assert.Equal(t, model.RequestPatch{Status: model.Ptr(model.StatusProcessing)}, steps[0])
	assert.Equal(t, model.RequestPatch{Status: model.Ptr(model.StatusCompleted), Content: model.Ptr("# Generated")}, steps[1])

	assert.Equal(t, "# Generated", done.Content)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, model.StatusProcessing, gen.statusSeen)
	assert.Equal(t, model.CategoryPractice, gen.params.MaterialCategory)

	all, _ := fb.LoadAllRequests(ctx)
	assert.Equal(t, model.StatusCompleted, all[0].Status)
	assert.Equal(t, "# Generated", all[0].Content)
}

func TestProcess_GenerationFailureStillCompletes(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()
	ada := register(t, svc, "Ada", "0501234567")
	req, err := svc.SubmitRequest(ctx, ada, answerKeyDraft())
	require.NoError(t, err)

	gen := generator.NewFallback(failingProvider{}, discardLogger())
	_, err = NewRequestProcessor(svc, gen, 0, discardLogger()).Process(ctx, req, nil)
	require.NoError(t, err)

	all, _ := fb.LoadAllRequests(ctx)
	assert.Equal(t, model.StatusCompleted, all[0].Status)
	assert.Equal(t, generator.SystemErrorContent, all[0].Content)
}

func TestProcess_CanceledDuringDelivery(t *testing.T) {
	svc, fb := newTestService(t)
	ada := register(t, svc, "Ada", "0501234567")
	req, err := svc.SubmitRequest(context.Background(), ada, practiceDraft())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = NewRequestProcessor(svc, generator.Static{}, time.Minute, discardLogger()).Process(ctx, req, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	all, _ := fb.LoadAllRequests(context.Background())
	assert.Equal(t, model.StatusProcessing, all[0].Status)
	assert.Empty(t, all[0].Content)
}

type failingProvider struct{}

func (failingProvider) GenerateText(context.Context, string, string) (string, error) {
	return "", errors.New("503 model overloaded")
}
