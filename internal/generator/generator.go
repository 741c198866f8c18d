// Package generator produces study material for a request.
//
// Generation never fails from the caller's point of view: provider errors
// and empty responses are logged and replaced by placeholder markdown, so
// the processing pipeline always reaches COMPLETED.
package generator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/apfiles/internal/model"
)

// Placeholder contents used when a provider cannot produce text.
const (
	EmptyResponseContent = "## Error generating content. Please try again."
	SystemErrorContent   = "## System Error\nCould not generate study material at this time."
)

// Params are the request fields that shape the generated material.
type Params struct {
	Subject          model.Subject
	Unit             string
	Type             model.RequestType
	MaterialCategory model.MaterialCategory
	AttachedFileName string
	Description      string
}

// ParamsFor extracts generation params from a stored request.
func ParamsFor(r model.Request) Params {
	return Params{
		Subject:          r.Subject,
		Unit:             r.Unit,
		Type:             r.Type,
		MaterialCategory: r.MaterialCategory,
		AttachedFileName: r.AttachedFileName,
		Description:      r.Description,
	}
}

// Generator returns generated markdown for params. Implementations must
// not return an empty string.
type Generator interface {
	Generate(ctx context.Context, params Params) string
}

// TextGenerator is a provider that may fail.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Fallback adapts a TextGenerator into a Generator by swallowing errors.
type Fallback struct {
	provider TextGenerator
	logger   *slog.Logger
}

func NewFallback(provider TextGenerator, logger *slog.Logger) *Fallback {
	return &Fallback{provider: provider, logger: logger}
}

func (f *Fallback) Generate(ctx context.Context, params Params) string {
	text, err := f.provider.GenerateText(ctx, SystemPrompt, BuildPrompt(params))
	if err != nil {
		f.logger.Error("content generation failed",
			slog.String("subject", string(params.Subject)),
			slog.String("unit", params.Unit),
			slog.String("type", string(params.Type)),
			slog.String("error", err.Error()),
		)
		return SystemErrorContent
	}
	if strings.TrimSpace(text) == "" {
		f.logger.Warn("content generation returned no text",
			slog.String("subject", string(params.Subject)),
			slog.String("unit", params.Unit),
		)
		return EmptyResponseContent
	}
	return text
}

// Static renders the prompt skeleton itself. It is the generator used when
// no provider API key is configured, so the builder flow still completes.
type Static struct{}

func (Static) Generate(_ context.Context, params Params) string {
	return "# " + Title(params) + "\n\n" +
		"_Generated offline: no content provider is configured._\n\n" +
		BuildPrompt(params)
}
