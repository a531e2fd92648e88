// composer.go runs the generation chain: primary model, fallback model, fixed
// apology. Before any model sees the prompt, the assembled context is checked
// for foreign tenant namespace markers one last time.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/models"
	"github.com/maritime-ai/maritime-ai-backend/internal/retry"
	"github.com/maritime-ai/maritime-ai-backend/internal/search"
	"github.com/maritime-ai/maritime-ai-backend/internal/telemetry"
)

// Answer is the composed result handed to the chat handler.
type Answer struct {
	Text              string
	ContextUsed       bool
	UsedFallbackModel bool
	SafetyBlocked     bool
	// Apology is set when every model stage failed and the fixed apology was
	// used instead of a generated answer.
	Apology bool
}

// Outcome returns the chat metrics label for this answer.
func (a *Answer) Outcome() string {
	switch {
	case a.SafetyBlocked:
		return "safety_blocked"
	case a.Apology:
		return "apology"
	case a.UsedFallbackModel:
		return "fallback_model"
	default:
		return "answered"
	}
}

var foreignMarker = regexp.MustCompile(`tenant-(\d+)/`)

// Composer degrades through the configured generator stages.
type Composer struct {
	primary  Capability
	fallback Capability
	retryCfg *retry.Config
}

// NewComposer builds the composer from the two generation stages. Either or
// both may be Unavailable; with no usable stage every answer is the apology.
func NewComposer(primary, fallback Capability) *Composer {
	if _, ok := primary.Generator(); !ok {
		slog.Warn("primary generator unavailable", "reason", primary.Reason())
	}
	if _, ok := fallback.Generator(); !ok {
		slog.Warn("fallback generator unavailable", "reason", fallback.Reason())
	}
	return &Composer{
		primary:  primary,
		fallback: fallback,
		retryCfg: retry.DefaultConfig(),
	}
}

// Generate produces the answer for one chat request. Zero excerpts short
// circuits to the fixed no-documents sentence without a model call.
func (c *Composer) Generate(ctx context.Context, tenantID int64, query string, excerpts []search.Excerpt, tenantName string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperrors.ErrValidation)
	}

	if len(excerpts) == 0 {
		return &Answer{Text: NoDocumentsMessage}, nil
	}

	if err := c.checkContextIsolation(tenantID, excerpts); err != nil {
		return nil, err
	}

	instructions := BuildInstructions(tenantName, ContextText(excerpts))

	stages := []struct {
		capability Capability
		fallback   bool
	}{
		{c.primary, false},
		{c.fallback, true},
	}

	for _, stage := range stages {
		gen, ok := stage.capability.Generator()
		if !ok {
			continue
		}

		result, err := retry.DoWithResult(ctx, c.retryCfg, func() (*Generation, error) {
			return gen.Generate(ctx, instructions, query)
		})
		if err != nil {
			slog.Warn("generator failed, degrading", "generator", gen.Name(), "error", err)
			continue
		}

		if result.SafetyBlocked {
			return &Answer{
				Text:              SafetyBlockedMessage,
				ContextUsed:       true,
				UsedFallbackModel: stage.fallback,
				SafetyBlocked:     true,
			}, nil
		}

		return &Answer{
			Text:              result.Text,
			ContextUsed:       true,
			UsedFallbackModel: stage.fallback,
		}, nil
	}

	slog.Error("all generator stages failed, returning apology", "tenant_id", tenantID)
	return &Answer{Text: ApologyMessage, Apology: true}, nil
}

// checkContextIsolation scans the excerpts that are about to enter the prompt
// for namespace markers of other tenants. The retrieval builder already
// filtered; this guards against anything that slipped past it.
func (c *Composer) checkContextIsolation(tenantID int64, excerpts []search.Excerpt) error {
	want := models.NamespaceFor(tenantID)

	for _, e := range excerpts {
		scan := e.URI + "\n" + e.Title + "\n" + e.Content
		for _, m := range foreignMarker.FindAllString(scan, -1) {
			if m != want {
				telemetry.IsolationViolationsTotal.WithLabelValues("generation").Inc()
				slog.Error("foreign tenant marker in generation context",
					"tenant_id", tenantID, "marker", m)
				return fmt.Errorf("%w: foreign tenant marker in context", apperrors.ErrIsolationViolation)
			}
		}
	}
	return nil
}
