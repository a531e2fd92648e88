// builder.go enforces tenant isolation on search results. The index cannot be
// trusted to scope results, so every excerpt's namespace marker is checked
// here and a single foreign marker fails the whole request.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/models"
	"github.com/maritime-ai/maritime-ai-backend/internal/retry"
	"github.com/maritime-ai/maritime-ai-backend/internal/telemetry"
)

const defaultMaxResults = 5

// namespaceMarker extracts the tenant namespace segment from a storage URI.
var namespaceMarker = regexp.MustCompile(`(?:^|/)(tenant-\d+)/`)

// Builder is the retrieval context builder: raw search plus the mandatory
// tenant post-filter. A nil searcher (search disabled or unavailable) yields
// empty results for every query.
type Builder struct {
	searcher Searcher
	retryCfg *retry.Config
}

// NewBuilder wraps a raw searcher. searcher may be nil.
func NewBuilder(searcher Searcher) *Builder {
	return &Builder{
		searcher: searcher,
		retryCfg: retry.DefaultConfig(),
	}
}

// Search retrieves excerpts for the tenant's query. Zero matches is a normal
// outcome and returns an empty slice. Search collaborator failures are
// absorbed after retries, also yielding an empty slice, so one flaky index
// lookup never fails the chat request. An excerpt attributable to another
// tenant, or to no tenant at all, is the one condition that fails closed.
func (b *Builder) Search(ctx context.Context, tenantID int64, query string, maxResults int) ([]Excerpt, error) {
	if b.searcher == nil {
		return []Excerpt{}, nil
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	excerpts, err := retry.DoWithResult(ctx, b.retryCfg, func() ([]Excerpt, error) {
		return b.searcher.Search(ctx, query, maxResults)
	})
	if err != nil {
		slog.Warn("search unavailable, continuing without context", "tenant_id", tenantID, "error", err)
		return []Excerpt{}, nil
	}

	want := models.NamespaceFor(tenantID)
	for _, e := range excerpts {
		m := namespaceMarker.FindStringSubmatch(e.URI)
		if m == nil || m[1]+"/" != want {
			telemetry.IsolationViolationsTotal.WithLabelValues("search").Inc()
			slog.Error("search returned excerpt outside tenant namespace",
				"tenant_id", tenantID, "uri", e.URI)
			return nil, fmt.Errorf("%w: search result outside tenant namespace", apperrors.ErrIsolationViolation)
		}
	}

	if excerpts == nil {
		excerpts = []Excerpt{}
	}
	return excerpts, nil
}
