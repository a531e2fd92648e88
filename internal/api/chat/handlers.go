// Package chat exposes the question-answering endpoint. A request fans out to
// retrieval, isolation filtering, and the generation chain; the handler itself
// only binds the payload and shapes the response.
package chat

import (
	"context"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/maritime-ai/maritime-ai-backend/internal/ai"
	"github.com/maritime-ai/maritime-ai-backend/internal/api/httpx"
	"github.com/maritime-ai/maritime-ai-backend/internal/middleware"
	"github.com/maritime-ai/maritime-ai-backend/internal/search"
	"github.com/maritime-ai/maritime-ai-backend/internal/telemetry"
)

// snippetLimit caps excerpt content echoed back in the searchResults field so
// responses stay small; the full content still reaches the model.
const snippetLimit = 200

// ContextBuilder retrieves tenant-scoped excerpts for a query.
type ContextBuilder interface {
	Search(ctx context.Context, tenantID int64, query string, maxResults int) ([]search.Excerpt, error)
}

// AnswerComposer runs the generation chain over retrieved excerpts.
type AnswerComposer interface {
	Generate(ctx context.Context, tenantID int64, query string, excerpts []search.Excerpt, tenantName string) (*ai.Answer, error)
}

// Handler serves POST /api/v1/chat.
type Handler struct {
	builder  ContextBuilder
	composer AnswerComposer
}

// NewHandler creates the chat handler.
func NewHandler(builder ContextBuilder, composer AnswerComposer) *Handler {
	return &Handler{builder: builder, composer: composer}
}

type chatRequest struct {
	Query      string `json:"query" binding:"required,min=1,max=1000"`
	MaxResults int    `json:"maxResults" binding:"omitempty,min=1,max=10"`
}

type reference struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type searchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Ask answers one question against the tenant's documents.
func (h *Handler) Ask(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}
	tenantName := c.GetString(middleware.ContextTenantNameKey)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.ChatRequestsTotal.WithLabelValues("error").Inc()
		httpx.ValidationError(c, err)
		return
	}

	excerpts, err := h.builder.Search(c.Request.Context(), tenantID, req.Query, req.MaxResults)
	if err != nil {
		telemetry.ChatRequestsTotal.WithLabelValues("error").Inc()
		httpx.Error(c, err)
		return
	}

	answer, err := h.composer.Generate(c.Request.Context(), tenantID, req.Query, excerpts, tenantName)
	if err != nil {
		telemetry.ChatRequestsTotal.WithLabelValues("error").Inc()
		httpx.Error(c, err)
		return
	}

	telemetry.ChatRequestsTotal.WithLabelValues(answer.Outcome()).Inc()

	references := make([]reference, 0, len(excerpts))
	results := make([]searchResult, 0, len(excerpts))
	for i, e := range excerpts {
		references = append(references, reference{ID: i + 1, Name: e.Title, URI: e.URI})
		results = append(results, searchResult{Title: e.Title, Content: truncate(e.Content, snippetLimit)})
	}

	metadata := gin.H{
		"contextUsed": answer.ContextUsed,
		"fallback":    answer.UsedFallbackModel,
	}
	if answer.SafetyBlocked {
		metadata["safetyBlocked"] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"answer":        answer.Text,
		"references":    references,
		"searchResults": results,
		"metadata":      metadata,
	})
}

// truncate cuts s at a rune boundary at or before limit bytes so multi-byte
// text never ends in a broken sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
