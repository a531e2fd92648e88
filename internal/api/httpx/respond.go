// Package httpx holds the small response helpers shared by all handler
// packages so error payloads stay uniform across endpoints.
package httpx

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
)

// Error writes the uniform error payload for err, choosing the status through
// the error taxonomy. Unclassified errors log at error level and surface a
// generic message so internal details never reach the client.
func Error(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		message = "internal server error"
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// ValidationError wraps a binding failure in the validation taxonomy error so
// the response carries a 400 with a stable shape.
func ValidationError(c *gin.Context, err error) {
	Error(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
}
