// Package documents exposes the tenant document lifecycle over HTTP: list,
// upload (single and batch), download, and delete. Every operation takes the
// tenant id from the verified token via middleware, never from the request.
package documents

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maritime-ai/maritime-ai-backend/internal/api/httpx"
	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
	"github.com/maritime-ai/maritime-ai-backend/internal/artifacts"
	"github.com/maritime-ai/maritime-ai-backend/internal/middleware"
	"github.com/maritime-ai/maritime-ai-backend/internal/telemetry"
)

// Handler serves the /api/v1/documents endpoints.
type Handler struct {
	store          *artifacts.Store
	maxUploadBytes int64
}

// NewHandler creates the documents handler. maxUploadBytes caps each uploaded
// file; zero means no cap.
func NewHandler(store *artifacts.Store, maxUploadBytes int64) *Handler {
	return &Handler{store: store, maxUploadBytes: maxUploadBytes}
}

type documentPayload struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"sizeFormatted"`
	ContentType   string    `json:"contentType"`
	UploadedAt    time.Time `json:"uploadedAt"`
	URI           string    `json:"uri"`
}

func toPayload(a *artifacts.Artifact) documentPayload {
	return documentPayload{
		ID:            a.ID,
		Name:          a.Name,
		Size:          a.Size,
		SizeFormatted: a.SizeFormatted,
		ContentType:   a.ContentType,
		UploadedAt:    a.UploadedAt,
		URI:           a.URI,
	}
}

// List returns the tenant's documents.
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	items, err := h.store.List(c.Request.Context(), tenantID)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	payloads := make([]documentPayload, 0, len(items))
	for i := range items {
		payloads = append(payloads, toPayload(&items[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"documents": payloads,
		"count":     len(payloads),
	})
}

// Upload stores a single document from the multipart "file" field.
func (h *Handler) Upload(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		telemetry.DocumentUploadsTotal.WithLabelValues("error").Inc()
		httpx.Error(c, fmt.Errorf("%w: missing file field", apperrors.ErrValidation))
		return
	}

	artifact, err := h.storeFile(c, tenantID, file)
	if err != nil {
		telemetry.DocumentUploadsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		httpx.Error(c, err)
		return
	}

	telemetry.DocumentUploadsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"document": toPayload(artifact),
	})
}

// UploadBatch stores each file from the multipart "files" field independently.
// One bad file never fails the batch; its error is reported alongside the
// successes.
func (h *Handler) UploadBatch(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		httpx.Error(c, fmt.Errorf("%w: invalid multipart form", apperrors.ErrValidation))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		httpx.Error(c, fmt.Errorf("%w: no files provided", apperrors.ErrValidation))
		return
	}

	type batchError struct {
		Name  string `json:"name"`
		Error string `json:"error"`
	}

	uploaded := make([]documentPayload, 0, len(files))
	failures := make([]batchError, 0)

	for _, file := range files {
		artifact, err := h.storeFile(c, tenantID, file)
		if err != nil {
			telemetry.DocumentUploadsTotal.WithLabelValues(outcomeLabel(err)).Inc()
			failures = append(failures, batchError{Name: file.Filename, Error: err.Error()})
			continue
		}
		telemetry.DocumentUploadsTotal.WithLabelValues("success").Inc()
		uploaded = append(uploaded, toPayload(artifact))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  len(failures) == 0,
		"uploaded": uploaded,
		"errors":   failures,
	})
}

// Download streams the document's bytes with attachment headers. The filename
// is percent-encoded so non-ASCII names survive the header.
func (h *Handler) Download(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	artifact, reader, err := h.store.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		telemetry.DocumentDownloadsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		httpx.Error(c, err)
		return
	}
	defer reader.Close()

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	telemetry.DocumentDownloadsTotal.WithLabelValues("success").Inc()
	c.DataFromReader(http.StatusOK, artifact.Size, contentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(artifact.Name)),
	})
}

// Delete removes a document from the tenant's namespace.
func (h *Handler) Delete(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		telemetry.DocumentDeletesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		httpx.Error(c, err)
		return
	}

	telemetry.DocumentDeletesTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// storeFile validates one multipart file against the upload cap and hands it
// to the artifact store.
func (h *Handler) storeFile(c *gin.Context, tenantID int64, file *multipart.FileHeader) (*artifacts.Artifact, error) {
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("%w: file %q exceeds the %s limit",
			apperrors.ErrValidation, file.Filename, artifacts.FormatSize(h.maxUploadBytes))
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	return h.store.Put(c.Request.Context(), tenantID, file.Filename, contentType, src, file.Size)
}

// outcomeLabel classifies an operation error for the lifecycle counters.
func outcomeLabel(err error) string {
	if errors.Is(err, apperrors.ErrAccessDenied) {
		return "denied"
	}
	return "error"
}
