// Package artifacts implements the tenant-scoped document lifecycle on top of
// the shared object storage bucket. Every object path is derived from a
// verified tenant id; client-supplied identifiers never reach the backend as
// raw paths. The package also owns the degraded mode: when the real backend
// reports a billing or account problem, the store flips to an in-memory
// fallback for the rest of the process lifetime so the API stays usable.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/models"
	"github.com/maritime-ai/maritime-ai-backend/internal/retry"
	"github.com/maritime-ai/maritime-ai-backend/internal/storage"
	"github.com/maritime-ai/maritime-ai-backend/internal/telemetry"
)

// namespacePlaceholder marks an initialized tenant namespace. It is invisible
// to List and cannot be downloaded or deleted through the document API.
const namespacePlaceholder = ".init"

// Object metadata keys.
const (
	metaDocID        = "doc_id"
	metaTenantID     = "tenant_id"
	metaOriginalName = "original_name"
)

// storedKeyPattern matches generated object keys:
// tenant-{id}/{millis}-{token}-{original name}. The millis component doubles
// as the legacy short id for objects written before doc_id metadata existed.
var storedKeyPattern = regexp.MustCompile(`^tenant-\d+/(\d+)-[a-z0-9]+-(.+)$`)

// Artifact is one stored document as presented to API clients.
type Artifact struct {
	// ID is the stable document id (doc_id metadata), or the legacy
	// timestamp short id for objects that predate it.
	ID            string
	Name          string
	StoredPath    string
	Size          int64
	SizeFormatted string
	ContentType   string
	UploadedAt    time.Time
	URI           string
}

// Store manages tenant document namespaces in object storage.
type Store struct {
	backend  storage.Storage
	fallback *memoryStore
	degraded atomic.Bool
	bucket   string
	retryCfg *retry.Config

	// Overridable in tests for deterministic keys.
	now   func() time.Time
	token func() string
}

// New creates a Store over the given backend. bucket is used only to build
// gs:// URIs and may be empty for non-GCS backends. A nil backend starts the
// store in degraded mode immediately; this is how the server comes up when
// storage credentials are absent.
func New(backend storage.Storage, bucket string) *Store {
	s := &Store{
		backend:  backend,
		fallback: newMemoryStore(),
		bucket:   bucket,
		retryCfg: retry.DefaultConfig(),
		now:      time.Now,
		token:    randomToken,
	}
	if backend == nil {
		s.enterDegraded("no storage backend configured", nil)
	}
	return s
}

// Degraded reports whether the store has switched to the in-memory fallback.
// The transition is one way; recovery requires a restart with working
// credentials.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func (s *Store) enterDegraded(reason string, err error) {
	if s.degraded.Swap(true) {
		return
	}
	telemetry.StorageDegradedMode.Set(1)
	slog.Error("storage degraded, switching to in-memory fallback", "reason", reason, "error", err)
}

func (s *Store) active() storage.Storage {
	if s.degraded.Load() {
		return s.fallback
	}
	return s.backend
}

// run executes op against the active backend with the uniform retry policy.
// A billing or account error flips the store to degraded mode and replays the
// operation against the fallback so the caller still gets a result.
func run[T any](ctx context.Context, s *Store, op func(storage.Storage) (T, error)) (T, error) {
	backend := s.active()
	result, err := retry.DoWithResult(ctx, s.retryCfg, func() (T, error) {
		return op(backend)
	})
	if err != nil && backend != s.fallback && isServiceDisabled(err) {
		s.enterDegraded("backend rejected request", err)
		return op(s.fallback)
	}
	return result, err
}

// EnsureNamespace creates the tenant's namespace placeholder if it does not
// exist yet. It is idempotent and cheap to call on every login.
func (s *Store) EnsureNamespace(ctx context.Context, tenantID int64) error {
	key := models.NamespaceFor(tenantID) + namespacePlaceholder

	exists, err := run(ctx, s, func(b storage.Storage) (bool, error) {
		return b.Exists(ctx, key)
	})
	if err != nil {
		return fmt.Errorf("failed to check namespace: %w", err)
	}
	if exists {
		return nil
	}

	_, err = run(ctx, s, func(b storage.Storage) (*storage.UploadResult, error) {
		return b.Upload(ctx, key, strings.NewReader(""), 0, storage.UploadOptions{
			Metadata: map[string]string{metaTenantID: strconv.FormatInt(tenantID, 10)},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to initialize namespace: %w", err)
	}

	slog.Info("initialized tenant namespace", "tenant_id", tenantID)
	return nil
}

// Put stores a document under the tenant's namespace and returns the created
// artifact. The object key embeds upload time and a random token so repeated
// uploads of the same file never collide.
func (s *Store) Put(ctx context.Context, tenantID int64, name, contentType string, reader io.Reader, size int64) (*Artifact, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: invalid document name", apperrors.ErrValidation)
	}

	// Buffer the payload once. A retried or replayed attempt must send the
	// full content again, and the incoming reader is already consumed after
	// a failed attempt. Upload size is capped at the handler, so the buffer
	// is bounded.
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	docID := uuid.NewString()
	uploadedAt := s.now()
	key := fmt.Sprintf("%s%d-%s-%s", models.NamespaceFor(tenantID), uploadedAt.UnixMilli(), s.token(), name)

	result, err := run(ctx, s, func(b storage.Storage) (*storage.UploadResult, error) {
		return b.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.UploadOptions{
			ContentType: contentType,
			Metadata: map[string]string{
				metaDocID:        docID,
				metaTenantID:     strconv.FormatInt(tenantID, 10),
				metaOriginalName: name,
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	return &Artifact{
		ID:            docID,
		Name:          name,
		StoredPath:    result.Path,
		Size:          result.Size,
		SizeFormatted: FormatSize(result.Size),
		ContentType:   contentType,
		UploadedAt:    uploadedAt,
		URI:           s.objectURI(result.Path),
	}, nil
}

// List returns the tenant's documents. The namespace placeholder is hidden,
// and display names are reconstructed for objects missing original_name
// metadata by stripping the generated key prefix.
func (s *Store) List(ctx context.Context, tenantID int64) ([]Artifact, error) {
	ns := models.NamespaceFor(tenantID)

	objects, err := run(ctx, s, func(b storage.Storage) ([]storage.ObjectInfo, error) {
		return b.List(ctx, ns)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	artifacts := make([]Artifact, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Path, "/"+namespacePlaceholder) {
			continue
		}
		artifacts = append(artifacts, s.toArtifact(obj))
	}
	return artifacts, nil
}

// Get resolves a document id within the tenant's namespace and opens its
// content for streaming. The caller must close the reader.
func (s *Store) Get(ctx context.Context, tenantID int64, id string) (*Artifact, io.ReadCloser, error) {
	obj, err := s.resolve(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := run(ctx, s, func(b storage.Storage) (io.ReadCloser, error) {
		return b.Download(ctx, obj.Path)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}

	artifact := s.toArtifact(*obj)
	return &artifact, reader, nil
}

// Delete removes a document from the tenant's namespace. An id that belongs
// to another tenant is refused with AccessDenied and the document is left
// intact; an id that belongs to nobody is NotFound. The resolved path is
// re-checked against the namespace before the backend call.
func (s *Store) Delete(ctx context.Context, tenantID int64, id string) error {
	obj, err := s.resolve(ctx, tenantID, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		foreign, lookupErr := s.ownedByOtherTenant(ctx, tenantID, id)
		if lookupErr == nil && foreign {
			telemetry.IsolationViolationsTotal.WithLabelValues("storage").Inc()
			slog.Warn("refusing delete of foreign tenant document", "tenant_id", tenantID)
			return apperrors.ErrAccessDenied
		}
		return err
	}
	if err != nil {
		return err
	}

	ns := models.NamespaceFor(tenantID)
	if !strings.HasPrefix(obj.Path, ns) {
		telemetry.IsolationViolationsTotal.WithLabelValues("storage").Inc()
		slog.Error("refusing delete outside tenant namespace", "tenant_id", tenantID, "path", obj.Path)
		return apperrors.ErrAccessDenied
	}

	_, err = run(ctx, s, func(b storage.Storage) (struct{}, error) {
		return struct{}{}, b.Delete(ctx, obj.Path)
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	slog.Info("deleted document", "tenant_id", tenantID, "path", obj.Path)
	return nil
}

// resolve finds the object for a document id by scanning the tenant's
// namespace only. Stable doc ids match metadata; bare timestamps are accepted
// as the legacy short id.
func (s *Store) resolve(ctx context.Context, tenantID int64, id string) (*storage.ObjectInfo, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", apperrors.ErrValidation)
	}
	ns := models.NamespaceFor(tenantID)

	objects, err := run(ctx, s, func(b storage.Storage) ([]storage.ObjectInfo, error) {
		return b.List(ctx, ns)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	for i := range objects {
		if matchesID(objects[i], id) {
			return &objects[i], nil
		}
	}

	return nil, apperrors.ErrNotFound
}

// matchesID reports whether the object carries the given document id, either
// as doc_id metadata or as the legacy timestamp component of its key.
func matchesID(obj storage.ObjectInfo, id string) bool {
	if strings.HasSuffix(obj.Path, "/"+namespacePlaceholder) {
		return false
	}
	if obj.Metadata[metaDocID] == id {
		return true
	}
	m := storedKeyPattern.FindStringSubmatch(obj.Path)
	return m != nil && m[1] == id
}

// ownedByOtherTenant reports whether the id resolves to a document outside the
// caller's namespace. Used only to pick the right refusal for Delete; Get
// answers NotFound either way so foreign ids leak nothing on reads.
func (s *Store) ownedByOtherTenant(ctx context.Context, tenantID int64, id string) (bool, error) {
	ns := models.NamespaceFor(tenantID)

	objects, err := run(ctx, s, func(b storage.Storage) ([]storage.ObjectInfo, error) {
		return b.List(ctx, "")
	})
	if err != nil {
		return false, err
	}

	for _, obj := range objects {
		if strings.HasPrefix(obj.Path, ns) {
			continue
		}
		if matchesID(obj, id) {
			return true, nil
		}
	}
	return false, nil
}

// toArtifact converts a listed object, preferring metadata over key parsing.
func (s *Store) toArtifact(obj storage.ObjectInfo) Artifact {
	id := obj.Metadata[metaDocID]
	name := obj.Metadata[metaOriginalName]

	if id == "" || name == "" {
		if m := storedKeyPattern.FindStringSubmatch(obj.Path); m != nil {
			if id == "" {
				id = m[1]
			}
			if name == "" {
				name = m[2]
			}
		}
	}
	if id == "" {
		id = obj.Path
	}
	if name == "" {
		name = obj.Path[strings.LastIndex(obj.Path, "/")+1:]
	}

	return Artifact{
		ID:            id,
		Name:          name,
		StoredPath:    obj.Path,
		Size:          obj.Size,
		SizeFormatted: FormatSize(obj.Size),
		ContentType:   obj.ContentType,
		UploadedAt:    obj.LastModified,
		URI:           s.objectURI(obj.Path),
	}
}

func (s *Store) objectURI(path string) string {
	if s.bucket != "" {
		return fmt.Sprintf("gs://%s/%s", s.bucket, path)
	}
	return path
}

// isServiceDisabled reports whether an error indicates the storage project is
// unusable (billing disabled, account suspended) rather than transiently
// failing. These trigger the switch to degraded mode.
func isServiceDisabled(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code != 403 {
			return false
		}
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "billingDisabled", "accountDisabled", "billingNotEnabled":
				return true
			}
		}
		return strings.Contains(strings.ToLower(apiErr.Message), "billing")
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "billing account") || strings.Contains(msg, "account disabled")
}

// FormatSize renders a byte count for display: "0 Bytes", "1.5 KB", "2 MB".
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}

	value := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizes[i]
}

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomToken returns the 6-character key component that keeps same-named
// uploads from colliding within one millisecond.
func randomToken() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return string(b)
}
