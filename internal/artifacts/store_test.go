package artifacts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
	"github.com/maritime-ai/maritime-ai-backend/internal/retry"
	"github.com/maritime-ai/maritime-ai-backend/internal/storage"
)

// newTestStore builds a Store over the in-memory backend with deterministic
// key components.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(newMemoryStore(), "test-bucket")
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	s.token = func() string { return "abc123" }
	return s
}

// ---------------------------------------------------------------------------
// EnsureNamespace
// ---------------------------------------------------------------------------

func TestEnsureNamespace_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureNamespace(ctx, 1); err != nil {
		t.Fatalf("EnsureNamespace() error: %v", err)
	}
	if err := s.EnsureNamespace(ctx, 1); err != nil {
		t.Fatalf("EnsureNamespace() second call error: %v", err)
	}

	exists, err := s.backend.Exists(ctx, "tenant-1/.init")
	if err != nil || !exists {
		t.Errorf("placeholder exists = %v, err = %v; want true, nil", exists, err)
	}
}

func TestEnsureNamespace_PlaceholderHiddenFromList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureNamespace(ctx, 1); err != nil {
		t.Fatal(err)
	}

	docs, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List() = %d documents, want 0 (placeholder must be hidden)", len(docs))
	}
}

// ---------------------------------------------------------------------------
// Put
// ---------------------------------------------------------------------------

func TestPut(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := strings.Repeat("x", 500000)
	art, err := s.Put(ctx, 1, "report.pdf", "application/pdf", strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	if art.StoredPath != "tenant-1/1700000000000-abc123-report.pdf" {
		t.Errorf("StoredPath = %q", art.StoredPath)
	}
	if art.Name != "report.pdf" {
		t.Errorf("Name = %q, want report.pdf", art.Name)
	}
	if art.ID == "" {
		t.Error("ID is empty, want a stable document id")
	}
	if art.Size != 500000 {
		t.Errorf("Size = %d, want 500000", art.Size)
	}
	if art.SizeFormatted != "488.28 KB" {
		t.Errorf("SizeFormatted = %q, want 488.28 KB", art.SizeFormatted)
	}
	if art.URI != "gs://test-bucket/tenant-1/1700000000000-abc123-report.pdf" {
		t.Errorf("URI = %q", art.URI)
	}
}

func TestPut_RejectsInvalidNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "../../etc/passwd", "a/b.txt"} {
		_, err := s.Put(ctx, 1, name, "text/plain", strings.NewReader("x"), 1)
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("Put(%q) = %v, want ErrValidation", name, err)
		}
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestList_TenantScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, 1, "a.txt", "text/plain", strings.NewReader("one"), 3); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, 2, "b.txt", "text/plain", strings.NewReader("two"), 3); err != nil {
		t.Fatal(err)
	}

	docs, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("List(tenant 1) = %d documents, want 1", len(docs))
	}
	if docs[0].Name != "a.txt" {
		t.Errorf("Name = %q, want a.txt", docs[0].Name)
	}

	// A tenant with nothing uploaded sees an empty list, never an error.
	docs, err = s.List(ctx, 99)
	if err != nil {
		t.Fatalf("List(empty tenant) error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List(empty tenant) = %d documents, want 0", len(docs))
	}
}

func TestList_ReconstructsLegacyDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Object written without metadata: name and id come from the key itself.
	_, err := s.backend.Upload(ctx, "tenant-1/1690000000000-zzz999-old report.docx", strings.NewReader("legacy"), 6, storage.UploadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	docs, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("List() = %d documents, want 1", len(docs))
	}
	if docs[0].Name != "old report.docx" {
		t.Errorf("Name = %q, want old report.docx", docs[0].Name)
	}
	if docs[0].ID != "1690000000000" {
		t.Errorf("ID = %q, want legacy timestamp id", docs[0].ID)
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := "document body bytes"
	put, err := s.Put(ctx, 1, "doc.txt", "text/plain", strings.NewReader(want), int64(len(want)))
	if err != nil {
		t.Fatal(err)
	}

	art, rc, err := s.Get(ctx, 1, put.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != want {
		t.Errorf("Get() content = %q, want %q", string(data), want)
	}
	if art.Name != "doc.txt" {
		t.Errorf("Name = %q, want doc.txt", art.Name)
	}
	if art.ContentType != "text/plain" {
		t.Errorf("ContentType = %q, want text/plain", art.ContentType)
	}
}

func TestGet_LegacyTimestampID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, 1, "doc.txt", "text/plain", strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}

	// The millis component of the generated key works as a legacy short id.
	art, rc, err := s.Get(ctx, 1, "1700000000000")
	if err != nil {
		t.Fatalf("Get(legacy id) error: %v", err)
	}
	rc.Close()
	if art.Name != "doc.txt" {
		t.Errorf("Name = %q, want doc.txt", art.Name)
	}
}

func TestGet_ForeignTenantCannotSeeDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	put, err := s.Put(ctx, 1, "secret.txt", "text/plain", strings.NewReader("private"), 7)
	if err != nil {
		t.Fatal(err)
	}

	// Tenant 2 presenting tenant 1's real document id gets not-found, with no
	// hint the document exists.
	if _, _, err := s.Get(ctx, 2, put.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get(foreign tenant) = %v, want ErrNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Get(ctx, 1, "no-such-id"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	put, err := s.Put(ctx, 1, "bye.txt", "text/plain", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, 1, put.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, _, err := s.Get(ctx, 1, put.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestDelete_ForeignTenantIsAccessDenied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	put, err := s.Put(ctx, 1, "keep.txt", "text/plain", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, 2, put.ID); !errors.Is(err, apperrors.ErrAccessDenied) {
		t.Errorf("Delete(foreign tenant) = %v, want ErrAccessDenied", err)
	}

	// The document is untouched.
	if _, _, err := s.Get(ctx, 1, put.ID); err != nil {
		t.Errorf("document disappeared after foreign delete attempt: %v", err)
	}
}

func TestDelete_LegacyForeignIDIsAccessDenied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Tenant 1 owns an object resolvable only by its legacy timestamp id.
	_, err := s.backend.Upload(ctx, "tenant-1/1690000000000-zzz999-old.docx", strings.NewReader("legacy"), 6, storage.UploadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, 2, "1690000000000"); !errors.Is(err, apperrors.ErrAccessDenied) {
		t.Errorf("Delete(foreign legacy id) = %v, want ErrAccessDenied", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Delete(ctx, 1, "ghost"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Delete() = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

// flakyUploadBackend consumes the upload reader and fails the first N
// attempts the way a real backend does on a transient outage.
type flakyUploadBackend struct {
	storage.Storage
	failures int
}

func (f *flakyUploadBackend) Upload(ctx context.Context, path string, reader io.Reader, size int64, opts storage.UploadOptions) (*storage.UploadResult, error) {
	if f.failures > 0 {
		f.failures--
		_, _ = io.Copy(io.Discard, reader)
		return nil, errors.New("Error 503: backend unavailable")
	}
	return f.Storage.Upload(ctx, path, reader, size, opts)
}

func TestPut_RetryResendsFullPayload(t *testing.T) {
	backend := &flakyUploadBackend{Storage: newMemoryStore(), failures: 1}
	s := New(backend, "test-bucket")
	s.retryCfg = &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	ctx := context.Background()

	want := "thirty-seven bytes of document body.."
	art, err := s.Put(ctx, 1, "doc.txt", "text/plain", strings.NewReader(want), int64(len(want)))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if art.Size != int64(len(want)) {
		t.Errorf("Size = %d, want %d", art.Size, len(want))
	}

	_, rc, err := s.Get(ctx, 1, art.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != want {
		t.Errorf("content after retried upload = %q, want %q", string(data), want)
	}
}

// ---------------------------------------------------------------------------
// Degraded mode
// ---------------------------------------------------------------------------

// billingDeadBackend fails every call the way GCS does when the project's
// billing account is disabled.
type billingDeadBackend struct{}

func billingErr() error {
	return &googleapi.Error{
		Code:    403,
		Message: "The billing account for the owning project is disabled",
		Errors:  []googleapi.ErrorItem{{Reason: "accountDisabled"}},
	}
}

func (billingDeadBackend) Upload(_ context.Context, _ string, reader io.Reader, _ int64, _ storage.UploadOptions) (*storage.UploadResult, error) {
	// Consume the reader like a real backend that dies mid-stream.
	_, _ = io.Copy(io.Discard, reader)
	return nil, billingErr()
}
func (billingDeadBackend) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, billingErr()
}
func (billingDeadBackend) Delete(context.Context, string) error       { return billingErr() }
func (billingDeadBackend) Exists(context.Context, string) (bool, error) {
	return false, billingErr()
}
func (billingDeadBackend) GetMetadata(context.Context, string) (*storage.FileMetadata, error) {
	return nil, billingErr()
}
func (billingDeadBackend) List(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, billingErr()
}

func TestDegradedMode_SwitchesOnBillingError(t *testing.T) {
	s := New(billingDeadBackend{}, "dead-bucket")
	s.retryCfg = &retry.Config{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	ctx := context.Background()

	if s.Degraded() {
		t.Fatal("store degraded before any call")
	}

	// The failing upload is replayed against the in-memory fallback.
	art, err := s.Put(ctx, 1, "doc.txt", "text/plain", strings.NewReader("body"), 4)
	if err != nil {
		t.Fatalf("Put() during billing failure: %v", err)
	}
	if !s.Degraded() {
		t.Error("store did not enter degraded mode")
	}

	// Subsequent operations keep working from memory.
	_, rc, err := s.Get(ctx, 1, art.ID)
	if err != nil {
		t.Fatalf("Get() in degraded mode: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "body" {
		t.Errorf("content = %q, want body", string(data))
	}
}

func TestDegradedMode_NilBackendStartsDegraded(t *testing.T) {
	s := New(nil, "")
	if !s.Degraded() {
		t.Error("New(nil) should start degraded")
	}

	// Operations must still work against the fallback.
	if err := s.EnsureNamespace(context.Background(), 5); err != nil {
		t.Errorf("EnsureNamespace() in degraded mode: %v", err)
	}
}

func TestIsServiceDisabled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"billing reason", billingErr(), true},
		{"plain 403", &googleapi.Error{Code: 403, Message: "forbidden"}, false},
		{"transient 503", &googleapi.Error{Code: 503, Message: "unavailable"}, false},
		{"wrapped message", errors.New("project has no billing account"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := isServiceDisabled(tt.err); got != tt.want {
			t.Errorf("%s: isServiceDisabled() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// FormatSize
// ---------------------------------------------------------------------------

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{500, "500 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{500000, "488.28 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
