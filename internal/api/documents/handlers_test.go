package documents

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/maritime-ai/maritime-ai-backend/internal/artifacts"
	"github.com/maritime-ai/maritime-ai-backend/internal/middleware"
)

// newTestRouter serves the document routes over an in-memory artifact store.
// The auth middleware is replaced by a stub that injects the given tenant.
func newTestRouter(t *testing.T, maxUploadBytes int64) (*gin.Engine, *artifacts.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := artifacts.New(nil, "")
	h := NewHandler(store, maxUploadBytes)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if v := c.GetHeader("X-Test-Tenant"); v != "" {
			var id int64
			for _, ch := range v {
				id = id*10 + int64(ch-'0')
			}
			c.Set(middleware.ContextTenantIDKey, id)
		}
	})
	r.GET("/documents", h.List)
	r.POST("/documents", h.Upload)
	r.POST("/documents/batch", h.UploadBatch)
	r.GET("/documents/:id/download", h.Download)
	r.DELETE("/documents/:id", h.Delete)
	return r, store
}

type filePart struct {
	field, name, content string
}

func multipartBody(t *testing.T, parts []filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, p.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func doRequest(router *gin.Engine, method, path, tenant string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tenant != "" {
		req.Header.Set("X-Test-Tenant", tenant)
	}
	router.ServeHTTP(w, req)
	return w
}

func uploadOne(t *testing.T, router *gin.Engine, tenant, name, content string) string {
	t.Helper()
	body, ct := multipartBody(t, []filePart{{"file", name, content}})
	w := doRequest(router, http.MethodPost, "/documents", tenant, body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Document.ID == "" {
		t.Fatal("upload response missing document id")
	}
	return resp.Document.ID
}

func TestUpload_ThenListAndDownload(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	id := uploadOne(t, router, "1", "report.pdf", "quarterly inspection data")

	w := doRequest(router, http.MethodGet, "/documents", "1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var list struct {
		Count     int `json:"count"`
		Documents []struct {
			Name          string `json:"name"`
			SizeFormatted string `json:"sizeFormatted"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Documents[0].Name != "report.pdf" {
		t.Fatalf("list = %+v, want one report.pdf", list)
	}
	if list.Documents[0].SizeFormatted == "" {
		t.Error("sizeFormatted missing from listing")
	}

	w = doRequest(router, http.MethodGet, "/documents/"+id+"/download", "1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "quarterly inspection data" {
		t.Errorf("downloaded body = %q, want original bytes", got)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "report.pdf") {
		t.Errorf("Content-Disposition = %q, want attachment naming report.pdf", cd)
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	body, ct := multipartBody(t, []filePart{{"wrong-field", "report.pdf", "data"}})
	w := doRequest(router, http.MethodPost, "/documents", "1", body, ct)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpload_ExceedsSizeCap(t *testing.T) {
	router, _ := newTestRouter(t, 10)

	body, ct := multipartBody(t, []filePart{{"file", "big.bin", "this is more than ten bytes"}})
	w := doRequest(router, http.MethodPost, "/documents", "1", body, ct)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for oversized upload", w.Code)
	}
}

func TestUpload_Unauthenticated(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	body, ct := multipartBody(t, []filePart{{"file", "report.pdf", "data"}})
	w := doRequest(router, http.MethodPost, "/documents", "", body, ct)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUploadBatch_PartialFailure(t *testing.T) {
	router, _ := newTestRouter(t, 15)

	body, ct := multipartBody(t, []filePart{
		{"files", "a.txt", "short"},
		{"files", "b.txt", "this one is far too large for the cap"},
		{"files", "c.txt", "also short"},
	})
	w := doRequest(router, http.MethodPost, "/documents/batch", "1", body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Success  bool              `json:"success"`
		Uploaded []json.RawMessage `json:"uploaded"`
		Errors   []struct {
			Name string `json:"name"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Error("success = true despite a failed file")
	}
	if len(resp.Uploaded) != 2 || len(resp.Errors) != 1 {
		t.Fatalf("uploaded/errors = %d/%d, want 2/1", len(resp.Uploaded), len(resp.Errors))
	}
	if resp.Errors[0].Name != "b.txt" {
		t.Errorf("failed file = %q, want b.txt", resp.Errors[0].Name)
	}
}

func TestDelete_ThenGone(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	id := uploadOne(t, router, "1", "report.pdf", "data")

	w := doRequest(router, http.MethodDelete, "/documents/"+id, "1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/documents/"+id+"/download", "1", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("download after delete = %d, want 404", w.Code)
	}
}

func TestCrossTenant_DocumentsInvisible(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	id := uploadOne(t, router, "1", "secret.pdf", "tenant one only")

	w := doRequest(router, http.MethodGet, "/documents", "2", nil, "")
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 0 {
		t.Errorf("tenant 2 sees %d documents, want 0", list.Count)
	}

	w = doRequest(router, http.MethodGet, "/documents/"+id+"/download", "2", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-tenant download = %d, want 404", w.Code)
	}

	// Deletion of a foreign document is refused outright, not masked as
	// missing: the id demonstrably resolved to another tenant's data.
	w = doRequest(router, http.MethodDelete, "/documents/"+id, "2", nil, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-tenant delete = %d, want 403", w.Code)
	}

	// Document untouched for its owner.
	w = doRequest(router, http.MethodGet, "/documents/"+id+"/download", "1", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("owner download after foreign delete attempt = %d, want 200", w.Code)
	}
}
