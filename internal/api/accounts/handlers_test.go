package accounts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/maritime-ai/maritime-ai-backend/internal/auth"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/repositories"
	"github.com/maritime-ai/maritime-ai-backend/internal/middleware"
)

var (
	userCols   = []string{"email", "password_hash", "name", "tenant_id", "created_at", "updated_at"}
	tenantCols = []string{"id", "name", "created_at", "updated_at"}
)

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *auth.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	svc := auth.NewService(
		repositories.NewUserRepository(db),
		repositories.NewTenantRepository(sqlx.NewDb(db, "postgres")),
		tokens,
		nil,
		bcrypt.MinCost,
	)
	h := NewHandler(svc)

	r := gin.New()
	r.POST("/login", h.Login)
	r.POST("/register", h.Register)
	r.GET("/me", middleware.AuthMiddleware(tokens), h.Me)
	return r, mock, tokens
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestLogin_Success(t *testing.T) {
	router, mock, _ := newTestRouter(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("kim@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("kim@acme.com", hashFor(t, "s3cret-pass"), "Kim", int64(1), now, now))
	mock.ExpectQuery("SELECT (.+) FROM tenants").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(tenantCols).
			AddRow(int64(1), "Acme", now, now))

	w := postJSON(t, router, "/login", gin.H{"email": "kim@acme.com", "password": "s3cret-pass"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			TenantID   int64  `json:"tenantId"`
			TenantName string `json:"tenantName"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Token == "" {
		t.Error("expected success with a session token")
	}
	if resp.User.TenantID != 1 || resp.User.TenantName != "Acme" {
		t.Errorf("tenant = %d/%q, want 1/Acme", resp.User.TenantID, resp.User.TenantName)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	router, mock, _ := newTestRouter(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("kim@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("kim@acme.com", hashFor(t, "s3cret-pass"), "Kim", int64(1), now, now))

	w := postJSON(t, router, "/login", gin.H{"email": "kim@acme.com", "password": "wrong"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	router, mock, _ := newTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("ghost@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := postJSON(t, router, "/login", gin.H{"email": "ghost@acme.com", "password": "whatever"})

	// Same status and body shape as a wrong password, so responses cannot be
	// used to enumerate accounts.
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postJSON(t, router, "/login", gin.H{"email": "not-an-email"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegister_NewTenant(t *testing.T) {
	router, mock, _ := newTestRouter(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("lee@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery("SELECT (.+) FROM tenants").
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows(tenantCols))
	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(7), now, now))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(t, router, "/register", gin.H{
		"email":      "lee@acme.com",
		"password":   "longenough",
		"name":       "Lee",
		"tenantName": "Acme",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			TenantID int64 `json:"tenantId"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.User.TenantID != 7 {
		t.Errorf("tenantId = %d, want 7", resp.User.TenantID)
	}
	if resp.Token == "" {
		t.Error("expected a session token after registration")
	}
}

func TestRegister_ExistingTenant(t *testing.T) {
	router, mock, _ := newTestRouter(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("second@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery("SELECT (.+) FROM tenants").
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows(tenantCols).
			AddRow(int64(3), "Acme", now, now))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(t, router, "/register", gin.H{
		"email":      "second@acme.com",
		"password":   "longenough",
		"name":       "Park",
		"tenantName": "Acme",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	router, mock, _ := newTestRouter(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("kim@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("kim@acme.com", "hash", "Kim", int64(1), now, now))

	w := postJSON(t, router, "/register", gin.H{
		"email":      "kim@acme.com",
		"password":   "longenough",
		"name":       "Kim",
		"tenantName": "Acme",
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postJSON(t, router, "/register", gin.H{
		"email":      "kim@acme.com",
		"password":   "short",
		"name":       "Kim",
		"tenantName": "Acme",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMe_ReturnsProfile(t *testing.T) {
	router, mock, tokens := newTestRouter(t)
	now := time.Now()

	token, err := tokens.Generate("kim@acme.com", "Kim", 1, "Acme")
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("kim@acme.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("kim@acme.com", "hash", "Kim", int64(1), now, now))
	mock.ExpectQuery("SELECT (.+) FROM tenants").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(tenantCols).
			AddRow(int64(1), "Acme", now, now))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			Email      string `json:"email"`
			TenantName string `json:"tenantName"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.User.Email != "kim@acme.com" || resp.User.TenantName != "Acme" {
		t.Errorf("profile = %+v, want kim@acme.com/Acme", resp.User)
	}
}

func TestMe_NoToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
