package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("test-secret")

type stubPerms struct {
	byRole map[string][]string
	calls  int
}

func (s *stubPerms) GetPermissionsByRoleName(_ context.Context, role string) ([]string, error) {
	s.calls++
	return s.byRole[role], nil
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func authRouter(a *Auth, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{a.Authenticate()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		dept := ""
		if v, ok := c.Get(CtxDepartmentID); ok {
			dept = v.(uuid.UUID).String()
		}
		c.JSON(http.StatusOK, gin.H{"role": c.GetString(CtxUserRole), "department_id": dept})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r *gin.Engine, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	a := NewAuth(testSecret, &stubPerms{}, false, time.Hour, 24*time.Hour)
	r := authRouter(a)
	dept := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", signToken(t, []byte("other"), jwt.MapClaims{"sub": uuid.NewString(), "role": "admin", "exp": exp}), http.StatusUnauthorized},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "admin", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized},
		{"bad subject", signToken(t, testSecret, jwt.MapClaims{"sub": "42", "role": "admin", "exp": exp}), http.StatusUnauthorized},
		{"no role", signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "exp": exp}), http.StatusForbidden},
		{"valid", signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "head_of_department", "department_id": dept.String(), "exp": exp}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(r, tt.token)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestAuthenticateFromCookie(t *testing.T) {
	a := NewAuth(testSecret, &stubPerms{}, false, time.Hour, 24*time.Hour)
	r := authRouter(a)
	tok := signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "trainee", "exp": time.Now().Add(time.Hour).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: tok})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequirePermissionCaches(t *testing.T) {
	perms := &stubPerms{byRole: map[string][]string{"training_director": {"matrix.read", "matrix.review"}}}
	a := NewAuth(testSecret, perms, false, time.Hour, 24*time.Hour)
	r := authRouter(a, a.RequirePermission("matrix.review"))
	exp := time.Now().Add(time.Hour).Unix()

	director := signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "training_director", "exp": exp})
	for i := 0; i < 3; i++ {
		if rec := get(r, director); rec.Code != http.StatusOK {
			t.Fatalf("director: status = %d", rec.Code)
		}
	}
	if perms.calls != 1 {
		t.Errorf("permission source hit %d times, want 1", perms.calls)
	}

	trainee := signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "trainee", "exp": exp})
	if rec := get(r, trainee); rec.Code != http.StatusForbidden {
		t.Fatalf("trainee: status = %d, want 403", rec.Code)
	}

	a.ClearPermissionCache("")
	get(r, director)
	if perms.calls != 3 {
		t.Errorf("cache not cleared, source hit %d times", perms.calls)
	}
}

func TestRequireRole(t *testing.T) {
	a := NewAuth(testSecret, &stubPerms{}, false, time.Hour, 24*time.Hour)
	r := authRouter(a, a.RequireRole("admin"))
	exp := time.Now().Add(time.Hour).Unix()

	if rec := get(r, signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "admin", "exp": exp})); rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d", rec.Code)
	}
	if rec := get(r, signToken(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "role": "trainee", "exp": exp})); rec.Code != http.StatusForbidden {
		t.Errorf("trainee: status = %d", rec.Code)
	}
}
