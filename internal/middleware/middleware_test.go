package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, subject, role string, expires time.Time) string {
	t.Helper()
	claims := helpers.CustomClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func newRouter(t *testing.T, required, serviceOnly bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator, err := helpers.NewTokenValidator("", testSecret, logger)
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}

	r := gin.New()
	r.Use(RequestID(), Auth(validator, required, logger))
	if serviceOnly {
		r.Use(ServiceRole(required))
	}
	r.GET("/whoami", func(c *gin.Context) {
		raw, ok := c.Get("user")
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, raw.(*helpers.UserClaims).UserID)
	})
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	valid := signToken(t, "u1", "authenticated", time.Now().Add(time.Hour))
	expired := signToken(t, "u1", "authenticated", time.Now().Add(-time.Hour))

	tests := []struct {
		name     string
		required bool
		token    string
		status   int
		body     string
	}{
		{"optional without token", false, "", http.StatusOK, "anonymous"},
		{"required without token", true, "", http.StatusUnauthorized, ""},
		{"valid token", true, valid, http.StatusOK, "u1"},
		{"expired token", false, expired, http.StatusUnauthorized, ""},
		{"garbage token", false, "not.a.jwt", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newRouter(t, tt.required, false), tt.token)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestServiceRole(t *testing.T) {
	user := signToken(t, "u1", "authenticated", time.Now().Add(time.Hour))
	service := signToken(t, "svc", "service_role", time.Now().Add(time.Hour))

	if w := get(newRouter(t, true, true), user); w.Code != http.StatusForbidden {
		t.Errorf("user token: status %d, want 403", w.Code)
	}
	if w := get(newRouter(t, true, true), service); w.Code != http.StatusOK {
		t.Errorf("service token: status %d, want 200", w.Code)
	}
	if w := get(newRouter(t, true, true), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", w.Code)
	}
	if w := get(newRouter(t, false, true), ""); w.Code != http.StatusOK {
		t.Errorf("no token without enforcement: status %d, want 200", w.Code)
	}
}
