package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/services"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &services.ValidationError{Field: "user_id", Message: "is required"}, http.StatusBadRequest},
		{"not found", &services.NotFoundError{Resource: "booking", ID: "b1"}, http.StatusNotFound},
		{"duplicate booking", &services.ConflictError{Message: "already booked", Code: http.StatusBadRequest}, http.StatusBadRequest},
		{"team fully paid", &services.ConflictError{Message: "all members paid"}, http.StatusConflict},
		{"unclassified", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var body helpers.ApiResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Error == "" {
				t.Errorf("unexpected body %+v", body)
			}
			if tt.want == http.StatusInternalServerError && body.Error != "Internal server error" {
				t.Errorf("internal errors must not leak, got %q", body.Error)
			}
		})
	}
}

func TestAuthorized(t *testing.T) {
	owner := &helpers.UserClaims{CustomClaims: &helpers.CustomClaims{Role: "authenticated"}, UserID: "u1"}
	service := &helpers.UserClaims{CustomClaims: &helpers.CustomClaims{Role: "service_role"}, UserID: "svc"}

	tests := []struct {
		name   string
		claims interface{}
		userID string
		ok     bool
		status int
	}{
		{"no token", nil, "u1", true, http.StatusOK},
		{"owner", owner, "u1", true, http.StatusOK},
		{"other user", owner, "u2", false, http.StatusForbidden},
		{"service role", service, "u2", true, http.StatusOK},
		{"bad claims", "not-claims", "u1", false, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.claims != nil {
				c.Set("user", tt.claims)
			}
			if got := authorized(c, tt.userID); got != tt.ok {
				t.Errorf("authorized = %v, want %v", got, tt.ok)
			}
			if !tt.ok && w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestDashboardTarget(t *testing.T) {
	got := dashboardTarget("http://localhost:5173/dashboard?tab=events", "success", "ORDER_1")
	want := "http://localhost:5173/dashboard?order_id=ORDER_1&payment=success&tab=events"
	if got != want {
		t.Errorf("dashboardTarget = %q, want %q", got, want)
	}
}
