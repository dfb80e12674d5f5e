package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-donate/internal/models"
)

const testSecret = "test-secret"

func protected() http.Handler {
	return AuthMiddleware(testSecret)(RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r.Context())
		w.Write([]byte(claims.Username))
	})))
}

func TestAuthMiddleware(t *testing.T) {
	now := time.Now()
	admin, err := IssueToken(testSecret, &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin}, now)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	viewer, _ := IssueToken(testSecret, &models.User{ID: 2, Username: "viewer", Role: "viewer"}, now)
	expired, _ := IssueToken(testSecret, &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin}, now.Add(-48*time.Hour))
	forged, _ := IssueToken("other-secret", &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin}, now)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid admin", "Bearer " + admin, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", admin, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/audit-logs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && rec.Body.String() != "admin" {
				t.Errorf("claims not in context, body %q", rec.Body.String())
			}
		})
	}
}
