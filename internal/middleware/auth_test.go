package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/charrank/internal/auth"
)

const authTestSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func authedHandler(t *testing.T, svc *auth.JWTService) (http.Handler, *string) {
	t.Helper()
	var capturedUserID string
	handler := RequireAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &capturedUserID
}

func TestRequireAuthValidToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, err := svc.IssueToken("user-1")
	if err != nil {
		t.Fatal(err)
	}

	handler, capturedUserID := authedHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/rankings/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if *capturedUserID != "user-1" {
		t.Errorf("user ID in context = %q, want user-1", *capturedUserID)
	}
}

func TestRequireAuthQueryTokenForWebSocket(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, err := svc.IssueToken("user-2")
	if err != nil {
		t.Fatal(err)
	}

	handler, capturedUserID := authedHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if *capturedUserID != "user-2" {
		t.Errorf("user ID in context = %q, want user-2", *capturedUserID)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	other := auth.NewJWTService("a-different-secret-entirely-here")
	wrongToken, err := other.IssueToken("user-1")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no token", func(r *http.Request) {}},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}},
		{"garbage token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.token")
		}},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+wrongToken)
		}},
	}

	handler, _ := authedHandler(t, svc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rankings/me", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `"code":"unauthorized"`) {
				t.Errorf("body = %q, want unauthorized error envelope", rr.Body.String())
			}
		})
	}
}
