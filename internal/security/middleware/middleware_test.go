package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/ratelimit"
)

type stubVerifier struct {
	claims *auth.Claims
}

func (s stubVerifier) VerifyToken(_ context.Context, token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaimsFromContext(r.Context()) == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateStatuses(t *testing.T) {
	v := stubVerifier{claims: &auth.Claims{UserID: "u1", Role: domain.RoleClient}}
	h := Authenticate(v, quiet, false)(okHandler())

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusForbidden},
		{"good token", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/reservations", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAuthenticateQueryToken(t *testing.T) {
	v := stubVerifier{claims: &auth.Claims{UserID: "u1", Role: domain.RoleClient}}

	req := httptest.NewRequest(http.MethodGet, "/api/realtime?token=good", nil)
	rec := httptest.NewRecorder()
	Authenticate(v, quiet, true)(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected query token to be accepted, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Authenticate(v, quiet, false)(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected query token to be ignored, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RolePharmacist, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/reservations/bulk", nil)
	req = req.WithContext(WithClaims(req.Context(), &auth.Claims{UserID: "u1", Role: domain.RoleClient}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rec.Code)
	}

	req = req.WithContext(WithClaims(context.Background(), &auth.Claims{UserID: "u2", Role: domain.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to pass, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/pharmacies", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestSanitizeInputs(t *testing.T) {
	h := SanitizeInputs(quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/reservations?search=O'Brien", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected apostrophe to be accepted, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/reservations?search=%3Cscript%3E", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected markup to be rejected, got %d", rec.Code)
	}
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		want        int
	}{
		{"json body", http.MethodPost, "/api/reservations", `{"quantity":1}`, "application/json", http.StatusOK},
		{"json with charset", http.MethodPut, "/api/reservations/1", `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"form body", http.MethodPost, "/api/reservations", "quantity=1", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"missing type", http.MethodPost, "/api/auth/signin", `{}`, "", http.StatusUnsupportedMediaType},
		{"lookalike type", http.MethodPost, "/api/auth/signin", `{}`, "text/application/json-ish", http.StatusUnsupportedMediaType},
		{"bodyless approve", http.MethodPut, "/api/pharmacies/3/approve", "", "", http.StatusOK},
		{"get ignores type", http.MethodGet, "/api/reservations", "", "text/plain", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
