package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/ratelimit"
)

// ClaimsContextKey is the context key under which Authenticate stores verified claims.
type ClaimsContextKey struct{}

// TokenVerifier validates a raw bearer token, including revocation
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.Claims, error)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

// Authenticate requires a bearer token. A missing or malformed header is 401;
// a token that fails verification is 403. With allowQuery the token may also
// come from the "token" query parameter, for browser websocket clients.
func Authenticate(verifier TokenVerifier, log *slog.Logger, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string
			authHeader := r.Header.Get("Authorization")
			switch {
			case authHeader != "":
				t, err := auth.ExtractToken(authHeader)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header")
					return
				}
				tokenString = t
			case allowQuery && r.URL.Query().Get("token") != "":
				tokenString = r.URL.Query().Get("token")
			default:
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			claims, err := verifier.VerifyToken(r.Context(), tokenString)
			if err != nil {
				log.Warn("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusForbidden, "FORBIDDEN", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers ranked below min with 403. It must run after Authenticate.
func RequireRole(min domain.Role, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !domain.HasAtLeastRole(claims.Role, min) {
				if auditLog != nil {
					auditLog.LogDenied(r.Context(), claims.UserID, "requires role "+string(min)+" for "+r.Method+" "+r.URL.Path)
				}
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits authenticated callers by user id and anonymous callers by IP
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r)
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				key = "user:" + claims.UserID
			}

			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StrictRateLimit applies a tight per-IP limit, used on signin
func StrictRateLimit(limiter *ratelimit.Limiter, maxReqs int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.AllowStrict(r.URL.Path+":"+ClientIP(r), maxReqs, window) {
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware writes an audit line for every mutating request
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			userID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
			}
			auditLog.LogAction(r.Context(), userID, r.Method, r.URL.Path, r.PathValue("id"), "initiated", "")

			next.ServeHTTP(w, r)
		})
	}
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ClaimsContextKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

// WithClaims stores claims the way Authenticate does
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey{}, claims)
}

// ClientIP returns the remote host of the request
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
