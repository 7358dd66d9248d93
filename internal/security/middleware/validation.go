package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"
)

// ValidateJSONContentType rejects write requests whose body is not JSON with
// 415. Bodyless writes such as PUT /api/pharmacies/{id}/approve or
// POST /api/auth/signout carry no payload and pass through.
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !carriesBody(r) {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				log.Warn("non-json request body rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
				)
				writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// carriesBody reports whether r is a write with a payload. A chunked body
// has ContentLength -1 and counts as a payload.
func carriesBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

// SanitizeInputs rejects query parameters carrying markup characters and
// paths with traversal segments. Apostrophes stay allowed since patient and
// pharmacy names contain them.
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dangerousChars := []string{"<", ">", "\""}
			for key, values := range r.URL.Query() {
				for _, val := range values {
					for _, char := range dangerousChars {
						if strings.Contains(val, char) {
							log.Warn("suspicious input detected",
								slog.String("path", r.URL.Path),
								slog.String("param", key),
								slog.String("pattern", char),
							)
							writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input: dangerous characters detected")
							return
						}
					}
				}
			}

			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path pattern detected",
					slog.String("path", r.URL.Path),
				)
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid path")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
