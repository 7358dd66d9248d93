package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reservations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := HTTPMetricsMiddleware(mux)

	counter := httpRequestsTotal.WithLabelValues("GET", "GET /api/reservations/{id}", "404")
	before := testutil.ToFloat64(counter)
	for _, id := range []string{"1", "2", "3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/reservations/"+id, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter grew by %v, want 3", got)
	}
}

func TestExpiredCounter(t *testing.T) {
	before := testutil.ToFloat64(reservationsExpired)
	ObserveExpired(4)
	if got := testutil.ToFloat64(reservationsExpired) - before; got != 4 {
		t.Errorf("expired grew by %v, want 4", got)
	}
}
