package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"quantity": body["quantity"]})
	}))
	defer srv.Close()

	var out struct {
		Quantity int `json:"quantity"`
	}
	if err := newAPIClient(srv.URL+"/", "tok").do(http.MethodPut, "/x", map[string]int{"quantity": 5}, &out); err != nil {
		t.Fatal(err)
	}
	if out.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", out.Quantity)
	}
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"cannot move from cancelled to confirmed","code":"INVALID_TRANSITION"}`))
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL, "").do(http.MethodPut, "/api/reservations/1", nil, nil)
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *apiError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != "INVALID_TRANSITION" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestParseID(t *testing.T) {
	if _, err := parseID("0"); err == nil {
		t.Error("parseID(0) accepted")
	}
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
}
