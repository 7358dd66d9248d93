package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

func TestParseTopics(t *testing.T) {
	all, err := parseTopics("")
	if err != nil || len(all) != 4 {
		t.Fatalf("parseTopics(\"\") = %v, %v", all, err)
	}
	got, err := parseTopics("inventory, reservations,inventory")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "inventory,reservations" {
		t.Errorf("topics = %v", got)
	}
	if _, err := parseTopics("orders"); err == nil {
		t.Error("unknown topic accepted")
	}
}

func TestRealtimeStreamsReservationInserts(t *testing.T) {
	api := newAPI(t, nil)
	token := api.signup("ws@example.com", domain.RoleClient, nil)

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime?topics=reservations&token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for api.hub.Subscribers(domain.TopicReservations) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := api.do("POST", "/api/reservations", token, map[string]any{
		"pharmacyId": 1, "medicationId": 3, "patientName": "Live", "quantity": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.ChangeEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Topic != domain.TopicReservations || ev.EventType != domain.EventInsert {
		t.Errorf("event = %s %s", ev.Topic, ev.EventType)
	}
	if !strings.Contains(string(ev.New), `"patientName":"Live"`) {
		t.Errorf("new image = %s", ev.New)
	}
}

func TestRealtimeRequiresToken(t *testing.T) {
	api := newAPI(t, nil)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/realtime", nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}
