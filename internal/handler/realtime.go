package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/realtime"
)

const (
	pingInterval = 15 * time.Second
	pongWait     = 2*pingInterval + writeWait
	writeWait    = 5 * time.Second
)

// RealtimeHandler streams change events over a WebSocket
type RealtimeHandler struct {
	hub            *realtime.Hub
	allowedOrigins []string
	logger         *slog.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, allowedOrigins []string, logger *slog.Logger) *RealtimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeHandler{hub: hub, allowedOrigins: allowedOrigins, logger: logger}
}

func (h *RealtimeHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if allowed == "*" || origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// parseTopics reads a comma separated topic list; empty means every topic
func parseTopics(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{domain.TopicReservations, domain.TopicPharmacies, domain.TopicInventory, domain.TopicNotifications}, nil
	}
	seen := map[string]bool{}
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if !domain.KnownTopic(t) {
			return nil, fmt.Errorf("%w: unknown topic %q", domain.ErrValidation, t)
		}
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	return topics, nil
}

// ServeHTTP handles GET /api/realtime?topics=reservations,inventory
func (h *RealtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	// the request context is not cancelled by a client disconnect once hijacked
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var mu sync.Mutex
	send := func(ev domain.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(ev); err != nil {
			h.logger.Debug("realtime write failed", slog.String("error", err.Error()))
			cancel()
		}
	}
	for _, topic := range topics {
		sub := h.hub.SubscribeFunc(ctx, topic, send)
		defer sub.Close()
	}
	h.logger.Debug("realtime stream opened", slog.String("topics", strings.Join(topics, ",")))

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket closed", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
