// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/storage"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// windowLister is the read side of the sample store.
type windowLister interface {
	Windows(limit int) ([]storage.Window, error)
}

// liveClient serializes writes to one websocket.
type liveClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *liveClient) send(ev telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

// eventHub fans MQTT events out to websocket clients and remembers the
// latest detection.
type eventHub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*liveClient]struct{}
	last    *telemetry.Event
}

func newEventHub(log *zap.Logger) *eventHub {
	return &eventHub{log: log, clients: map[*liveClient]struct{}{}}
}

func (h *eventHub) publish(ev telemetry.Event) {
	h.mu.Lock()
	if ev.Kind == telemetry.KindDetection {
		h.last = &ev
	}
	clients := make([]*liveClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(ev); err != nil {
			h.log.Debug("websocket send failed", zap.Error(err))
		}
	}
}

func (h *eventHub) lastDetection() (telemetry.Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return telemetry.Event{}, false
	}
	return *h.last, true
}

// handleWS streams every event to the client, starting with the latest
// detection if there is one.
func (h *eventHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &liveClient{conn: conn}
	if ev, ok := h.lastDetection(); ok {
		if err := client.send(ev); err != nil {
			return
		}
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
	}()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket error", zap.Error(err))
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("json encode error", zap.Error(err))
	}
}

// newWebHandler serves the live feed, the latest detection, the stored
// windows and the static dashboard from staticDir.
func newWebHandler(hub *eventHub, store windowLister, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWS)

	mux.HandleFunc("/api/detection", func(w http.ResponseWriter, r *http.Request) {
		ev, ok := hub.lastDetection()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, ev, hub.log)
	})

	mux.HandleFunc("/api/windows", func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		windows, err := store.Windows(limit)
		if err != nil {
			hub.log.Warn("window query failed", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, windows, hub.log)
	})

	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

// subscribeEvents feeds both telemetry topics into hub.
func subscribeEvents(client mqtt.Client, hub *eventHub, topics ...string) error {
	for _, topic := range topics {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var ev telemetry.Event
			if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
				hub.log.Warn("MQTT payload unmarshal error", zap.String("topic", msg.Topic()), zap.Error(err))
				return
			}
			hub.publish(ev)
		})
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		hub.log.Info("subscribed to MQTT topic", zap.String("topic", topic))
	}
	return nil
}

// RunWeb serves the dashboard for a running monitor.
func RunWeb(cfg *config.Config, log *zap.Logger) error {
	log = log.Named("web")

	client, err := telemetry.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	store, err := storage.OpenSQLite(cfg.DBPath, timing.Wall(), log)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := newEventHub(log)
	if err := subscribeEvents(client, hub, cfg.TopicDetection, cfg.TopicPhase); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Info("web server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, newWebHandler(hub, store, "web"))
}
