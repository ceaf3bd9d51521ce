package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"comandas/internal/model"
	"comandas/internal/notify"
	"comandas/internal/worker"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

const (
	msgSubscribeTotals   = "subscribe-totals"
	msgUnsubscribeTotals = "unsubscribe-totals"
)

type EventSource interface {
	Subscribe(id string) <-chan notify.Event
	Unsubscribe(id string)
	Counter
}

type TotalsSubscriber interface {
	Subscribe(obs worker.Observer) error
	Unsubscribe(id string)
	Counter
}

type clientMessage struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// wsObserver is one connected client. gorilla connections allow a single
// concurrent writer, so every write goes through mu.
type wsObserver struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (o *wsObserver) ID() string { return o.id }

func (o *wsObserver) PushTotals(_ context.Context, totals []model.TableTotal) error {
	return o.write(notify.Totals(totals))
}

func (o *wsObserver) write(v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return o.conn.WriteJSON(v)
}

func (o *wsObserver) ping() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// WebSocketHandler streams lifecycle events to every connection and table
// totals to connections that asked for them. Closing the connection drops
// both subscriptions.
func WebSocketHandler(events EventSource, totals TotalsSubscriber, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		obs := &wsObserver{id: uuid.NewString(), conn: conn}
		slog.Info("observer connected", "observer", obs.id, "remote", r.RemoteAddr)

		feed := events.Subscribe(obs.id)
		forwarded := make(chan struct{})
		go forward(obs, feed, forwarded)

		reason := readLoop(obs, totals)

		totals.Unsubscribe(obs.id)
		events.Unsubscribe(obs.id)
		<-forwarded
		_ = conn.Close()
		slog.Info("observer disconnected", "observer", obs.id, "reason", reason)
	}
}

func forward(obs *wsObserver, feed <-chan notify.Event, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-feed:
			if !ok {
				return
			}
			if err := obs.write(ev); err != nil {
				slog.Debug("event write failed", "observer", obs.id, "error", err)
			}
		case <-ticker.C:
			if err := obs.ping(); err != nil {
				slog.Debug("ping failed", "observer", obs.id, "error", err)
			}
		}
	}
}

func readLoop(obs *wsObserver, totals TotalsSubscriber) string {
	conn := obs.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err.Error()
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = obs.write(errorFrame{Event: "error", Error: "invalid json"})
			continue
		}

		switch msg.Type {
		case msgSubscribeTotals:
			if err := totals.Subscribe(obs); err != nil {
				_ = obs.write(errorFrame{Event: "error", Error: err.Error()})
			}
		case msgUnsubscribeTotals:
			totals.Unsubscribe(obs.id)
		default:
			_ = obs.write(errorFrame{Event: "error", Error: "unknown message type " + msg.Type})
		}
	}
}
