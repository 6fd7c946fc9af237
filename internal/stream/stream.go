// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package stream broadcasts rendered frames and body states to WebSocket
// viewers.
//
// Frames are sent as binary messages holding a PNG image; body states as
// JSON text messages. Slow viewers drop messages instead of stalling the
// simulation.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned when publishing to a closed hub.
var ErrClosed = errors.New("stream: hub closed")

const (
	// DefaultQueue is the number of pending messages per viewer.
	DefaultQueue = 4
	// DefaultWriteTimeout bounds a single message write.
	DefaultWriteTimeout = 2 * time.Second
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger updates the package-level logger. Called from sdfscene.SetLogger.
// Pass nil to disable logging.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// BodyState is the published state of one physics body.
type BodyState struct {
	UUID     string     `json:"uuid"`
	Name     string     `json:"name"`
	Position [2]float32 `json:"position"`
	Rotate   float32    `json:"rotate"`
	Velocity [2]float32 `json:"velocity"`
	Contacts []string   `json:"contacts,omitempty"`
}

// State is the JSON message sent after each physics step.
type State struct {
	Frame  float32     `json:"frame"`
	Bodies []BodyState `json:"bodies"`
}

type message struct {
	kind int
	data []byte
	json any
}

// viewer is one connection. Writes happen only on its own goroutine.
type viewer struct {
	conn *websocket.Conn
	send chan message
}

// Hub fans messages out to every connected viewer.
//
// Thread safety: Hub is safe for concurrent use.
type Hub struct {
	upgrader websocket.Upgrader
	timeout  time.Duration
	queue    int

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	closed  bool
	wg      sync.WaitGroup

	dropped atomic.Uint64
}

// NewHub creates a hub with DefaultQueue and DefaultWriteTimeout.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		timeout: DefaultWriteTimeout,
		queue:   DefaultQueue,
		viewers: make(map[*viewer]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the viewer until it
// disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slogger().Warn("stream: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	v := &viewer{conn: conn, send: make(chan message, h.queue)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.viewers[v] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()
	slogger().Info("stream: viewer connected", "remote", conn.RemoteAddr())

	go h.write(v)
	// Viewers only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(v)
}

func (h *Hub) write(v *viewer) {
	defer h.wg.Done()
	defer v.conn.Close()
	for m := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(h.timeout))
		var err error
		if m.json != nil {
			err = v.conn.WriteJSON(m.json)
		} else {
			err = v.conn.WriteMessage(m.kind, m.data)
		}
		if err != nil {
			slogger().Debug("stream: write failed", "remote", v.conn.RemoteAddr(), "err", err)
			h.remove(v)
			return
		}
	}
	_ = v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(h.timeout))
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.send)
	}
}

func (h *Hub) publish(m message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for v := range h.viewers {
		select {
		case v.send <- m:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// PublishFrame sends an encoded PNG frame to every viewer.
func (h *Hub) PublishFrame(png []byte) error {
	return h.publish(message{kind: websocket.BinaryMessage, data: png})
}

// PublishState sends s as JSON to every viewer.
func (h *Hub) PublishState(s State) error {
	return h.publish(message{json: s})
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Dropped returns the number of messages skipped for slow viewers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every viewer and waits for their writers to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for v := range h.viewers {
		delete(h.viewers, v)
		close(v.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
