// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stream

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for h.Viewers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer not registered")
		}
		time.Sleep(time.Millisecond)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHubPublish(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h)

	frame := []byte{0x89, 'P', 'N', 'G'}
	if err := h.PublishFrame(frame); err != nil {
		t.Fatalf("PublishFrame: %v", err)
	}
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.BinaryMessage || !bytes.Equal(data, frame) {
		t.Errorf("got kind %d data %v, want binary %v", kind, data, frame)
	}

	want := State{Frame: 3, Bodies: []BodyState{{UUID: "u", Name: "ball", Position: [2]float32{1, 2}, Rotate: 90}}}
	if err := h.PublishState(want); err != nil {
		t.Fatalf("PublishState: %v", err)
	}
	var got State
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Frame != want.Frame || len(got.Bodies) != 1 || got.Bodies[0].Position != want.Bodies[0].Position || got.Bodies[0].Rotate != 90 {
		t.Errorf("state = %+v, want %+v", got, want)
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	h.Close()
	h.Close()
	if h.Viewers() != 0 {
		t.Errorf("Viewers = %d after Close", h.Viewers())
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage after Close = %v, want normal closure", err)
	}
	if err := h.PublishFrame(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishFrame after Close = %v, want ErrClosed", err)
	}
}

func TestHubViewerDisconnect(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h)
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.Viewers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer not removed after disconnect")
		}
		time.Sleep(time.Millisecond)
	}
	if err := h.PublishFrame([]byte{1}); err != nil {
		t.Errorf("PublishFrame without viewers = %v", err)
	}
}
