package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/nebula-core/internal/robot"
)

// wsPeer is a WebSocket robot that records every text frame it receives.
type wsPeer struct {
	srv *httptest.Server

	mu       sync.Mutex
	messages []map[string]any
	conns    int

	// closeAfter, when > 0, makes the peer hang up after that many frames.
	closeAfter int
}

func newWSPeer(t *testing.T, closeAfter int) *wsPeer {
	t.Helper()

	p := &wsPeer{closeAfter: closeAfter}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		p.mu.Lock()
		p.conns++
		p.mu.Unlock()

		received := 0
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err == nil {
				p.mu.Lock()
				p.messages = append(p.messages, msg)
				p.mu.Unlock()
			}
			received++
			if p.closeAfter > 0 && received >= p.closeAfter {
				return
			}
		}
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *wsPeer) url() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http")
}

func (p *wsPeer) counts() (conns, messages int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns, len(p.messages)
}

func wsRobot(url string) *robot.Config {
	return &robot.Config{ID: "ws-1", Name: "Socket robot", Protocol: robot.ProtocolWebSocket, Enabled: true, URL: url}
}

func TestWebSocketConnector_ReusesSocket(t *testing.T) {
	peer := newWSPeer(t, 0)
	c := NewWebSocketConnector()
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup

	r := wsRobot(peer.url())
	for i := 0; i < 3; i++ {
		if !c.Deliver(context.Background(), r, map[string]any{"signalType": "nod_head", "n": i}) {
			t.Fatalf("Deliver() #%d = false, want true", i)
		}
	}

	waitFor(t, "three frames", func() bool {
		_, n := peer.counts()
		return n == 3
	})
	if conns, _ := peer.counts(); conns != 1 {
		t.Errorf("peer saw %d connections, want 1", conns)
	}
	if !c.Connected(r.ID) {
		t.Error("Connected() = false after successful delivery")
	}

	peer.mu.Lock()
	first := peer.messages[0]
	peer.mu.Unlock()
	if first["signalType"] != "nod_head" {
		t.Errorf("first frame = %v", first)
	}
}

func TestWebSocketConnector_ReconnectsAfterPeerCloses(t *testing.T) {
	peer := newWSPeer(t, 1)
	c := NewWebSocketConnector()
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup

	r := wsRobot(peer.url())
	if !c.Deliver(context.Background(), r, map[string]any{"n": 1}) {
		t.Fatal("first Deliver() = false")
	}

	// The peer hangs up after one frame; the read loop drops the socket.
	waitFor(t, "socket dropped", func() bool { return !c.Connected(r.ID) })

	if !c.Deliver(context.Background(), r, map[string]any{"n": 2}) {
		t.Fatal("Deliver() after peer close = false, want reconnect")
	}
	waitFor(t, "second frame", func() bool {
		_, n := peer.counts()
		return n == 2
	})
	if conns, _ := peer.counts(); conns != 2 {
		t.Errorf("peer saw %d connections, want 2", conns)
	}
}

func TestWebSocketConnector_Invalidate(t *testing.T) {
	peer := newWSPeer(t, 0)
	c := NewWebSocketConnector()
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup

	r := wsRobot(peer.url())
	if !c.Deliver(context.Background(), r, map[string]any{}) {
		t.Fatal("Deliver() = false")
	}

	c.Invalidate(r.ID)
	if c.Connected(r.ID) {
		t.Error("Connected() = true after Invalidate")
	}

	if !c.Deliver(context.Background(), r, map[string]any{}) {
		t.Fatal("Deliver() after Invalidate = false")
	}
	waitFor(t, "second connection", func() bool {
		conns, _ := peer.counts()
		return conns == 2
	})
}

func TestWebSocketConnector_Unreachable(t *testing.T) {
	peer := newWSPeer(t, 0)
	url := peer.url()
	peer.srv.Close()

	logger := &recordingLogger{}
	c := NewWebSocketConnector()
	c.SetLogger(logger)

	r := wsRobot(url)
	if c.Deliver(context.Background(), r, map[string]any{}) {
		t.Error("Deliver() to closed server = true, want false")
	}
	if c.Connected(r.ID) {
		t.Error("failed dial must not leave a cached socket")
	}
	if logger.count() == 0 {
		t.Error("failed connect was not logged")
	}
}

func TestWebSocketConnector_NotAWebSocket(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewWebSocketConnector()
	if c.Deliver(context.Background(), wsRobot("ws"+strings.TrimPrefix(srv.URL, "http")), map[string]any{}) {
		t.Error("Deliver() to plain HTTP endpoint = true, want false")
	}
}
