package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestWS starts a throwaway server and returns the server-side end of
// a WebSocket connection. The client side is closed immediately.
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	_ = clientConn.Close()

	select {
	case serverConn := <-connCh:
		return srv, serverConn
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

func TestClientSendReportsSlowWhenQueueFull(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()
	defer serverConn.Close()

	c := newClient(serverConn, NewHub(HubConfig{}), ClientConfig{QueueSize: 1})
	if err := c.Send(context.Background(), []byte("1")); err != nil {
		t.Fatalf("first Send: %v", err)
	}

	// The full queue is reported at once, not after the caller's deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	start := time.Now()
	if err := c.Send(ctx, []byte("2")); !errors.Is(err, ErrSlowSubscriber) {
		t.Fatalf("Send on full queue = %v, want ErrSlowSubscriber", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Send on full queue took %v, want immediate", elapsed)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()
	defer serverConn.Close()

	c := newClient(serverConn, NewHub(HubConfig{}), ClientConfig{})
	c.Close()
	c.Close()
	if err := c.Send(context.Background(), []byte("x")); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("Send after Close = %v, want ErrClientClosed", err)
	}
}

func TestClientIDsAreUnique(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()
	defer serverConn.Close()

	hub := NewHub(HubConfig{})
	a := newClient(serverConn, hub, ClientConfig{})
	b := newClient(serverConn, hub, ClientConfig{})
	if a.ID() == b.ID() || a.ID() == "" {
		t.Errorf("ids %q and %q should be distinct and non-empty", a.ID(), b.ID())
	}
}

// When writePump hits a write error the client must drop out of the hub.
func TestWritePumpLeavesHubOnWriteError(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()

	hub := NewHub(HubConfig{})
	c := newClient(serverConn, hub, ClientConfig{})
	if err := hub.Join(c); err != nil {
		t.Fatal(err)
	}

	serverConn.Close()
	c.send <- []byte(`{"type":"EMG"}`)
	go c.writePump()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client not removed after write error; Count = %d", hub.Count())
}
