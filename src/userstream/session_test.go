package userstream

// Test index:
//  1. TestSessionDeliversMessages checks dial path and handler delivery.
//  2. TestSessionCloseIdempotent ensures Close is safe before open and repeatedly.
//  3. TestSessionKeepAlive verifies the renewal goroutine calls the renewer and stops on Close.
//  4. TestParseEnvelope covers the event envelope and malformed payloads.
//  5. TestIsTerminal checks terminal status classification.

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

type countingRenewer struct {
	calls atomic.Int64
}

func (r *countingRenewer) KeepAliveListenKey(context.Context) error {
	r.calls.Add(1)
	return nil
}

func newStreamServer(t *testing.T, messages []string) (*httptest.Server, chan string) {
	t.Helper()

	paths := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return server, paths
}

func newTestSession(interval time.Duration, renewer KeyRenewer) *Session {
	log, _ := logrustest.NewNullLogger()
	return &Session{
		log:               logrus.NewEntry(log),
		dialer:            &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		renewer:           renewer,
		keepAliveInterval: interval,
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSessionDeliversMessages(t *testing.T) {
	server, paths := newStreamServer(t, []string{`{"eventType":"A"}`, `{"eventType":"B"}`})
	defer server.Close()

	var mu sync.Mutex
	var received []string
	got := make(chan struct{})

	session := newTestSession(time.Hour, &countingRenewer{})
	err := session.Open(context.Background(), server.URL[len("http"):], "", nil)
	if err == nil {
		t.Fatalf("expected error for nil handler")
	}

	err = session.Open(context.Background(), wsURL(server), "test-listen-key", func(msg []byte) {
		mu.Lock()
		received = append(received, string(msg))
		if len(received) == 2 {
			close(got)
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer session.Close()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for messages")
	}

	if path := <-paths; path != "/ws/test-listen-key" {
		t.Fatalf("expected dial path /ws/test-listen-key, got %s", path)
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0] != `{"eventType":"A"}` || received[1] != `{"eventType":"B"}` {
		t.Fatalf("unexpected messages: %v", received)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	// Close before any Open must be a no-op.
	session := newTestSession(time.Hour, &countingRenewer{})
	session.Close()
	session.Close()

	server, _ := newStreamServer(t, nil)
	defer server.Close()

	session = newTestSession(time.Hour, &countingRenewer{})
	if err := session.Open(context.Background(), wsURL(server), "key", func([]byte) {}); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	session.Close()
	session.Close()

	// A closed session must refuse to reopen; keys are never reused.
	if err := session.Open(context.Background(), wsURL(server), "key", func([]byte) {}); err == nil {
		t.Fatalf("expected reopen of closed session to fail")
	}
}

func TestSessionKeepAlive(t *testing.T) {
	server, _ := newStreamServer(t, nil)
	defer server.Close()

	renewer := &countingRenewer{}
	session := newTestSession(10*time.Millisecond, renewer)
	if err := session.Open(context.Background(), wsURL(server), "key", func([]byte) {}); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for renewer.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if renewer.calls.Load() < 2 {
		t.Fatalf("expected at least 2 keepalive calls, got %d", renewer.calls.Load())
	}

	session.Close()
	after := renewer.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if renewer.calls.Load() != after {
		t.Fatalf("keepalive kept running after Close")
	}
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"eventType":"ORDER_TRADE_UPDATE","order":{"orderId":1,"status":"FILLED"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.EventType != EventOrderTradeUpdate {
		t.Fatalf("unexpected event type %q", env.EventType)
	}
	if env.Order == nil || env.Order.OrderID != 1 || env.Order.Status != OrderStatusFilled {
		t.Fatalf("unexpected order payload: %+v", env.Order)
	}

	if _, err := ParseEnvelope([]byte(`{nope`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}

	// Non-order events decode with a nil order.
	env, err = ParseEnvelope([]byte(`{"eventType":"ACCOUNT_UPDATE"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Order != nil {
		t.Fatalf("expected nil order, got %+v", env.Order)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired} {
		if !IsTerminal(status) {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []string{OrderStatusNew, OrderStatusPartiallyFilled, ""} {
		if IsTerminal(status) {
			t.Fatalf("expected %s to be non-terminal", status)
		}
	}
}
