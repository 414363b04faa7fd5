package browser_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/urlq-dev/urlq/pkg/adapter/browser"
	"github.com/urlq-dev/urlq/pkg/param"
	"github.com/urlq-dev/urlq/pkg/urlq"
)

// newConnectedPage spins up the WebSocket endpoint, dials it as the page
// script would, and completes the init handshake.
func newConnectedPage(t *testing.T, initial string) (*websocket.Conn, *browser.Session) {
	t.Helper()

	sessions := make(chan *browser.Session, 1)
	h := browser.NewHandler(func(s *browser.Session) { sessions <- s })

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(browser.Message{Type: "init", Query: initial}); err != nil {
		t.Fatalf("init send failed: %v", err)
	}

	select {
	case s := <-sessions:
		t.Cleanup(s.Close)
		return conn, s
	case <-time.After(2 * time.Second):
		t.Fatal("session never surfaced")
		return nil, nil
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) browser.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg browser.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func TestHandshakeReportsInitialQuery(t *testing.T) {
	_, sess := newConnectedPage(t, "page=3&q=go")

	if got := sess.QueryString(); got != "page=3&q=go" {
		t.Errorf("expected the init query string, got %q", got)
	}
}

func TestNavigateReachesClient(t *testing.T) {
	conn, sess := newConnectedPage(t, "page=1")

	e := urlq.New(sess)
	defer e.Close()

	urlq.Set(e, "page", 2, param.Int(), param.Push)
	e.FlushNow()

	msg := readMessage(t, conn)
	if msg.Type != "navigate" {
		t.Fatalf("expected navigate, got %q", msg.Type)
	}
	if msg.Query != "page=2" || msg.Mode != "push" {
		t.Errorf("unexpected navigate payload: %+v", msg)
	}
}

func TestPopStateFeedsEngine(t *testing.T) {
	conn, sess := newConnectedPage(t, "page=1")

	e := urlq.New(sess)
	defer e.Close()

	values := make(chan int, 1)
	unsub := urlq.Subscribe(e, "page", param.Int().WithDefault(1), func(v int) { values <- v })
	defer unsub()

	if err := conn.WriteJSON(browser.Message{Type: "popstate", Query: "page=9"}); err != nil {
		t.Fatalf("popstate send failed: %v", err)
	}

	select {
	case v := <-values:
		if v != 9 {
			t.Errorf("expected 9, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine never observed the popstate")
	}
	if got := urlq.Get(e, "page", param.Int().WithDefault(1)); got != 9 {
		t.Errorf("expected the store to hold 9, got %d", got)
	}
}

func TestRefreshAnnouncementReachesClient(t *testing.T) {
	conn, sess := newConnectedPage(t, "page=1")

	e := urlq.New(sess)
	defer e.Close()

	urlq.Set(e, "page", 2, param.Int(), param.Refresh)
	e.FlushNow()

	nav := readMessage(t, conn)
	if nav.Type != "navigate" {
		t.Fatalf("expected navigate first, got %q", nav.Type)
	}
	refresh := readMessage(t, conn)
	if refresh.Type != "refresh" {
		t.Fatalf("expected refresh, got %q", refresh.Type)
	}
	if len(refresh.Keys) != 1 || refresh.Keys[0] != "page" {
		t.Errorf("unexpected refresh keys: %v", refresh.Keys)
	}
}

func TestFirstMessageMustBeInit(t *testing.T) {
	sessions := make(chan *browser.Session, 1)
	h := browser.NewHandler(func(s *browser.Session) { sessions <- s })

	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(browser.Message{Type: "popstate", Query: "x=1"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("server should drop connections that skip the init handshake")
	}
	select {
	case <-sessions:
		t.Error("no session should surface without init")
	default:
	}
}
