// Package browser bridges the engine to a real address bar over a
// WebSocket.
//
// The page script is the thin end: it reports the current query string on
// connect ("init") and whenever the user navigates ("popstate"), and it
// applies "navigate" messages with history.pushState/replaceState. All
// coalescing, rate limiting, and reconciliation stay server-side; the
// client never decides anything.
package browser

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/urlq-dev/urlq/pkg/adapter"
)

// Message is the wire format, one JSON object per WebSocket text message.
type Message struct {
	// Type is one of "init", "navigate", "popstate", "refresh".
	Type string `json:"type"`

	// Query is the query string without the leading "?".
	Query string `json:"query,omitempty"`

	// Mode is "push" or "replace" on navigate messages.
	Mode string `json:"mode,omitempty"`

	// Scroll asks the client to scroll to the top after applying.
	Scroll bool `json:"scroll,omitempty"`

	// Keys lists the parameters behind a refresh announcement.
	Keys []string `json:"keys,omitempty"`
}

const (
	msgInit     = "init"
	msgNavigate = "navigate"
	msgPopState = "popstate"
	msgRefresh  = "refresh"
)

// Session is one connected page. It satisfies both adapter.Adapter and
// adapter.ServerRefresher, so an engine bound to it behaves exactly as it
// does against the in-memory harness.
type Session struct {
	conn   *websocket.Conn
	config Config
	logger *slog.Logger

	mu sync.Mutex // protects conn writes

	qmu       sync.Mutex
	query     string
	listeners map[int]func(string)
	nextID    int

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ adapter.Adapter         = (*Session)(nil)
	_ adapter.ServerRefresher = (*Session)(nil)
)

func newSession(conn *websocket.Conn, initial string, config Config, logger *slog.Logger) *Session {
	return &Session{
		conn:      conn,
		config:    config,
		logger:    logger,
		query:     initial,
		listeners: map[int]func(string){},
		done:      make(chan struct{}),
	}
}

// QueryString returns the client's query string as last reported.
func (s *Session) QueryString() string {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.query
}

// Navigate pushes the committed query string to the client and echoes it to
// change listeners, mirroring how a same-page history mutation is observed
// locally.
func (s *Session) Navigate(next string, opts adapter.NavigateOptions) {
	s.qmu.Lock()
	s.query = next
	s.qmu.Unlock()

	mode := "replace"
	if opts.Mode == adapter.ModePush {
		mode = "push"
	}
	if err := s.send(Message{Type: msgNavigate, Query: next, Mode: mode, Scroll: opts.Scroll}); err != nil {
		s.logger.Error("navigate send failed", "error", err)
		s.Close()
		return
	}

	for _, fn := range s.snapshotListeners() {
		fn(next)
	}
}

// OnExternalChange registers fn for query strings the client reports on its
// own (back/forward, manual edits). The returned function unsubscribes.
func (s *Session) OnExternalChange(fn func(next string)) func() {
	s.qmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.qmu.Unlock()

	return func() {
		s.qmu.Lock()
		delete(s.listeners, id)
		s.qmu.Unlock()
	}
}

// AnnounceServerRefresh tells the client which parameters changed in a way
// that requires refetching server-rendered data.
func (s *Session) AnnounceServerRefresh(keys []string) {
	if err := s.send(Message{Type: msgRefresh, Keys: keys}); err != nil {
		s.logger.Error("refresh send failed", "error", err)
	}
}

// Done closes when the connection is gone.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the connection down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) snapshotListeners() []func(string) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// readLoop consumes client messages until the connection closes. It blocks;
// the handler runs it on the upgrade goroutine.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error("message decode error", "error", err)
			continue
		}

		switch msg.Type {
		case msgPopState, msgInit:
			s.qmu.Lock()
			s.query = msg.Query
			s.qmu.Unlock()
			if msg.Type == msgPopState {
				for _, fn := range s.snapshotListeners() {
					fn(msg.Query)
				}
			}

		default:
			s.logger.Warn("unknown message type", "type", msg.Type)
		}
	}
}

// pingLoop keeps the connection alive across idle stretches.
func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
			s.mu.Unlock()
			if err != nil {
				s.logger.Debug("ping failed", "error", err)
				s.Close()
				return
			}
		}
	}
}
