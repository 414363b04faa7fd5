package browser

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds the connection-level knobs of the WebSocket endpoint.
type Config struct {
	// ReadTimeout bounds the silence tolerated between client messages;
	// pongs count. Connections exceeding it are dropped.
	ReadTimeout time.Duration

	// WriteTimeout bounds each outgoing write.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings an idle client.
	PingInterval time.Duration

	// InitTimeout bounds the wait for the client's init message after the
	// upgrade.
	InitTimeout time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin is passed to the upgrader. Nil means same-origin only,
	// the gorilla default.
	CheckOrigin func(*http.Request) bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    25 * time.Second,
		InitTimeout:     5 * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Handler upgrades HTTP requests and hands each connected page to the
// application as a Session.
type Handler struct {
	upgrader  websocket.Upgrader
	config    Config
	logger    *slog.Logger
	onSession func(*Session)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithConfig replaces the default connection configuration.
func WithConfig(c Config) HandlerOption {
	return func(h *Handler) { h.config = c }
}

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates the WebSocket endpoint. onSession is invoked once per
// connected page, after the client reported its initial query string; it
// must not block. The session stays valid until Session.Done closes.
func NewHandler(onSession func(*Session), opts ...HandlerOption) *Handler {
	h := &Handler{
		config:    DefaultConfig(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		onSession: onSession,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  h.config.ReadBufferSize,
		WriteBufferSize: h.config.WriteBufferSize,
		CheckOrigin:     h.config.CheckOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", "error", err)
		return
	}

	initial, err := h.readInit(conn)
	if err != nil {
		h.logger.Error("handshake failed", "error", err)
		conn.Close()
		return
	}

	s := newSession(conn, initial, h.config, h.logger)
	h.logger.Debug("session connected", "remote", r.RemoteAddr, "query", initial)

	go s.pingLoop()
	h.onSession(s)
	s.readLoop()
}

// readInit waits for the client's first message, which must be an init
// carrying the page's current query string.
func (h *Handler) readInit(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(h.config.InitTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", err
	}
	if msg.Type != msgInit {
		return "", errNoInit
	}
	return msg.Query, nil
}

type handshakeError string

func (e handshakeError) Error() string { return string(e) }

const errNoInit = handshakeError("first message was not init")
