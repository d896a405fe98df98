package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/logging"
)

// WebSocketTransport implements Transport over WebSocket.
type WebSocketTransport struct {
	conn   *websocket.Conn
	config WebSocketConfig
	logger *logging.Logger

	recv     chan *InboundMessage
	send     chan *OutboundMessage
	done     chan struct{}
	readDone chan struct{}
	mu       sync.Mutex
	closed   bool
	err      error
}

// WebSocketConfig holds WebSocket transport configuration.
type WebSocketConfig struct {
	Config // Embed base config

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// ReadTimeout for read operations (0 = no timeout).
	ReadTimeout time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Config:         DefaultConfig(),
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    0,
		MaxMessageSize: MaxLineSize,
		PingInterval:   30 * time.Second,
	}
}

// NewWebSocketTransport creates a transport from an existing connection.
func NewWebSocketTransport(conn *websocket.Conn, cfg WebSocketConfig) *WebSocketTransport {
	cfg.Config = cfg.Config.withDefaults()
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &WebSocketTransport{
		conn:     conn,
		config:   cfg,
		recv:     make(chan *InboundMessage, cfg.RecvBufferSize),
		send:     make(chan *OutboundMessage, cfg.SendBufferSize),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// DialWebSocket connects to a WebSocket endpoint. A refused handshake is
// classified from the HTTP response when there is one.
func DialWebSocket(ctx context.Context, url string, cfg WebSocketConfig) (*WebSocketTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if rerr := ReadError("websocket", resp); rerr != nil {
				return nil, rerr
			}
		}
		return nil, errors.Classify(err)
	}
	return NewWebSocketTransport(conn, cfg), nil
}

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket
// connections. Handshake failures are answered with a JSON failure body.
func NewWebSocketUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // Override in production
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			writeFailure(w, status, errors.Validation(reason.Error()))
		},
	}
}

// SetLogger sets the logger used for dropped messages and connection
// failures. Call before Run.
func (t *WebSocketTransport) SetLogger(l *logging.Logger) {
	t.logger = l
}

// Recv returns the channel for incoming messages.
func (t *WebSocketTransport) Recv() <-chan *InboundMessage {
	return t.recv
}

// Send queues a message for delivery.
func (t *WebSocketTransport) Send(msg *OutboundMessage) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	select {
	case t.send <- msg:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

// Run starts the transport, blocking until ctx is cancelled or the peer goes
// away. It returns the failure that ended the connection, or nil for a
// normal close.
func (t *WebSocketTransport) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(t.readDone)
		t.readLoop(ctx)
	}()

	go func() {
		defer wg.Done()
		t.writeLoop(ctx)
	}()

	select {
	case <-ctx.Done():
	case <-t.readDone:
	}

	t.Close()
	wg.Wait()

	return t.Err()
}

// Close initiates graceful shutdown.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.mu.Unlock()

	if err := t.conn.Close(); err != nil {
		return errors.Network(err)
	}
	return nil
}

// Err returns the failure that ended the connection, if any.
func (t *WebSocketTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *WebSocketTransport) fail(err *errors.Error) {
	t.mu.Lock()
	if t.err == nil && !t.closed {
		t.err = err
	}
	t.mu.Unlock()
	if t.logger != nil {
		t.logger.Failure("transport_failure", err)
	}
}

// readLoop reads WebSocket messages and sends to recv channel.
func (t *WebSocketTransport) readLoop(ctx context.Context) {
	defer close(t.recv)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		if t.config.ReadTimeout > 0 {
			t.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
		}
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if failure := readFailure(err); failure != nil {
				t.fail(failure)
			}
			return
		}

		msg, parseErr := ParseInbound(data)
		if parseErr != nil {
			t.sendParseError(parseErr)
			continue
		}

		select {
		case t.recv <- msg:
		case <-ctx.Done():
			return
		case <-t.done:
			return
		}
	}
}

// readFailure maps a read error. A normal close is not a failure.
func readFailure(err error) *errors.Error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseMessageTooBig) || err == websocket.ErrReadLimit {
		return errors.Stream("message too large", errors.WithCause(err))
	}
	if closeErr, ok := err.(*websocket.CloseError); ok {
		return errors.Stream(closeErr.Error(), errors.WithCause(err))
	}
	if failure := errors.Classify(err); failure.Kind() == errors.KindTimeout {
		return failure
	}
	return errors.Network(err)
}

// writeLoop reads from send channel and writes to WebSocket.
func (t *WebSocketTransport) writeLoop(ctx context.Context) {
	ticker := t.createPingTicker()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.drainSendQueue()
			return
		case <-t.done:
			t.drainSendQueue()
			return
		case <-ticker.C:
			t.writePing()
		case msg, ok := <-t.send:
			if !ok {
				return
			}
			t.writeMessage(msg)
		}
	}
}

// createPingTicker creates a ticker for keepalive pings.
func (t *WebSocketTransport) createPingTicker() *time.Ticker {
	if t.config.PingInterval > 0 {
		return time.NewTicker(t.config.PingInterval)
	}
	// Return a ticker that never fires
	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	return ticker
}

// writePing sends a WebSocket ping frame.
func (t *WebSocketTransport) writePing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

// drainSendQueue writes remaining messages before shutdown.
func (t *WebSocketTransport) drainSendQueue() {
	for {
		select {
		case msg, ok := <-t.send:
			if !ok {
				return
			}
			t.writeMessage(msg)
		default:
			return
		}
	}
}

// writeMessage serializes and writes a single message.
func (t *WebSocketTransport) writeMessage(msg *OutboundMessage) {
	data, err := MarshalOutbound(msg)
	if err != nil {
		if t.logger != nil {
			t.logger.Failure("outbound_dropped", err)
		}
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if t.config.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	werr := t.conn.WriteMessage(websocket.TextMessage, data)
	t.mu.Unlock()

	if werr != nil {
		t.fail(errors.Stream("write failed: "+werr.Error(), errors.WithCause(werr)))
	}
}

// sendParseError replies to a message that could not be parsed.
func (t *WebSocketTransport) sendParseError(parseErr error) {
	if t.logger != nil {
		t.logger.Failure("inbound_rejected", parseErr)
	}
	t.Send(&OutboundMessage{
		Response: &Response{
			JSONRPC: Version,
			ID:      nil,
			Error:   RPCError(parseErr),
		},
	})
}
