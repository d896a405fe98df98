package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/logging"
)

// SSE event names used by this package.
const (
	SSEEventMessage = "message"
	SSEEventError   = "error"
)

// --- Event framing ---

// SSEWriter writes Server-Sent Events. Each event gets a fresh UUID as its id.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter creates a writer over w. When w is an http.ResponseWriter the
// event-stream headers are set; call before the first write.
func NewSSEWriter(w io.Writer) *SSEWriter {
	sw := &SSEWriter{w: w}
	if rw, ok := w.(http.ResponseWriter); ok {
		h := rw.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent writes data as a JSON-encoded event. A value that cannot be
// encoded is a Serialization failure and a failed write is a Stream failure.
func (s *SSEWriter) WriteEvent(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Serialization(err, errors.WithMetadata("event", event))
	}

	var frame bytes.Buffer
	fmt.Fprintf(&frame, "id: %s\n", uuid.NewString())
	if event != "" && event != SSEEventMessage {
		fmt.Fprintf(&frame, "event: %s\n", event)
	}
	for _, line := range bytes.Split(payload, []byte("\n")) {
		fmt.Fprintf(&frame, "data: %s\n", line)
	}
	frame.WriteByte('\n')

	return s.write(frame.Bytes())
}

// WriteError writes err as an error event carrying its envelope.
func (s *SSEWriter) WriteError(err error) error {
	failure := errors.Classify(err)
	if failure == nil {
		return nil
	}
	return s.WriteEvent(SSEEventError, failure.Envelope())
}

// WriteComment writes a comment line, used as a keepalive.
func (s *SSEWriter) WriteComment(text string) error {
	return s.write([]byte(": " + text + "\n\n"))
}

func (s *SSEWriter) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(frame); err != nil {
		return errors.Stream("write failed: "+err.Error(), errors.WithCause(err))
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Event is one Server-Sent Event.
type Event struct {
	ID    string
	Event string
	Data  []byte
	Retry time.Duration
}

// Decode unmarshals the event data into v. Bad JSON is a Serialization failure.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Serialization(err, errors.WithMetadata("event", e.Event))
	}
	return nil
}

// Err returns the failure carried by an error event, or nil for any other
// event. An error event whose data is not an envelope yields a
// Serialization failure.
func (e *Event) Err() error {
	if e.Event != SSEEventError {
		return nil
	}
	return reportedFailure(e.Data)
}

// SSEReader parses a Server-Sent Events stream.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates a reader over r. Lines longer than MaxLineSize are
// rejected.
func NewSSEReader(r io.Reader) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return &SSEReader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends
// between events, a Stream failure when it ends inside one or a line is
// too long, and a Network failure when reading fails.
func (r *SSEReader) Next() (*Event, error) {
	var (
		ev      = Event{Event: SSEEventMessage}
		data    bytes.Buffer
		hasData bool
		pending bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData {
				ev.Data = data.Bytes()
				return &ev, nil
			}
			ev = Event{Event: SSEEventMessage}
			pending = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		pending = true

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			ev.Event = value
		case "id":
			ev.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, scanFailure(err)
	}
	if pending {
		return nil, errors.Stream("stream ended mid-event", errors.WithCause(io.ErrUnexpectedEOF))
	}
	return nil, io.EOF
}

// --- Server-side transport ---

// SSETransport implements Transport using Server-Sent Events for server→client
// and HTTP POST for client→server communication.
type SSETransport struct {
	config SSEConfig
	logger *logging.Logger

	recv   chan *InboundMessage
	send   chan *OutboundMessage
	done   chan struct{}
	mu     sync.Mutex
	closed bool

	// Server-side: track connected SSE clients
	clients   map[string]chan outbound
	clientsMu sync.RWMutex
}

// outbound is a frame queued for a connected client.
type outbound struct {
	event string
	data  json.RawMessage
}

// SSEConfig holds SSE transport configuration.
type SSEConfig struct {
	Config // Embed base config

	// HeartbeatInterval sends SSE comments as keepalive (0 = disabled).
	HeartbeatInterval time.Duration

	// MaxBodySize limits POST bodies. Default: MaxLineSize.
	MaxBodySize int64
}

// DefaultSSEConfig returns configuration with sensible defaults.
func DefaultSSEConfig() SSEConfig {
	return SSEConfig{
		Config:            DefaultConfig(),
		HeartbeatInterval: 30 * time.Second,
		MaxBodySize:       MaxLineSize,
	}
}

// NewSSETransport creates a new SSE transport.
func NewSSETransport(cfg SSEConfig) *SSETransport {
	cfg.Config = cfg.Config.withDefaults()
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = MaxLineSize
	}

	return &SSETransport{
		config:  cfg,
		recv:    make(chan *InboundMessage, cfg.RecvBufferSize),
		send:    make(chan *OutboundMessage, cfg.SendBufferSize),
		done:    make(chan struct{}),
		clients: make(map[string]chan outbound),
	}
}

// SetLogger sets the logger used for dropped messages and rejected posts.
// Call before Run.
func (t *SSETransport) SetLogger(l *logging.Logger) {
	t.logger = l
}

// Recv returns the channel for incoming messages.
func (t *SSETransport) Recv() <-chan *InboundMessage {
	return t.recv
}

// Send queues a message for delivery to all connected SSE clients.
func (t *SSETransport) Send(msg *OutboundMessage) error {
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

// SendError broadcasts err as an SSE error event to all connected clients.
func (t *SSETransport) SendError(err error) error {
	failure := errors.Classify(err)
	if failure == nil {
		return nil
	}
	data, mErr := json.Marshal(failure.Envelope())
	if mErr != nil {
		return errors.Serialization(mErr)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	t.fanOut(outbound{event: SSEEventError, data: data})
	return nil
}

// Run starts the transport, blocking until shutdown.
func (t *SSETransport) Run(ctx context.Context) error {
	go t.broadcastLoop(ctx)

	<-ctx.Done()
	t.Close()
	return nil
}

// Close initiates graceful shutdown.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	// Close all client channels
	t.clientsMu.Lock()
	for id, ch := range t.clients {
		close(ch)
		delete(t.clients, id)
	}
	t.clientsMu.Unlock()

	return nil
}

// HandleSSE is an HTTP handler for SSE connections.
// Mount this at your SSE endpoint (e.g., /events).
func (t *SSETransport) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		WriteError(w, errors.Stream("streaming not supported by response writer"))
		return
	}

	writer := NewSSEWriter(w)
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()

	clientID := uuid.NewString()
	clientCh := make(chan outbound, 100)

	t.clientsMu.Lock()
	select {
	case <-t.done:
		t.clientsMu.Unlock()
		return
	default:
	}
	t.clients[clientID] = clientCh
	t.clientsMu.Unlock()

	defer func() {
		t.clientsMu.Lock()
		delete(t.clients, clientID)
		t.clientsMu.Unlock()
	}()

	var heartbeat <-chan time.Time
	if t.config.HeartbeatInterval > 0 {
		ticker := time.NewTicker(t.config.HeartbeatInterval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-t.done:
			return
		case <-heartbeat:
			if writer.WriteComment("heartbeat") != nil {
				return
			}
		case frame, ok := <-clientCh:
			if !ok {
				return
			}
			if err := writer.WriteEvent(frame.event, frame.data); err != nil {
				if t.logger != nil {
					t.logger.Failure("sse_client_dropped", err)
				}
				return
			}
		}
	}
}

// HandlePost is an HTTP handler for receiving JSON-RPC requests.
// Mount this at your request endpoint (e.g., /rpc). Rejected posts are
// answered with a JSON-RPC error response whose data is the failure envelope.
func (t *SSETransport) HandlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRPCError(w, http.StatusMethodNotAllowed, nil,
			errors.Validation("method not allowed: "+r.Method))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeRPCError(w, http.StatusRequestEntityTooLarge, nil,
				errors.Validationf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeRPCError(w, http.StatusBadRequest, nil, errors.Network(err))
		return
	}

	msg, parseErr := ParseInbound(body)
	if parseErr != nil {
		if t.logger != nil {
			t.logger.Failure("inbound_rejected", parseErr)
		}
		writeRPCError(w, http.StatusBadRequest, nil, parseErr)
		return
	}

	select {
	case <-t.done:
		writeRPCError(w, http.StatusServiceUnavailable, nil, ErrClosed)
		return
	default:
	}

	// A full queue is answered with 503 rather than waited on.
	select {
	case t.recv <- msg:
		// Responses go out over the event stream
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted"}`))
	default:
		failure := errors.RateLimit(errors.WithMetadata("reason", "inbound queue full"))
		if t.logger != nil {
			t.logger.Failure("inbound_dropped", failure)
		}
		writeRPCError(w, http.StatusServiceUnavailable, msgID(msg), failure)
	}
}

// msgID returns the request id of msg, if it has one.
func msgID(msg *InboundMessage) interface{} {
	if msg.Request != nil {
		return msg.Request.ID
	}
	return nil
}

// writeRPCError writes a JSON-RPC error response with the given HTTP status.
func writeRPCError(w http.ResponseWriter, status int, id interface{}, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		JSONRPC: Version,
		ID:      id,
		Error:   RPCError(err),
	})
}

// broadcastLoop sends outbound messages to all connected clients.
func (t *SSETransport) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case msg, ok := <-t.send:
			if !ok {
				return
			}
			t.broadcast(msg)
		}
	}
}

// broadcast sends a message to all connected SSE clients.
func (t *SSETransport) broadcast(msg *OutboundMessage) {
	data, err := MarshalOutbound(msg)
	if err != nil {
		if t.logger != nil {
			t.logger.Failure("outbound_dropped", err)
		}
		return
	}
	t.fanOut(outbound{event: SSEEventMessage, data: data})
}

func (t *SSETransport) fanOut(frame outbound) {
	t.clientsMu.RLock()
	defer t.clientsMu.RUnlock()

	for id, ch := range t.clients {
		select {
		case ch <- frame:
		default:
			if t.logger != nil {
				t.logger.Warn("sse_client_lagging", map[string]interface{}{"client": id, "event": frame.event})
			}
		}
	}
}

// --- Client-side SSE support ---

// SSEClient connects to an SSE endpoint and receives messages.
type SSEClient struct {
	url    string
	client *http.Client
	recv   chan *InboundMessage
	done   chan struct{}
	mu     sync.Mutex
	body   io.Closer
	closed bool
	err    error
}

// NewSSEClient creates a client for connecting to an SSE endpoint.
func NewSSEClient(url string, bufferSize int) *SSEClient {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &SSEClient{
		url:    url,
		client: http.DefaultClient,
		recv:   make(chan *InboundMessage, bufferSize),
		done:   make(chan struct{}),
	}
}

// Recv returns the channel for incoming messages. Error events arrive as
// messages with Failure set. The channel is closed when the stream ends.
func (c *SSEClient) Recv() <-chan *InboundMessage {
	return c.recv
}

// Err returns the failure that ended the stream, if any.
func (c *SSEClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Connect establishes the SSE connection and starts receiving. A refused
// connection is classified from the transport error, and a non-2xx answer
// from the response.
func (c *SSEClient) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return errors.Config("invalid SSE endpoint: "+err.Error(), errors.WithCause(err))
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Classify(err)
	}
	if rerr := ReadError("sse", resp); rerr != nil {
		resp.Body.Close()
		return rerr
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		resp.Body.Close()
		return ErrClosed
	}
	c.body = resp.Body
	c.mu.Unlock()

	go c.readLoop(ctx, resp.Body)
	return nil
}

// Close closes the SSE client and its stream. Recv is closed once the
// read loop exits.
func (c *SSEClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	body := c.body
	c.mu.Unlock()

	// Unblocks a readLoop waiting on the server.
	if body != nil {
		body.Close()
	}
	return nil
}

// readLoop reads SSE events and delivers JSON-RPC messages.
func (c *SSEClient) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()
	defer close(c.recv)

	reader := NewSSEReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if err != io.EOF && ctx.Err() == nil && !c.isClosed() {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}

		msg := c.toMessage(ev)
		if msg == nil {
			continue
		}
		select {
		case c.recv <- msg:
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

func (c *SSEClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// toMessage converts an event to an inbound message. Server responses and
// notifications both arrive as notifications from the client's side.
func (c *SSEClient) toMessage(ev *Event) *InboundMessage {
	msg := &InboundMessage{Raw: ev.Data}
	if failure := ev.Err(); failure != nil {
		msg.Failure = errors.Classify(failure)
		msg.Notification = &Notification{
			JSONRPC: Version,
			Method:  EventError,
			Params:  ErrorParams{Error: msg.Failure.Envelope()},
		}
		return msg
	}

	var notif Notification
	if err := json.Unmarshal(ev.Data, &notif); err != nil || notif.JSONRPC != Version {
		return nil
	}
	msg.Notification = &notif
	if notif.Method == EventError {
		msg.Failure = reportedFailure([]byte(gjson.GetBytes(ev.Data, "params.error").Raw))
	}
	return msg
}
