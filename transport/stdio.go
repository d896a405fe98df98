package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/logging"
)

// MaxLineSize is the largest message the line-delimited transports accept.
const MaxLineSize = 1024 * 1024

// StdioTransport implements Transport over stdin/stdout.
type StdioTransport struct {
	reader io.Reader
	writer io.Writer
	config Config
	logger *logging.Logger

	recv   chan *InboundMessage
	send   chan *OutboundMessage
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	err    error
}

// NewStdioTransport creates a new stdio transport.
func NewStdioTransport(r io.Reader, w io.Writer, cfg Config) *StdioTransport {
	cfg = cfg.withDefaults()
	return &StdioTransport{
		reader: r,
		writer: w,
		config: cfg,
		recv:   make(chan *InboundMessage, cfg.RecvBufferSize),
		send:   make(chan *OutboundMessage, cfg.SendBufferSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger used for rejected input and write failures.
// Call before Run.
func (t *StdioTransport) SetLogger(l *logging.Logger) {
	t.logger = l
}

// Recv returns the channel for incoming messages.
func (t *StdioTransport) Recv() <-chan *InboundMessage {
	return t.recv
}

// Send queues a message for delivery.
func (t *StdioTransport) Send(msg *OutboundMessage) error {
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

// Run starts the transport, blocking until shutdown. It returns the first
// read or write failure, or nil when the input simply ended.
func (t *StdioTransport) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		t.readLoop(ctx)
	}()

	go func() {
		defer wg.Done()
		t.writeLoop(ctx)
	}()

	<-ctx.Done()

	t.Close()
	wg.Wait()

	return t.Err()
}

// Close initiates graceful shutdown.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	return nil
}

// Err returns the failure that stopped reading or writing, if any.
func (t *StdioTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *StdioTransport) fail(err *errors.Error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	if t.logger != nil {
		t.logger.Failure("transport_failure", err)
	}
}

// readLoop reads from input and sends to recv channel.
func (t *StdioTransport) readLoop(ctx context.Context) {
	defer close(t.recv)

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := ParseInbound(append([]byte(nil), line...))
		if err != nil {
			t.sendParseError(line, err)
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

	if err := scanner.Err(); err != nil {
		t.fail(scanFailure(err))
	}
}

// scanFailure maps a bufio.Scanner error.
func scanFailure(err error) *errors.Error {
	if stderrors.Is(err, bufio.ErrTooLong) {
		return errors.Stream("message exceeds 1MB", errors.WithCause(err))
	}
	return errors.Network(err)
}

// writeLoop reads from send channel and writes to output.
func (t *StdioTransport) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.drainSendQueue()
			return
		case <-t.done:
			t.drainSendQueue()
			return
		case msg, ok := <-t.send:
			if !ok {
				return
			}
			t.writeMessage(msg)
		}
	}
}

// drainSendQueue writes any remaining messages in the send queue.
func (t *StdioTransport) drainSendQueue() {
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
func (t *StdioTransport) writeMessage(msg *OutboundMessage) {
	data, err := MarshalOutbound(msg)
	if err != nil {
		if t.logger != nil {
			t.logger.Failure("outbound_dropped", err)
		}
		return
	}

	t.mu.Lock()
	_, werr := t.writer.Write(append(data, '\n'))
	t.mu.Unlock()
	if werr != nil {
		t.fail(errors.Stream("write failed: "+werr.Error(), errors.WithCause(werr)))
	}
}

// sendParseError replies to input that could not be parsed, echoing its ID
// when one can be recovered.
func (t *StdioTransport) sendParseError(raw []byte, parseErr error) {
	var partial struct {
		ID interface{} `json:"id"`
	}
	json.Unmarshal(raw, &partial)

	if t.logger != nil {
		t.logger.Failure("inbound_rejected", parseErr)
	}
	t.Send(&OutboundMessage{
		Response: &Response{
			JSONRPC: Version,
			ID:      partial.ID,
			Error:   RPCError(parseErr),
		},
	})
}
