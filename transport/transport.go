package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/tidwall/gjson"

	"github.com/vinayprograms/aisdk/errors"
)

// ErrClosed is returned by Send after the transport has shut down.
var ErrClosed = errors.Stream("transport closed")

// Transport provides bidirectional JSON-RPC message passing.
type Transport interface {
	// Recv returns channel for incoming messages.
	// Channel is closed when transport shuts down.
	Recv() <-chan *InboundMessage

	// Send queues a message for delivery.
	// Returns ErrClosed if transport is closed.
	Send(msg *OutboundMessage) error

	// Run starts the transport, blocks until ctx cancelled or error.
	// Returns nil on graceful shutdown, a failure otherwise.
	Run(ctx context.Context) error

	// Close initiates graceful shutdown.
	// Drains pending sends before returning.
	Close() error
}

// InboundMessage wraps an incoming JSON-RPC message.
type InboundMessage struct {
	// Request is set if this is a JSON-RPC request (has ID).
	Request *Request

	// Notification is set if this is a notification (no ID).
	Notification *Notification

	// Failure is set for error notifications and SSE error events: the
	// failure the peer reported.
	Failure *errors.Error

	// Raw contains the original bytes for passthrough scenarios.
	Raw json.RawMessage
}

// OutboundMessage wraps an outgoing JSON-RPC message.
type OutboundMessage struct {
	// Response is set when replying to a request.
	Response *Response

	// Notification is set when sending an unsolicited notification.
	Notification *Notification
}

// ParseInbound parses raw JSON into an InboundMessage. Malformed JSON is a
// Serialization failure and a wrong protocol version is a Validation failure.
// RPCError turns either into the reply.
func ParseInbound(data []byte) (*InboundMessage, error) {
	var raw struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Serialization(err)
	}

	if raw.JSONRPC != Version {
		return nil, invalidRequest("jsonrpc must be 2.0")
	}

	msg := &InboundMessage{Raw: data}

	// If ID is present and not null, it's a request
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, errors.Serialization(err)
		}
		msg.Request = &req
	} else {
		var notif Notification
		if err := json.Unmarshal(data, &notif); err != nil {
			return nil, errors.Serialization(err)
		}
		msg.Notification = &notif
		if notif.Method == EventError {
			msg.Failure = reportedFailure([]byte(gjson.GetBytes(data, "params.error").Raw))
		}
	}

	return msg, nil
}

// reportedFailure decodes a failure envelope sent by a peer. A payload that
// is not an envelope is itself a Serialization failure.
func reportedFailure(data []byte) *errors.Error {
	var env errors.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Serialization(err)
	}
	if env.Code == "" {
		return errors.Serialization(stderrors.New("error payload has no code"))
	}
	return errors.FromEnvelope(env)
}

// MarshalOutbound serializes an OutboundMessage to JSON.
func MarshalOutbound(msg *OutboundMessage) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case msg == nil:
		return nil, errors.Internal("empty outbound message")
	case msg.Response != nil:
		data, err = json.Marshal(msg.Response)
	case msg.Notification != nil:
		data, err = json.Marshal(msg.Notification)
	default:
		return nil, errors.Internal("empty outbound message")
	}
	if err != nil {
		return nil, errors.Serialization(err)
	}
	return data, nil
}

// Config holds common transport configuration.
type Config struct {
	// RecvBufferSize is the size of the receive channel buffer.
	// Default: 100
	RecvBufferSize int

	// SendBufferSize is the size of the internal send buffer.
	// Default: 100
	SendBufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecvBufferSize: 100,
		SendBufferSize: 100,
	}
}

func (c Config) withDefaults() Config {
	if c.RecvBufferSize <= 0 {
		c.RecvBufferSize = DefaultConfig().RecvBufferSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = DefaultConfig().SendBufferSize
	}
	return c
}
