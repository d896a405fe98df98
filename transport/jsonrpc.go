package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"strconv"
	"sync"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/logging"
)

// Version is the only JSON-RPC version accepted.
const Version = "2.0"

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error. When built by RPCError, Data holds
// the failure envelope.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// rpcCodeKey is the metadata key that pins the JSON-RPC code of a failure.
const rpcCodeKey = "rpc_code"

func (e *Error) Error() string {
	return e.Message
}

// RPCError converts any error into a JSON-RPC error object:
//
//   - NoSuchTool: MethodNotFound
//   - caller faults (Validation, InvalidToolInput, SchemaValidation, Config): InvalidParams
//   - Serialization: ParseError
//   - everything else: InternalError
//
// Data carries the failure envelope so clients can recover the failure with
// Failure. Returns nil for a nil error.
func RPCError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}

	failure := errors.Classify(err)
	return &Error{
		Code:    rpcCode(failure),
		Message: failure.Error(),
		Data:    failure.Envelope(),
	}
}

func rpcCode(failure *errors.Error) int {
	if pinned, ok := failure.Metadata()[rpcCodeKey]; ok {
		if code, err := strconv.Atoi(pinned); err == nil {
			return code
		}
	}
	switch {
	case failure.Kind() == errors.KindNoSuchTool:
		return MethodNotFound
	case failure.Kind() == errors.KindSerialization:
		return ParseError
	case failure.Category() == errors.CategoryCaller:
		return InvalidParams
	default:
		return InternalError
	}
}

// invalidRequest is a Validation failure answered with InvalidRequest.
func invalidRequest(message string) *errors.Error {
	return errors.Validation(message, errors.WithMetadata(rpcCodeKey, strconv.Itoa(InvalidRequest)))
}

// methodNotFound is a Validation failure answered with MethodNotFound.
func methodNotFound(method string) *errors.Error {
	return errors.Validation("method not found: "+method,
		errors.WithMetadata(rpcCodeKey, strconv.Itoa(MethodNotFound)), errors.WithMetadata("method", method))
}

// Failure recovers the failure carried by the error object. Errors from peers
// that send no envelope are classified by code.
func (e *Error) Failure() *errors.Error {
	if e == nil {
		return nil
	}
	if e.Data != nil {
		if data, err := json.Marshal(e.Data); err == nil {
			var env errors.Envelope
			if json.Unmarshal(data, &env) == nil && env.Code != "" {
				return errors.FromEnvelope(env)
			}
		}
	}
	meta := errors.WithMetadata(rpcCodeKey, strconv.Itoa(e.Code))
	switch e.Code {
	case ParseError:
		return errors.Serialization(stderrors.New(e.Message), meta)
	case InvalidRequest, InvalidParams, MethodNotFound:
		return errors.Validation(e.Message, meta)
	default:
		return errors.Internal(e.Message, meta)
	}
}

// Notification represents a JSON-RPC 2.0 notification (no ID).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Handler handles JSON-RPC requests.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

func (f HandlerFunc) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	return f(ctx, method, params)
}

// Server is a JSON-RPC 2.0 server over line-delimited streams.
type Server struct {
	reader  *bufio.Reader
	writer  io.Writer
	handler Handler
	logger  *logging.Logger
	mu      sync.Mutex

	// NotifyFunc is called to send notifications
	NotifyFunc func(method string, params interface{})
}

// NewServer creates a new JSON-RPC server.
func NewServer(r io.Reader, w io.Writer, handler Handler) *Server {
	s := &Server{
		reader:  bufio.NewReader(r),
		writer:  w,
		handler: handler,
	}
	s.NotifyFunc = s.notify
	return s
}

// SetLogger sets the logger used for failed requests.
func (s *Server) SetLogger(l *logging.Logger) {
	s.logger = l
}

// Serve reads and handles requests until EOF or error. A read failure is
// returned as a Network failure and a write failure as a Stream failure.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Classify(ctx.Err())
		default:
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF {
				return nil
			}
			return errors.Network(err)
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := s.sendError(nil, errors.Serialization(err)); err != nil {
				return err
			}
			continue
		}

		if req.JSONRPC != Version {
			if err := s.sendError(req.ID, invalidRequest("jsonrpc must be 2.0")); err != nil {
				return err
			}
			continue
		}

		result, err := s.handler.Handle(ctx, req.Method, req.Params)
		if err != nil {
			if s.logger != nil {
				s.logger.Failure("rpc_error", err)
			}
			if req.ID != nil {
				if err := s.sendError(req.ID, err); err != nil {
					return err
				}
			}
			continue
		}

		// Send response (only if ID is present - otherwise it's a notification)
		if req.ID != nil {
			if err := s.sendResult(req.ID, result); err != nil {
				return err
			}
		}
	}
}

// sendResult sends a successful response. A result that cannot be encoded
// is answered with an internal error instead.
func (s *Server) sendResult(id interface{}, result interface{}) error {
	err := s.send(Response{JSONRPC: Version, ID: id, Result: result})
	if errors.IsKind(err, errors.KindSerialization) {
		return s.sendError(id, errors.Internal("cannot encode result", errors.WithCause(err)))
	}
	return err
}

// sendError sends an error response.
func (s *Server) sendError(id interface{}, err error) error {
	return s.send(Response{
		JSONRPC: Version,
		ID:      id,
		Error:   RPCError(err),
	})
}

// notify sends a notification.
func (s *Server) notify(method string, params interface{}) {
	s.send(Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	})
}

// Notify sends a notification to the client.
func (s *Server) Notify(method string, params interface{}) {
	s.NotifyFunc(method, params)
}

// NotifyError sends an error notification carrying the failure envelope.
func (s *Server) NotifyError(err error) {
	if err == nil {
		return
	}
	s.Notify(EventError, ErrorParams{Error: errors.Classify(err).Envelope()})
}

// send writes a JSON message to the output.
func (s *Server) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Serialization(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return errors.Stream("write failed: "+err.Error(), errors.WithCause(err))
	}
	return nil
}

// Event types for notifications
const (
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventError      = "error"
)

// ErrorParams are params for the error event.
type ErrorParams struct {
	Error errors.Envelope `json:"error"`
}

// ToolResultParams are params for the tool_result event.
type ToolResultParams struct {
	Tool   string           `json:"tool"`
	Result interface{}      `json:"result,omitempty"`
	Error  *errors.Envelope `json:"error,omitempty"`
}
