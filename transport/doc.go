// Package transport carries JSON-RPC 2.0 messages and failures between
// processes.
//
// # Overview
//
// Every transport implements the Transport interface with a channel-based
// API. Whatever goes wrong on the wire reaches the other side as a failure
// envelope (see errors.Envelope), never as free text:
//
//   - JSON-RPC error objects carry the envelope as data (RPCError, Error.Failure)
//   - HTTP error responses carry it as the body (WriteError, ReadError)
//   - SSE streams carry it as an "error" event (SSEWriter.WriteError, Event.Err)
//
// # Available Transports
//
//   - StdioTransport: Communication over stdin/stdout (for CLI tools)
//   - WebSocketTransport: Bidirectional over WebSocket (for real-time UIs)
//   - SSETransport: Server-Sent Events + HTTP POST (for web clients)
//
// # Usage
//
//	t := transport.NewStdioTransport(os.Stdin, os.Stdout, transport.DefaultConfig())
//	go t.Run(ctx)
//
//	for msg := range t.Recv() {
//	    if msg.Request != nil {
//	        result, err := handle(msg.Request)
//	        t.Send(&transport.OutboundMessage{
//	            Response: &transport.Response{
//	                JSONRPC: transport.Version,
//	                ID:      msg.Request.ID,
//	                Result:  result,
//	                Error:   transport.RPCError(err),
//	            },
//	        })
//	    }
//	}
//
// ToolHandler serves a tools.Registry over any of them.
//
// # Thread Safety
//
// All transport methods are safe for concurrent use. The Recv() channel
// is closed when the transport shuts down.
package transport
