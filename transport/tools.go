package transport

import (
	"context"
	"encoding/json"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/tools"
)

// Tool methods served by ToolHandler.
const (
	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"
)

// ToolCallParams are the params of a tools/call request.
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ToolCallResult is the result of a successful tools/call request.
type ToolCallResult struct {
	Tool   string      `json:"tool"`
	Output interface{} `json:"output"`
}

// ToolListResult is the result of a tools/list request.
type ToolListResult struct {
	Tools []tools.ToolDefinition `json:"tools"`
}

// ToolHandler serves a tool registry over JSON-RPC. Failures from the
// registry are returned unchanged so RPCError can map them: an unknown tool
// becomes MethodNotFound and rejected arguments InvalidParams.
func ToolHandler(reg *tools.Registry) Handler {
	return HandlerFunc(func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
		switch method {
		case MethodToolsList:
			return ToolListResult{Tools: reg.Definitions()}, nil
		case MethodToolsCall:
			var call ToolCallParams
			if len(params) == 0 {
				return nil, errors.Validation("params are required")
			}
			if err := json.Unmarshal(params, &call); err != nil {
				return nil, errors.Validation("invalid params: "+err.Error(), errors.WithCause(err))
			}
			if call.Name == "" {
				return nil, errors.Validation("tool name is required")
			}
			output, err := reg.Execute(ctx, call.Name, call.Arguments)
			if err != nil {
				return nil, err
			}
			return ToolCallResult{Tool: call.Name, Output: output}, nil
		default:
			return nil, methodNotFound(method)
		}
	})
}
