package rpctool

import (
	"encoding/json"

	"toolhub.dev/hub"
)

// rpcRequest/rpcResponse mirror the JSON-RPC 2.0 envelope used by the stdio
// and HTTP transports, following the donor's runtime/mcp request/response
// shape (runtime/mcp/ssecaller.go).
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) asError() error {
	if e == nil {
		return nil
	}
	return &callError{code: e.Code, message: e.Message}
}

type callError struct {
	code    int
	message string
}

func (e *callError) Error() string { return e.message }

// toolCallResult is the decoded shape of a tools/call result, following
// MCP's content/isError convention.
type toolCallResult struct {
	Content           json.RawMessage `json:"content,omitempty"`
	StructuredContent any             `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// listToolsResult is the decoded shape of a tools/list result.
type listToolsResult struct {
	Tools []rpcToolDescriptor `json:"tools"`
}

// rpcToolDescriptor mirrors an MCP-style tool descriptor: the over-the-wire
// shape is independent of toolhub.ToolSpec so the transport layer doesn't
// need to know the Hub's internal field names.
type rpcToolDescriptor struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
}

func (d rpcToolDescriptor) toSpec() toolhub.ToolSpec {
	return toolhub.ToolSpec{
		Name: toolhub.Name(d.Name), Description: d.Description, Version: d.Version,
		InputSchema: d.InputSchema, OutputSchema: d.OutputSchema,
	}
}
