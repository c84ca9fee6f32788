package rpctool

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPCallerListAndCallTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var result json.RawMessage
		switch req.Method {
		case "tools/list":
			result, _ = json.Marshal(listToolsResult{Tools: []rpcToolDescriptor{
				{Name: "remote/sum", Version: "1.0.0"},
			}})
		case "tools/call":
			result, _ = json.Marshal(toolCallResult{StructuredContent: map[string]any{"sum": 3}})
		}
		_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
	defer srv.Close()

	caller := NewHTTPCaller(HTTPOptions{Endpoint: srv.URL})
	tools, err := caller.ListTools(t.Context())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "remote/sum", string(tools[0].Name))

	result, isError, err := caller.CallTool(t.Context(), "remote/sum", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	require.False(t, isError)
	require.Equal(t, map[string]any{"sum": float64(3)}, result)
}

func TestHTTPCallerPropagatesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "method not found"}})
	}))
	defer srv.Close()

	caller := NewHTTPCaller(HTTPOptions{Endpoint: srv.URL})
	_, _, err := caller.CallTool(t.Context(), "missing", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "method not found")
}
