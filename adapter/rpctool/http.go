package rpctool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"toolhub.dev/hub"
)

// HTTPCaller implements Caller over a plain JSON-RPC 2.0 POST endpoint,
// the non-streaming counterpart to the donor's SSE-based MCP client
// (runtime/mcp/ssecaller.go): same envelope and error mapping, without the
// event-stream framing.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
	nextID   int64
}

// HTTPOptions configures the rpc-tool HTTP transport.
type HTTPOptions struct {
	Endpoint string
	Timeout  time.Duration
}

// NewHTTPCaller returns a Caller posting JSON-RPC requests to opts.Endpoint.
func NewHTTPCaller(opts HTTPOptions) *HTTPCaller {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCaller{endpoint: opts.Endpoint, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPCaller) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpctool: http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rpctool: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpctool: http status %d: %s", resp.StatusCode, string(raw))
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("rpctool: decode rpc envelope: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error.asError()
	}
	return rpcResp.Result, nil
}

// ListTools implements Caller.
func (c *HTTPCaller) ListTools(ctx context.Context) ([]toolhub.ToolSpec, error) {
	raw, err := c.roundTrip(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("rpctool: decode tools/list: %w", err)
	}
	specs := make([]toolhub.ToolSpec, len(result.Tools))
	for i, d := range result.Tools {
		specs[i] = d.toSpec()
	}
	return specs, nil
}

// CallTool implements Caller.
func (c *HTTPCaller) CallTool(ctx context.Context, name string, args map[string]any) (any, bool, error) {
	raw, err := c.roundTrip(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, false, err
	}
	var result toolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("rpctool: decode tools/call: %w", err)
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, result.IsError, nil
	}
	var content any
	if len(result.Content) > 0 {
		_ = json.Unmarshal(result.Content, &content)
	}
	return content, result.IsError, nil
}
