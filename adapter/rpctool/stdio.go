package rpctool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"toolhub.dev/hub"
)

// StdioCaller implements Caller over a long-lived child process speaking
// newline-delimited JSON-RPC 2.0 on stdin/stdout, the same framing the
// donor's stdio MCP client expects from its server processes.
type StdioCaller struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex // serializes request/response round-trips
	nextID int64
}

// StdioOptions configures the child process command and arguments.
type StdioOptions struct {
	Command string
	Args    []string
}

// NewStdioCaller starts the configured command and returns a Caller bound to
// its stdin/stdout pipes. The process is left running until Close is called.
func NewStdioCaller(opts StdioOptions) (*StdioCaller, error) {
	cmd := exec.Command(opts.Command, opts.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("rpctool: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("rpctool: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("rpctool: start %s: %w", opts.Command, err)
	}
	return &StdioCaller{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// Close terminates the child process.
func (c *StdioCaller) Close() error {
	_ = c.stdin.Close()
	return c.cmd.Process.Kill()
}

func (c *StdioCaller) roundTrip(_ context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.stdin.Write(append(body, '\n')); err != nil {
		return nil, fmt.Errorf("rpctool: write request: %w", err)
	}
	for {
		line, err := c.stdout.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("rpctool: read response: %w", err)
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue // skip non-JSON-RPC noise on stdout
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error.asError()
		}
		return resp.Result, nil
	}
}

// ListTools implements Caller.
func (c *StdioCaller) ListTools(ctx context.Context) ([]toolhub.ToolSpec, error) {
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
func (c *StdioCaller) CallTool(ctx context.Context, name string, args map[string]any) (any, bool, error) {
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
