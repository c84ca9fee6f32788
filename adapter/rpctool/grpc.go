package rpctool

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"toolhub.dev/hub"
)

// GRPCCaller implements Caller over a generic gRPC service using
// structpb.Struct for dynamic request/response payloads, avoiding a
// per-back-end generated client: any server implementing the toolhub
// rpc-tool service contract can be called without codegen, following the
// donor pack's dynamic structpb.Struct tool-call encoding
// (kadirpekel-hector/pkg/protocol/helpers.go).
type GRPCCaller struct {
	conn        *grpc.ClientConn
	serviceName string
}

// GRPCOptions configures the rpc-tool gRPC transport. ServiceName defaults
// to "toolhub.rpctool.v1.ToolService" when empty.
type GRPCOptions struct {
	Conn        *grpc.ClientConn
	ServiceName string
}

// NewGRPCCaller returns a Caller bound to an established connection.
func NewGRPCCaller(opts GRPCOptions) *GRPCCaller {
	name := opts.ServiceName
	if name == "" {
		name = "toolhub.rpctool.v1.ToolService"
	}
	return &GRPCCaller{conn: opts.Conn, serviceName: name}
}

func (c *GRPCCaller) fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", c.serviceName, method)
}

// ListTools implements Caller.
func (c *GRPCCaller) ListTools(ctx context.Context) ([]toolhub.ToolSpec, error) {
	req := &structpb.Struct{}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, c.fullMethod("ListTools"), req, resp); err != nil {
		return nil, fmt.Errorf("rpctool: grpc ListTools: %w", err)
	}
	toolsVal, ok := resp.Fields["tools"]
	if !ok {
		return nil, nil
	}
	list := toolsVal.GetListValue()
	if list == nil {
		return nil, nil
	}
	specs := make([]toolhub.ToolSpec, 0, len(list.Values))
	for _, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			continue
		}
		descriptor := structToDescriptor(s)
		specs = append(specs, descriptor.toSpec())
	}
	return specs, nil
}

// CallTool implements Caller.
func (c *GRPCCaller) CallTool(ctx context.Context, name string, args map[string]any) (any, bool, error) {
	argStruct, err := structpb.NewStruct(args)
	if err != nil {
		return nil, false, fmt.Errorf("rpctool: encode args: %w", err)
	}
	req, err := structpb.NewStruct(map[string]any{"name": name, "arguments": argStruct.AsMap()})
	if err != nil {
		return nil, false, fmt.Errorf("rpctool: encode request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, c.fullMethod("CallTool"), req, resp); err != nil {
		return nil, false, fmt.Errorf("rpctool: grpc CallTool: %w", err)
	}
	m := resp.AsMap()
	isError, _ := m["isError"].(bool)
	result, ok := m["structuredContent"]
	if !ok {
		result = m["content"]
	}
	return result, isError, nil
}

func structToDescriptor(s *structpb.Struct) rpcToolDescriptor {
	m := s.AsMap()
	d := rpcToolDescriptor{}
	d.Name, _ = m["name"].(string)
	d.Description, _ = m["description"].(string)
	d.Version, _ = m["version"].(string)
	d.InputSchema, _ = m["inputSchema"].(map[string]any)
	d.OutputSchema, _ = m["outputSchema"].(map[string]any)
	return d
}
