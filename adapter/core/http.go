package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	goa "goa.design/goa/v3/pkg"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

func (a *Adapter) registerHTTPTools() {
	a.register(toolhub.ToolSpec{
		Name: "http/fetchText", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "Fetch a URL and return its body as text",
		Capabilities: []toolhub.Capability{toolhub.CapabilityNetwork},
		InputSchema:  objSchema([]string{"url"}, map[string]any{"url": stringSchema("absolute http(s) URL")}),
		OutputSchema: objSchema([]string{"body", "status"}, map[string]any{
			"body": stringSchema("response body"), "status": map[string]any{"type": "number"},
		}),
	}, a.httpFetchText)

	a.register(toolhub.ToolSpec{
		Name: "http/fetchJSON", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "Fetch a URL and decode its body as JSON",
		Capabilities: []toolhub.Capability{toolhub.CapabilityNetwork},
		InputSchema:  objSchema([]string{"url"}, map[string]any{"url": stringSchema("absolute http(s) URL")}),
		OutputSchema: objSchema(nil, map[string]any{"json": map[string]any{}, "status": map[string]any{"type": "number"}}),
	}, a.httpFetchJSON)
}

// serviceError shapes a core HTTP failure using goa's runtime-only
// ServiceError type for its Name/Message convention, then wraps it in a
// ToolError carrying kind so toolerrors.KindOf classifies it uniformly with
// every other adapter's errors.
func serviceError(name, message string, kind toolhub.ErrorKind) error {
	svcErr := &goa.ServiceError{Name: name, Message: message}
	return toolerrors.NewWithCause(message, svcErr).WithKind(string(kind))
}

func (a *Adapter) doFetch(ctx context.Context, rawURL string) (*http.Response, error) {
	if rawURL == "" {
		return nil, serviceError("missing_url", "url is required", toolhub.ErrorInputSchemaInvalid)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, serviceError("bad_request", err.Error(), toolhub.ErrorHTTPDisallowedHost)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, serviceError("timeout", err.Error(), toolhub.ErrorHTTPTimeout)
		}
		return nil, serviceError("fetch_failed", err.Error(), toolhub.ErrorUpstream)
	}
	return resp, nil
}

func readLimited(body io.ReadCloser) ([]byte, error) {
	defer body.Close()
	limited := io.LimitReader(body, maxHTTPBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxHTTPBytes {
		return nil, serviceError("too_large", "response exceeds size limit", toolhub.ErrorHTTPTooLarge)
	}
	return data, nil
}

func (a *Adapter) httpFetchText(ctx context.Context, args map[string]any) (adapter.Outcome, error) {
	rawURL, _ := args["url"].(string)
	resp, err := a.doFetch(ctx, rawURL)
	if err != nil {
		return adapter.Outcome{}, err
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return adapter.Outcome{}, err
	}
	return adapter.Outcome{Result: map[string]any{"body": string(data), "status": resp.StatusCode}}, nil
}

func (a *Adapter) httpFetchJSON(ctx context.Context, args map[string]any) (adapter.Outcome, error) {
	rawURL, _ := args["url"].(string)
	resp, err := a.doFetch(ctx, rawURL)
	if err != nil {
		return adapter.Outcome{}, err
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return adapter.Outcome{}, err
	}
	var decoded any
	if jsonErr := json.Unmarshal(data, &decoded); jsonErr != nil {
		return adapter.Outcome{}, serviceError("invalid_json", jsonErr.Error(), toolhub.ErrorUpstream)
	}
	return adapter.Outcome{Result: map[string]any{"json": decoded, "status": resp.StatusCode}}, nil
}
