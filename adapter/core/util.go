package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
)

func (a *Adapter) registerUtilTools() {
	a.register(toolhub.ToolSpec{
		Name: "util/now", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "Return the current UTC time in RFC3339 form",
		OutputSchema: objSchema([]string{"now"}, map[string]any{"now": stringSchema("RFC3339 timestamp")}),
	}, a.utilNow)

	a.register(toolhub.ToolSpec{
		Name: "util/uuid", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "Generate a random UUIDv4",
		OutputSchema: objSchema([]string{"uuid"}, map[string]any{"uuid": stringSchema("generated UUID")}),
	}, a.utilUUID)
}

func (a *Adapter) utilNow(context.Context, map[string]any) (adapter.Outcome, error) {
	return adapter.Outcome{Result: map[string]any{"now": time.Now().UTC().Format(time.RFC3339)}}, nil
}

func (a *Adapter) utilUUID(context.Context, map[string]any) (adapter.Outcome, error) {
	return adapter.Outcome{Result: map[string]any{"uuid": uuid.NewString()}}, nil
}
