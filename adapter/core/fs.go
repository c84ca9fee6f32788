package core

import (
	"context"
	"os"
	"path/filepath"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

func errKind(kind toolhub.ErrorKind, format string, args ...any) error {
	return toolerrors.Errorf(format, args...).WithKind(string(kind))
}

func (a *Adapter) registerFSTools() {
	a.register(toolhub.ToolSpec{
		Name: "fs/readText", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "Read a UTF-8 text file from disk",
		Capabilities: []toolhub.Capability{toolhub.CapabilityReadFS},
		InputSchema:  objSchema([]string{"path"}, map[string]any{"path": stringSchema("file path")}),
		OutputSchema: objSchema([]string{"content"}, map[string]any{"content": stringSchema("file contents")}),
	}, a.fsReadText)

	a.register(toolhub.ToolSpec{
		Name: "fs/writeText", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "Write a UTF-8 text file to disk, creating parent directories as needed",
		Capabilities: []toolhub.Capability{toolhub.CapabilityWriteFS},
		InputSchema: objSchema([]string{"path", "content"}, map[string]any{
			"path": stringSchema("file path"), "content": stringSchema("text to write"),
		}),
		OutputSchema: objSchema([]string{"bytesWritten"}, map[string]any{"bytesWritten": map[string]any{"type": "number"}}),
	}, a.fsWriteText)

	a.register(toolhub.ToolSpec{
		Name: "fs/listDir", Version: "1.0.0", Kind: toolhub.ToolKindCore,
		Description:  "List entries in a directory",
		Capabilities: []toolhub.Capability{toolhub.CapabilityReadFS},
		InputSchema:  objSchema([]string{"path"}, map[string]any{"path": stringSchema("directory path")}),
		OutputSchema: objSchema([]string{"entries"}, map[string]any{"entries": map[string]any{"type": "array", "items": map[string]any{"type": "string"}}}),
	}, a.fsListDir)
}

func (a *Adapter) fsReadText(_ context.Context, args map[string]any) (adapter.Outcome, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return adapter.Outcome{}, errKind(toolhub.ErrorInputSchemaInvalid, "path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return adapter.Outcome{}, errKind(toolhub.ErrorUpstream, "stat %s: %v", path, err)
	}
	if info.Size() > maxFileBytes {
		return adapter.Outcome{}, errKind(toolhub.ErrorFileTooLarge, "file %s exceeds %d bytes", path, maxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return adapter.Outcome{}, errKind(toolhub.ErrorUpstream, "read %s: %v", path, err)
	}
	return adapter.Outcome{Result: map[string]any{"content": string(data)}}, nil
}

func (a *Adapter) fsWriteText(_ context.Context, args map[string]any) (adapter.Outcome, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return adapter.Outcome{}, errKind(toolhub.ErrorInputSchemaInvalid, "path is required")
	}
	if len(content) > maxFileBytes {
		return adapter.Outcome{}, errKind(toolhub.ErrorFileTooLarge, "content exceeds %d bytes", maxFileBytes)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return adapter.Outcome{}, errKind(toolhub.ErrorUpstream, "mkdir %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return adapter.Outcome{}, errKind(toolhub.ErrorUpstream, "write %s: %v", path, err)
	}
	return adapter.Outcome{Result: map[string]any{"bytesWritten": len(content)}}, nil
}

func (a *Adapter) fsListDir(_ context.Context, args map[string]any) (adapter.Outcome, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return adapter.Outcome{}, errKind(toolhub.ErrorInputSchemaInvalid, "path is required")
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return adapter.Outcome{}, errKind(toolhub.ErrorUpstream, "readdir %s: %v", path, err)
	}
	names := make([]any, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return adapter.Outcome{Result: map[string]any{"entries": names}}, nil
}
