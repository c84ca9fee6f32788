package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/adapter/localfn"
	"toolhub.dev/hub/adapter/rpctool"
	"toolhub.dev/hub/adapter/workflow"
	"toolhub.dev/hub/skillparser"
)

// passthroughSchema is used wherever a kind's manifest carries no explicit
// inputSchema/outputSchema: ToolSpec.Validate requires both present, and
// skills/workflows in particular are not schema-typed in the data model.
func passthroughSchema() map[string]any {
	return map[string]any{"type": "object"}
}

// skillLoader parses SKILL.md bundles (§4.4).
type skillLoader struct{}

func (l *skillLoader) load(dir, name string) (*toolhub.ToolSpec, error) {
	manifestPath := filepath.Join(dir, "SKILL.md")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read SKILL.md: %w", err)
	}
	fm, body, err := skillparser.Parse(data)
	if err != nil {
		return nil, err
	}
	resources, err := skillparser.ScanResources(dir, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("scan skill resources: %w", err)
	}

	def := toolhub.SkillDefinition{
		Frontmatter:  fm,
		Instructions: body,
		Resources:    resources,
		DirPath:      dir,
		ManifestPath: manifestPath,
	}

	specName := name
	if fm.Name != "" {
		specName = fm.Name
	}
	return &toolhub.ToolSpec{
		Name:         toolhub.Name(specName),
		Version:      "1.0.0",
		Kind:         toolhub.ToolKindSkill,
		Description:  fm.Description,
		InputSchema:  passthroughSchema(),
		OutputSchema: passthroughSchema(),
		Impl:         def,
	}, nil
}

// workflowLoader parses workflow.json bundles (§4.4).
type workflowLoader struct{}

func (l *workflowLoader) load(dir string, man *manifest, name string) (*toolhub.ToolSpec, error) {
	if man == nil || len(man.Nodes) == 0 {
		return nil, fmt.Errorf("workflow.json: nodes[] is required")
	}
	id := man.ID
	if id == "" {
		id = name
	}
	def := workflow.Definition{ID: id, Name: name, Nodes: man.Nodes}

	inputSchema := man.InputSchema
	if inputSchema == nil {
		inputSchema = passthroughSchema()
	}
	outputSchema := man.OutputSchema
	if outputSchema == nil {
		outputSchema = passthroughSchema()
	}
	version := man.Version
	if version == "" {
		version = "1.0.0"
	}
	return &toolhub.ToolSpec{
		Name:         toolhub.Name(name),
		Version:      version,
		Kind:         toolhub.ToolKindWorkflow,
		Description:  man.Description,
		Tags:         man.Tags,
		Capabilities: parseCapabilities(man.Capabilities),
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		ResourceID:   id,
		Impl:         def,
	}, nil
}

// rpcLoader parses mcp.json bundles (§4.4), dialing the configured
// transport and fetching its live tool list, since connection configuration
// (not a static tool list) is all the manifest itself carries.
type rpcLoader struct{}

func (l *rpcLoader) load(ctx context.Context, dir string, man *manifest, name string) (*toolhub.ToolSpec, adapter.Adapter, error) {
	if man == nil {
		return nil, nil, fmt.Errorf("mcp.json: missing manifest")
	}

	entry := resolveServerEntry(man, filepath.Base(dir))
	if entry.Command == "" && entry.URL == "" {
		return nil, nil, fmt.Errorf("mcp.json: at least one of command or url is required")
	}

	caller, err := dialEntry(entry)
	if err != nil {
		return nil, nil, err
	}
	a := rpctool.New(caller)

	specs, err := a.ListTools(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list remote tools: %w", err)
	}

	// The directory contributes exactly one ToolSpec to the caller
	// (Scanner.scanDir validates and registers a single returned spec): the
	// first tool the server advertises, renamed to the directory's tool
	// name. Any further tools the server advertises are not registered.
	primary := toolhub.ToolSpec{
		Name:         toolhub.Name(name),
		Version:      "1.0.0",
		Kind:         toolhub.ToolKindRPCTool,
		Description:  man.Description,
		Tags:         man.Tags,
		Capabilities: parseCapabilities(man.Capabilities),
		InputSchema:  passthroughSchema(),
		OutputSchema: passthroughSchema(),
		Endpoint:     firstNonEmpty(entry.URL, entry.Command),
	}
	if len(specs) > 0 {
		primary = specs[0]
		primary.Name = toolhub.Name(name)
	}
	return &primary, a, nil
}

func resolveServerEntry(man *manifest, leaf string) mcpServerEntry {
	if len(man.MCPServers) == 0 {
		return mcpServerEntry{Command: man.Command, Args: man.Args, Env: man.Env, URL: man.URL}
	}
	if e, ok := man.MCPServers[leaf]; ok {
		return e
	}
	// JSON object key order is not preserved through encoding/json into a
	// Go map; "the first entry" is taken as the lexicographically first key
	// for determinism.
	keys := make([]string, 0, len(man.MCPServers))
	for k := range man.MCPServers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return man.MCPServers[keys[0]]
}

func dialEntry(entry mcpServerEntry) (rpctool.Caller, error) {
	if entry.Command != "" {
		return rpctool.NewStdioCaller(rpctool.StdioOptions{Command: entry.Command, Args: entry.Args})
	}
	return rpctool.NewHTTPCaller(rpctool.HTTPOptions{Endpoint: entry.URL}), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// localfnLoader looks up a directory's expected registration in the
// compile-time local-function plugin registry (§7).
type localfnLoader struct{}

func (l *localfnLoader) load(name string) (toolhub.ToolSpec, bool) {
	return localfn.Lookup(name)
}

func parseCapabilities(raw []string) []toolhub.Capability {
	if raw == nil {
		return nil
	}
	out := make([]toolhub.Capability, 0, len(raw))
	for _, r := range raw {
		out = append(out, toolhub.Capability(r))
	}
	return out
}
