package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type marker int

const (
	markerNone marker = iota
	markerSkill
	markerWorkflow
	markerMCP
	markerLocalFn
)

// markerFiles maps each inference marker file to the kind it implies
// (§4.4). tool.json is handled separately: its presence alone does not
// imply a kind, since manifest.Kind disambiguates.
var markerFiles = map[string]marker{
	"SKILL.md":      markerSkill,
	"workflow.json": markerWorkflow,
	"mcp.json":      markerMCP,
}

var errAmbiguousMarkers = errors.New("directory matches more than one inference marker")

func errNoLocalFnRegistration(name string) error {
	return fmt.Errorf("no local function registered for %q", name)
}

// classify inspects dir's immediate contents and returns the marker that
// applies. Multiple inference markers in the same directory is an error;
// an explicit tool.json manifest with a "kind" field takes precedence over
// markers and never conflicts with them.
func classify(dir string) (m marker, ambiguous bool) {
	if man, err := loadToolJSON(dir); err == nil && man != nil && man.Kind != "" {
		return kindToMarker(man.Kind), false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return markerNone, false
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}

	var found []marker
	for file, mk := range markerFiles {
		if _, ok := names[file]; ok {
			found = append(found, mk)
		}
	}
	if hasEntryFile(names) {
		found = append(found, markerLocalFn)
	}
	if _, ok := names["tool.json"]; ok && len(found) == 0 {
		// A bare tool.json with no kind and no marker file cannot be
		// classified; treat it as a manifest-phase failure upstream by
		// returning markerNone here and letting load() report it via an
		// empty spec (skipped, not an error — manifests without any
		// resolvable kind are simply inert).
		return markerNone, false
	}
	if len(found) == 0 {
		return markerNone, false
	}
	if len(found) > 1 {
		return markerNone, true
	}
	return found[0], false
}

func hasEntryFile(names map[string]struct{}) bool {
	for _, n := range []string{"index.js", "index.mjs"} {
		if _, ok := names[n]; ok {
			return true
		}
	}
	return false
}

func kindToMarker(kind string) marker {
	switch kind {
	case "skill":
		return markerSkill
	case "workflow":
		return markerWorkflow
	case "rpc-tool":
		return markerMCP
	case "local-fn":
		return markerLocalFn
	default:
		return markerNone
	}
}

// manifest is the generic shape of tool.json: the fields every kind loader
// may read, merged with the kind's own inferred defaults.
type manifest struct {
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Enabled      *bool          `json:"enabled"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	Capabilities []string       `json:"capabilities"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
	Version      string         `json:"version"`

	// rpc-tool fields
	Command    string                    `json:"command"`
	Args       []string                  `json:"args"`
	Env        map[string]string         `json:"env"`
	URL        string                    `json:"url"`
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`

	// workflow fields
	ID    string           `json:"id"`
	Nodes []map[string]any `json:"nodes"`
}

type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	URL     string            `json:"url"`
}

func loadToolJSON(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "tool.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse tool.json: %w", err)
	}
	return &m, nil
}

// readManifest reads tool.json for the given directory/marker. For kinds
// driven primarily by their own marker file (mcp.json, workflow.json), that
// file is read instead when tool.json is absent.
func readManifest(dir string, m marker) (*manifest, error) {
	man, err := loadToolJSON(dir)
	if err != nil {
		return nil, err
	}
	if man != nil {
		return man, nil
	}

	var markerFile string
	switch m {
	case markerMCP:
		markerFile = "mcp.json"
	case markerWorkflow:
		markerFile = "workflow.json"
	default:
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var fromMarker manifest
	if err := json.Unmarshal(data, &fromMarker); err != nil {
		return nil, fmt.Errorf("parse %s: %w", markerFile, err)
	}
	return &fromMarker, nil
}
