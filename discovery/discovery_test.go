package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter/localfn"
)

func toolSpecFor(name string) toolhub.ToolSpec {
	return toolhub.ToolSpec{
		Name:         toolhub.Name(name),
		Version:      "1.0.0",
		Description:  "test fixture",
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanWorkflowDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "render", "workflow.json"), `{
		"id": "render-v1",
		"nodes": [{"type": "prompt"}, {"type": "sample"}]
	}`)

	s := New(Options{Roots: []Root{{Path: root, Namespace: "media"}}})
	result := s.Scan(context.Background())
	require.Len(t, result.Specs, 1)
	require.Equal(t, "media/render", string(result.Specs[0].Name))
	require.Equal(t, "render-v1", result.Specs[0].ResourceID)
}

func TestScanSkillDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "pdf-extract")
	writeFile(t, filepath.Join(dir, "SKILL.md"), "---\nname: pdf-extract\ndescription: Extract text from PDFs.\n---\n\nDo the extraction.\n")
	writeFile(t, filepath.Join(dir, "extract.py"), "# extraction code\n")

	s := New(Options{Roots: []Root{{Path: root, Namespace: "tools"}}})
	result := s.Scan(context.Background())
	require.Len(t, result.Specs, 1)
	require.Equal(t, "pdf-extract", string(result.Specs[0].Name))
}

func TestScanLocalFnDirectory(t *testing.T) {
	localfn.RegisterFunc(toolSpecFor("fns/discovery-test-echo"), func(ctx context.Context, input map[string]any) (any, error) {
		return input, nil
	})

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "discovery-test-echo", "index.js"), "module.exports = {}\n")

	s := New(Options{Roots: []Root{{Path: root, Namespace: "fns"}}})
	result := s.Scan(context.Background())
	require.Len(t, result.Specs, 1)
	require.Equal(t, "fns/discovery-test-echo", string(result.Specs[0].Name))
}

func TestScanReportsAmbiguousMarkers(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "confused")
	writeFile(t, filepath.Join(dir, "SKILL.md"), "---\nname: x\ndescription: y\n---\nbody\n")
	writeFile(t, filepath.Join(dir, "workflow.json"), `{"nodes":[{}]}`)

	var errs []*LoadError
	s := New(Options{
		Roots:   []Root{{Path: root, Namespace: "ns"}},
		OnError: func(err *LoadError) { errs = append(errs, err) },
	})
	result := s.Scan(context.Background())
	require.Empty(t, result.Specs)
	require.Len(t, errs, 1)
	require.Equal(t, PhaseManifest, errs[0].Phase)
}

func TestScanSkipsDisabledDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "off", "workflow.json"), `{"enabled": false, "nodes": [{}]}`)

	s := New(Options{Roots: []Root{{Path: root, Namespace: "ns"}}})
	result := s.Scan(context.Background())
	require.Empty(t, result.Specs)
}
