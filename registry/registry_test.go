package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
)

func spec(name, kind string, tags []string, caps []toolhub.Capability) toolhub.ToolSpec {
	return toolhub.ToolSpec{
		Name:         toolhub.Name(name),
		Version:      "1.0.0",
		Kind:         toolhub.ToolKind(kind),
		Description:  "does things with " + name,
		Tags:         tags,
		Capabilities: caps,
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
	}
}

func TestRegisterGetUnregister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(spec("fs/read", "core", nil, nil)))

	got, ok := r.Get("fs/read")
	require.True(t, ok)
	require.Equal(t, toolhub.Name("fs/read"), got.Name)

	r.Unregister("fs/read")
	_, ok = r.Get("fs/read")
	require.False(t, ok)

	// unregistering an absent name is a no-op, not an error
	r.Unregister("fs/read")
}

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	r := New()
	err := r.Register(toolhub.ToolSpec{Name: "bad"})
	require.Error(t, err)
	require.Equal(t, 0, r.Size())
}

func TestReRegisterOverwritesInPlace(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(spec("a", "core", nil, nil)))
	require.NoError(t, r.Register(spec("b", "core", nil, nil)))
	require.NoError(t, r.Register(spec("a", "local-fn", nil, nil)))

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, toolhub.Name("a"), list[0].Name)
	require.Equal(t, toolhub.ToolKind("local-fn"), list[0].Kind)
	require.Equal(t, toolhub.Name("b"), list[1].Name)
}

func TestSearchIsConjunctiveAndOrdered(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(spec("fs/read-file", "core", []string{"fs", "read"}, []toolhub.Capability{toolhub.CapabilityReadFS})))
	require.NoError(t, r.Register(spec("fs/write-file", "core", []string{"fs", "write"}, []toolhub.Capability{toolhub.CapabilityWriteFS})))
	require.NoError(t, r.Register(spec("net/fetch", "rpc-tool", []string{"net"}, []toolhub.Capability{toolhub.CapabilityNetwork})))

	results := r.Search(Filter{Text: "fs"})
	require.Len(t, results, 2)
	require.Equal(t, toolhub.Name("fs/read-file"), results[0].Name)
	require.Equal(t, toolhub.Name("fs/write-file"), results[1].Name)

	results = r.Search(Filter{Kind: "core", Tags: []string{"read"}})
	require.Len(t, results, 1)
	require.Equal(t, toolhub.Name("fs/read-file"), results[0].Name)

	results = r.Search(Filter{Capabilities: []toolhub.Capability{toolhub.CapabilityReadFS, toolhub.CapabilityWriteFS}})
	require.Empty(t, results)
}

func TestBulkRegisterAndClear(t *testing.T) {
	r := New()
	err := r.BulkRegister([]toolhub.ToolSpec{
		spec("a", "core", nil, nil),
		spec("b", "core", nil, nil),
	})
	require.NoError(t, err)
	require.Equal(t, 2, r.Size())

	r.Clear()
	require.Equal(t, 0, r.Size())
	require.Empty(t, r.List())
}

func TestBulkRegisterStopsAtFirstInvalid(t *testing.T) {
	r := New()
	err := r.BulkRegister([]toolhub.ToolSpec{
		spec("a", "core", nil, nil),
		{Name: "bad"},
		spec("c", "core", nil, nil),
	})
	require.Error(t, err)
	require.Equal(t, 1, r.Size())
	_, ok := r.Get("c")
	require.False(t, ok)
}
