package localfn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
	"toolhub.dev/hub/toolerrors"
)

func TestRegisterAndInvoke(t *testing.T) {
	defer reset()
	RegisterFunc(toolhub.ToolSpec{Name: "math/double", Version: "1.0.0"}, func(_ context.Context, input map[string]any) (any, error) {
		n, _ := input["n"].(float64)
		return map[string]any{"doubled": n * 2}, nil
	})

	a := New()
	specs, err := a.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, toolhub.ToolKindLocalFn, specs[0].Kind)

	out, err := a.Invoke(context.Background(), &specs[0], map[string]any{"n": 3.0}, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"doubled": 6.0}, out.Result)
}

func TestInvokeWrapsBareValue(t *testing.T) {
	defer reset()
	RegisterFunc(toolhub.ToolSpec{Name: "text/shout"}, func(_ context.Context, input map[string]any) (any, error) {
		return "HELLO", nil
	})
	a := New()
	specs, _ := a.ListTools(context.Background())
	out, err := a.Invoke(context.Background(), &specs[0], nil, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"output": "HELLO"}, out.Result)
}

func TestInvokeUnknownToolReturnsNotFound(t *testing.T) {
	defer reset()
	a := New()
	spec := &toolhub.ToolSpec{Name: "nope"}
	_, err := a.Invoke(context.Background(), spec, nil, nil)
	require.Error(t, err)
	require.Equal(t, string(toolhub.ErrorToolNotFound), toolerrors.KindOf(err))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	defer reset()
	RegisterFunc(toolhub.ToolSpec{Name: "dup"}, func(context.Context, map[string]any) (any, error) { return nil, nil })
	require.Panics(t, func() {
		RegisterFunc(toolhub.ToolSpec{Name: "dup"}, func(context.Context, map[string]any) (any, error) { return nil, nil })
	})
}
