package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

func defFor(name string, allowed ...string) toolhub.SkillDefinition {
	return toolhub.SkillDefinition{
		Frontmatter:  toolhub.SkillFrontmatter{Name: name, Description: "desc", AllowedTools: allowed},
		Instructions: "do the thing",
		DirPath:      "/skills/" + name,
	}
}

func TestInvokeWithoutHandlerReturnsInstructionPayload(t *testing.T) {
	a := New(nil)
	a.Register("demo/skill", Registration{Definition: defFor("demo/skill")})

	spec := &toolhub.ToolSpec{Name: "demo/skill"}
	out, err := a.Invoke(context.Background(), spec, nil, &toolhub.ExecContext{})
	require.NoError(t, err)
	result, ok := out.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "do the thing", result["instructions"])
}

func TestInvokeUnregisteredToolNotFound(t *testing.T) {
	a := New(nil)
	spec := &toolhub.ToolSpec{Name: "demo/missing"}
	_, err := a.Invoke(context.Background(), spec, nil, &toolhub.ExecContext{})
	require.Error(t, err)
	require.Equal(t, string(toolhub.ErrorToolNotFound), toolerrors.KindOf(err))
}

func TestHandlerInvokedWithSkillScopedContext(t *testing.T) {
	a := New(nil)
	a.Register("demo/skill", Registration{
		Definition: defFor("demo/skill"),
		Handler: func(ctx context.Context, skillCtx Context, args map[string]any) (adapter.Outcome, error) {
			return adapter.Outcome{Result: map[string]any{"echo": args["msg"]}}, nil
		},
	})

	spec := &toolhub.ToolSpec{Name: "demo/skill"}
	out, err := a.Invoke(context.Background(), spec, map[string]any{"msg": "hi"}, &toolhub.ExecContext{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"echo": "hi"}, out.Result)
}

func TestSubToolInvocationGatedByAllowedTools(t *testing.T) {
	var invokedName string
	invoker := func(ctx context.Context, name string, args map[string]any) (toolhub.ToolResult, error) {
		invokedName = name
		return toolhub.ToolResult{OK: true}, nil
	}

	a := New(invoker)
	a.Register("demo/skill", Registration{
		Definition: defFor("demo/skill", "demo/allowed"),
		Handler: func(ctx context.Context, skillCtx Context, args map[string]any) (adapter.Outcome, error) {
			_, err := skillCtx.InvokeTool(ctx, "demo/denied", nil)
			require.Error(t, err)
			require.Equal(t, string(toolhub.ErrorPolicyDenied), toolerrors.KindOf(err))

			res, err := skillCtx.InvokeTool(ctx, "demo/allowed", nil)
			require.NoError(t, err)
			return adapter.Outcome{Result: res}, nil
		},
	})

	spec := &toolhub.ToolSpec{Name: "demo/skill"}
	_, err := a.Invoke(context.Background(), spec, nil, &toolhub.ExecContext{})
	require.NoError(t, err)
	require.Equal(t, "demo/allowed", invokedName)
}

func TestResourcesByTypeFilters(t *testing.T) {
	def := defFor("demo/skill")
	def.Resources = []toolhub.SkillResource{
		{RelativePath: "a.md", Type: toolhub.ResourceInstructions},
		{RelativePath: "b.py", Type: toolhub.ResourceCode},
	}

	var captured []toolhub.SkillResource
	a := New(nil)
	a.Register("demo/skill", Registration{
		Definition: def,
		Handler: func(ctx context.Context, skillCtx Context, args map[string]any) (adapter.Outcome, error) {
			captured = skillCtx.ResourcesByType(toolhub.ResourceCode)
			return adapter.Outcome{}, nil
		},
	})

	spec := &toolhub.ToolSpec{Name: "demo/skill"}
	_, err := a.Invoke(context.Background(), spec, nil, &toolhub.ExecContext{})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	require.Equal(t, "b.py", captured[0].RelativePath)
}
