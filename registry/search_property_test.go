package registry

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"toolhub.dev/hub"
)

// TestSearchCompletenessProperty verifies §8's "Registry search completeness"
// invariant: a tool registered with tags T and capabilities C is returned by
// any search filter whose constraints are subsets of T and C.
func TestSearchCompletenessProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a registered spec is found by any subset filter", prop.ForAll(
		func(tc searchCompletenessCase) bool {
			r := New()
			if err := r.Register(toolhub.ToolSpec{
				Name: toolhub.Name(tc.name), Version: "1.0.0", Kind: toolhub.ToolKindCore,
				Description:  tc.description,
				Tags:         tc.tags,
				Capabilities: tc.capabilities,
				InputSchema:  map[string]any{"type": "object"},
				OutputSchema: map[string]any{"type": "object"},
			}); err != nil {
				return false
			}

			results := r.Search(Filter{
				Kind:         toolhub.ToolKindCore,
				Tags:         subset(tc.tags, tc.tagSubsetSeed),
				Capabilities: subsetCaps(tc.capabilities, tc.capSubsetSeed),
			})

			for _, res := range results {
				if res.Name == toolhub.Name(tc.name) {
					return true
				}
			}
			return false
		},
		genSearchCompletenessCase(),
	))

	properties.TestingRun(t)
}

// TestRegisterGetRoundTripProperty verifies §8's round-trip invariant:
// registering a spec then Get(name) yields a structurally equal spec.
func TestRegisterGetRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Get after Register returns a structurally equal spec", prop.ForAll(
		func(tc searchCompletenessCase) bool {
			r := New()
			spec := toolhub.ToolSpec{
				Name: toolhub.Name(tc.name), Version: "1.0.0", Kind: toolhub.ToolKindCore,
				Description:  tc.description,
				Tags:         tc.tags,
				Capabilities: tc.capabilities,
				InputSchema:  map[string]any{"type": "object"},
				OutputSchema: map[string]any{"type": "object"},
			}
			if err := r.Register(spec); err != nil {
				return false
			}

			got, ok := r.Get(toolhub.Name(tc.name))
			if !ok {
				return false
			}
			return reflect.DeepEqual(spec, got)
		},
		genSearchCompletenessCase(),
	))

	properties.TestingRun(t)
}

func subset(values []string, seed int) []string {
	if len(values) == 0 {
		return nil
	}
	n := seed % (len(values) + 1)
	return append([]string{}, values[:n]...)
}

func subsetCaps(values []toolhub.Capability, seed int) []toolhub.Capability {
	if len(values) == 0 {
		return nil
	}
	n := seed % (len(values) + 1)
	return append([]toolhub.Capability{}, values[:n]...)
}

type searchCompletenessCase struct {
	name          string
	description   string
	tags          []string
	capabilities  []toolhub.Capability
	tagSubsetSeed int
	capSubsetSeed int
}

func genSearchCompletenessCase() gopter.Gen {
	return gopter.CombineGens(
		genAlphaString(1, 20),
		genAlphaString(0, 50),
		gen.SliceOfN(3, genAlphaString(1, 10)),
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	).Map(func(vals []any) searchCompletenessCase {
		tags := vals[2].([]string)
		caps := make([]toolhub.Capability, len(tags))
		for i, tag := range tags {
			caps[i] = toolhub.Capability(fmt.Sprintf("cap:%s", tag))
		}
		return searchCompletenessCase{
			name:          fmt.Sprintf("pkg/%s", vals[0].(string)),
			description:   vals[1].(string),
			tags:          tags,
			capabilities:  caps,
			tagSubsetSeed: vals[3].(int),
			capSubsetSeed: vals[4].(int),
		}
	})
}

func genAlphaString(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(length any) gopter.Gen {
		return gen.SliceOfN(length.(int), gen.AlphaChar()).Map(func(chars []rune) string {
			return string(chars)
		})
	}, reflect.TypeOf(""))
}
