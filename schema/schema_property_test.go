package schema

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestValidateSoundnessProperty verifies §8's schema-soundness invariant: for
// any set of distinct required string fields, data that supplies every field
// as a string always validates, and the returned Data still validates on a
// second pass (idempotent once valid).
func TestValidateSoundnessProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every required string field present yields Valid", prop.ForAll(
		func(fields []string) bool {
			schemaDoc, data := buildRequiredStringSchema(fields)
			v := New()

			res, err := v.Validate(context.Background(), schemaDoc, data)
			if err != nil || !res.Valid {
				return false
			}

			again, err := v.Validate(context.Background(), schemaDoc, res.Data)
			return err == nil && again.Valid
		},
		genDistinctFieldNames(),
	))

	properties.TestingRun(t)
}

func buildRequiredStringSchema(fields []string) (map[string]any, map[string]any) {
	props := make(map[string]any, len(fields))
	data := make(map[string]any, len(fields))
	required := make([]any, len(fields))
	for i, f := range fields {
		props[f] = map[string]any{"type": "string"}
		data[f] = fmt.Sprintf("value-%d", i)
		required[i] = f
	}
	return map[string]any{
		"type":       "object",
		"required":   required,
		"properties": props,
	}, data
}

func genDistinctFieldNames() gopter.Gen {
	return gen.SliceOfN(5, genAlphaString(1, 10)).Map(func(names []string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = fmt.Sprintf("f%d_%s", i, n)
		}
		return out
	})
}

func genAlphaString(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(length any) gopter.Gen {
		return gen.SliceOfN(length.(int), gen.AlphaChar()).Map(func(chars []rune) string {
			return string(chars)
		})
	}, reflect.TypeOf(""))
}
