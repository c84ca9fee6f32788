// Package schema wraps a JSON-Schema validator with a compile-once-per-schema
// cache, type coercion, default-fill, and a normalization pass that repairs
// common schema drift (§4.6). The compiled validator is keyed by a
// canonicalized serialization of the schema document, not object identity,
// so equivalent schemas constructed independently still share one compiled
// validator.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"toolhub.dev/hub/toolerrors"
)

// Result is the outcome of a single Validate call.
type Result struct {
	Valid  bool
	Data   any
	Errors []string
}

// Validator compiles and caches JSON-Schema validators keyed by a
// canonicalized form of the schema document.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// New returns an empty, ready-to-use Validator.
func New() *Validator {
	return &Validator{cache: make(map[string]*jsonschema.Schema)}
}

// canonicalKey produces a stable cache key for schema by re-marshaling it
// with sorted map keys.
func canonicalKey(schemaDoc map[string]any) (string, error) {
	normalized := normalize(schemaDoc)
	return canonicalJSON(normalized)
}

func canonicalJSON(v any) (string, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vs, err := canonicalJSON(val[k])
			if err != nil {
				return "", err
			}
			buf.WriteString(vs)
		}
		buf.WriteByte('}')
		return buf.String(), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			vs, err := canonicalJSON(e)
			if err != nil {
				return "", err
			}
			buf.WriteString(vs)
		}
		buf.WriteByte(']')
		return buf.String(), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// normalize repairs common schema drift documented in §4.6/§9: `required`
// arriving as a single string is rewritten into a one-element array, and
// `nullable:true` is rewritten to include "null" in `type`.
func normalize(schemaDoc map[string]any) map[string]any {
	out := make(map[string]any, len(schemaDoc))
	for k, v := range schemaDoc {
		out[k] = v
	}
	if req, ok := out["required"].(string); ok {
		out["required"] = []any{req}
	}
	if nullable, ok := out["nullable"].(bool); ok && nullable {
		delete(out, "nullable")
		switch t := out["type"].(type) {
		case string:
			if t != "null" {
				out["type"] = []any{t, "null"}
			}
		case []any:
			found := false
			for _, e := range t {
				if s, ok := e.(string); ok && s == "null" {
					found = true
				}
			}
			if !found {
				out["type"] = append(t, "null")
			}
		}
	}
	for k, v := range out {
		if sub, ok := v.(map[string]any); ok {
			out[k] = normalize(sub)
		}
	}
	return out
}

// compile returns the cached compiled validator for schemaDoc, compiling and
// caching it on first use.
func (v *Validator) compile(schemaDoc map[string]any) (*jsonschema.Schema, error) {
	key, err := canonicalKey(schemaDoc)
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	if sch, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return sch, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.cache[key]; ok {
		return sch, nil
	}

	normalized := normalize(schemaDoc)
	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	const resource = "mem://schema.json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, err
	}
	sch, err := compiler.Compile(resource)
	if err != nil {
		return nil, err
	}
	v.cache[key] = sch
	return sch, nil
}

// Validate validates data against schemaDoc in one pass: it coerces types,
// fills in omitted fields with their schema defaults, and validates the
// result, collecting any errors. On failure, unrecognized properties are
// additionally stripped from Data and validation retried once so callers see
// a best-effort coerced value alongside the error list (§4.6).
func (v *Validator) Validate(_ context.Context, schemaDoc map[string]any, data any) (Result, error) {
	sch, err := v.compile(schemaDoc)
	if err != nil {
		return Result{}, toolerrors.NewWithCause("compile schema", err)
	}

	coerced := coerceTypes(schemaDoc, deepCopy(data))
	filled := fillDefaults(schemaDoc, coerced)

	if err := sch.Validate(filled); err != nil {
		stripped := stripUnknown(schemaDoc, filled)
		if serr := sch.Validate(stripped); serr == nil {
			return Result{Valid: true, Data: stripped}, nil
		}
		return Result{Valid: false, Data: stripped, Errors: flattenErrors(err)}, nil
	}
	return Result{Valid: true, Data: filled}, nil
}

// ValidateOrThrow validates and returns a SchemaValidationError carrying the
// error list and context prefix on failure.
func (v *Validator) ValidateOrThrow(ctx context.Context, schemaDoc map[string]any, data any, context_ string) (any, error) {
	res, err := v.Validate(ctx, schemaDoc, data)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, &SchemaValidationError{Context: context_, Errors: res.Errors}
	}
	return res.Data, nil
}

// SchemaValidationError is thrown by ValidateOrThrow on a failed validation.
type SchemaValidationError struct {
	Context string
	Errors  []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: schema validation failed: %v", e.Context, e.Errors)
}

func flattenErrors(err error) []string {
	var verr *jsonschema.ValidationError
	if !asValidationError(err, &verr) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if ve == nil {
			return
		}
		out = append(out, ve.Error())
		for _, c := range ve.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		*target = ve
		return true
	}
	return false
}
