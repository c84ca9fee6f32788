package schema

import "strconv"

// deepCopy returns a structural copy of v (maps/slices only; scalars are
// copied by value) so mutation during coercion never touches the caller's
// original args.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

func schemaType(schemaDoc map[string]any) string {
	t, _ := schemaDoc["type"].(string)
	return t
}

func properties(schemaDoc map[string]any) map[string]any {
	props, _ := schemaDoc["properties"].(map[string]any)
	return props
}

// coerceTypes walks data alongside schemaDoc, converting loosely-typed
// leaves (numeric strings, "true"/"false") to the schema's declared type.
// Coercion is best-effort: anything it cannot safely convert is left as-is
// for the validator to reject.
func coerceTypes(schemaDoc map[string]any, data any) any {
	if schemaDoc == nil {
		return data
	}
	switch schemaType(schemaDoc) {
	case "object":
		obj, ok := data.(map[string]any)
		if !ok {
			return data
		}
		props := properties(schemaDoc)
		for k, v := range obj {
			if propSchema, ok := props[k].(map[string]any); ok {
				obj[k] = coerceTypes(propSchema, v)
			}
		}
		return obj
	case "array":
		arr, ok := data.([]any)
		if !ok {
			return data
		}
		items, _ := schemaDoc["items"].(map[string]any)
		for i, v := range arr {
			arr[i] = coerceTypes(items, v)
		}
		return arr
	case "number", "integer":
		if s, ok := data.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return data
	case "boolean":
		if s, ok := data.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
		return data
	case "string":
		switch n := data.(type) {
		case float64:
			return strconv.FormatFloat(n, 'g', -1, 64)
		}
		return data
	default:
		return data
	}
}

// fillDefaults populates omitted object fields with their schema-declared
// defaults, recursing into nested object/array schemas.
func fillDefaults(schemaDoc map[string]any, data any) any {
	if schemaDoc == nil {
		return data
	}
	switch schemaType(schemaDoc) {
	case "object":
		obj, ok := data.(map[string]any)
		if !ok {
			if data != nil {
				return data
			}
			obj = make(map[string]any)
		}
		props := properties(schemaDoc)
		for name, rawPropSchema := range props {
			propSchema, _ := rawPropSchema.(map[string]any)
			if _, present := obj[name]; !present {
				if def, ok := propSchema["default"]; ok {
					obj[name] = deepCopy(def)
				}
			}
			if existing, present := obj[name]; present {
				obj[name] = fillDefaults(propSchema, existing)
			}
		}
		return obj
	case "array":
		arr, ok := data.([]any)
		if !ok {
			return data
		}
		items, _ := schemaDoc["items"].(map[string]any)
		for i, v := range arr {
			arr[i] = fillDefaults(items, v)
		}
		return arr
	default:
		return data
	}
}

// stripUnknown removes object properties not declared in schemaDoc's
// `properties` when `additionalProperties` is false or absent, used as the
// failure-path coercion step 2 of the pipeline asks for.
func stripUnknown(schemaDoc map[string]any, data any) any {
	if schemaDoc == nil {
		return data
	}
	if schemaType(schemaDoc) != "object" {
		if schemaType(schemaDoc) == "array" {
			arr, ok := data.([]any)
			if !ok {
				return data
			}
			items, _ := schemaDoc["items"].(map[string]any)
			for i, v := range arr {
				arr[i] = stripUnknown(items, v)
			}
			return arr
		}
		return data
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return data
	}
	if allowed, ok := schemaDoc["additionalProperties"].(bool); ok && allowed {
		return obj
	}
	props := properties(schemaDoc)
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		propSchema, known := props[k].(map[string]any)
		if !known {
			if _, known2 := props[k]; !known2 {
				continue
			}
		}
		out[k] = stripUnknown(propSchema, v)
	}
	return out
}
