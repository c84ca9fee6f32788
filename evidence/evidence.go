// Package evidence builds the typed provenance records the PTC Runtime's
// step 8 attaches to every ToolResult (§4.9). The result-walking style
// mirrors the donor's runtime/registry/search.go recursive scoring walk.
package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"toolhub.dev/hub"
)

const maxAutoExtracted = 10

var urlPattern = regexp.MustCompile(`^https?://\S+$`)

// filePathPattern matches absolute paths and "./"-prefixed relative paths
// that contain a dot (an extension), per §4.9's "path-looking strings"
// definition.
var filePathPattern = regexp.MustCompile(`^(/[^\s]*\.[A-Za-z0-9]+|\./[^\s]*\.[A-Za-z0-9]+)$`)

// Clock is the source of "now" used for Evidence.CreatedAt, overridable in
// tests for deterministic timestamps.
type Clock func() time.Time

// Builder assembles Evidence records for one invocation.
type Builder struct {
	Now Clock
}

// New returns a Builder using time.Now as its clock.
func New() *Builder {
	return &Builder{Now: time.Now}
}

// Build produces the evidence list for one completed invocation: a `tool`
// record summarizing the call, auto-extracted `url`/`file` records found by
// walking result (capped at 10 each, in stable object-walk order), and a
// `metric` record when durationMs > 0. adapterEvidence (if any) is placed
// first, preserving whatever order the adapter returned it in.
func (b *Builder) Build(spec *toolhub.ToolSpec, args map[string]any, result any, adapterEvidence []toolhub.Evidence, durationMs int64) []toolhub.Evidence {
	now := b.Now
	if now == nil {
		now = time.Now
	}
	out := make([]toolhub.Evidence, 0, len(adapterEvidence)+3)
	out = append(out, adapterEvidence...)

	out = append(out, toolhub.Evidence{
		Type:      toolhub.EvidenceTypeTool,
		Ref:       fmt.Sprintf("%s@%s", spec.Name, spec.Version),
		Summary:   toolSummary(spec, args, result, durationMs),
		CreatedAt: now(),
	})

	urls, files := extract(result)
	for _, u := range urls {
		out = append(out, toolhub.Evidence{Type: toolhub.EvidenceTypeURL, Ref: u, Summary: "url referenced in result", CreatedAt: now()})
	}
	for _, f := range files {
		out = append(out, toolhub.Evidence{Type: toolhub.EvidenceTypeFile, Ref: f, Summary: "file path referenced in result", CreatedAt: now()})
	}

	if durationMs > 0 {
		out = append(out, toolhub.Evidence{
			Type:      toolhub.EvidenceTypeMetric,
			Ref:       "latency:" + string(spec.Name),
			Summary:   fmt.Sprintf("%dms", durationMs),
			CreatedAt: now(),
		})
	}
	return out
}

func toolSummary(spec *toolhub.ToolSpec, args map[string]any, result any, durationMs int64) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	preview := fmt.Sprintf("%v", result)
	if len(preview) > 100 {
		preview = preview[:100]
	}
	return fmt.Sprintf("called %s with args[%s] in %dms -> %s", spec.Name, strings.Join(keys, ","), durationMs, preview)
}

// extract walks v (maps, slices, scalars) in stable order, classifying
// string leaves as urls or file paths, capped at maxAutoExtracted each.
func extract(v any) (urls, files []string) {
	walk(v, &urls, &files)
	return urls, files
}

func walk(v any, urls, files *[]string) {
	if len(*urls) >= maxAutoExtracted && len(*files) >= maxAutoExtracted {
		return
	}
	switch val := v.(type) {
	case string:
		classify(val, urls, files)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(val[k], urls, files)
		}
	case []any:
		for _, e := range val {
			walk(e, urls, files)
		}
	}
}

func classify(s string, urls, files *[]string) {
	if urlPattern.MatchString(s) {
		if len(*urls) < maxAutoExtracted {
			*urls = append(*urls, s)
		}
		return
	}
	if filePathPattern.MatchString(s) {
		if len(*files) < maxAutoExtracted {
			*files = append(*files, s)
		}
	}
}
