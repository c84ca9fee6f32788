// Package discovery implements Directory Discovery (§4.4): scanning a set of
// roots for tool directories, classifying each by manifest or inference
// marker, and producing the ToolSpecs (and, for rpc-tool's per-connection
// case, bound Adapter instances) the Hub registers. Grounded structurally on
// haasonsaas-nexus/internal/skills/manager.go's Discover/watch shape, with
// the kind-specific parsing rules of spec §4.4.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
)

// Phase classifies which stage of processing a directory a LoadError
// occurred in.
type Phase string

// Phase values.
const (
	PhaseManifest Phase = "manifest"
	PhaseLoad     Phase = "load"
	PhaseValidate Phase = "validate"
)

// LoadError reports a single directory's scan failure without aborting its
// siblings.
type LoadError struct {
	Dir   string
	Phase Phase
	Err   error
}

func (e *LoadError) Error() string {
	return "discovery: " + e.Dir + " (" + string(e.Phase) + "): " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// OnError receives a per-directory failure. The scanner continues scanning
// sibling directories regardless of what OnError does.
type OnError func(err *LoadError)

// Root is one discovery root: a filesystem path and the namespace prefix
// applied to tool names inferred under it.
type Root struct {
	Path      string
	Namespace string
}

// Result is everything one Scan call produced.
type Result struct {
	Specs []toolhub.ToolSpec
	// Bindings maps a tool name to a dedicated Adapter instance, used only
	// for kinds whose back-end connection is per-directory (rpc-tool's
	// stdio/HTTP/gRPC server). Kinds with a single shared back-end (core,
	// local-fn, skill, workflow, image-pipeline) are dispatched through the
	// Adapter configured in Options and have no entry here.
	Bindings map[toolhub.Name]adapter.Adapter
}

// Scanner walks a set of roots and loads every tool directory it finds.
type Scanner struct {
	roots   []Root
	onError OnError

	skill    *skillLoader
	rpc      *rpcLoader
	workflow *workflowLoader
	localfn  *localfnLoader
}

// Options configures a Scanner. OnError may be nil, in which case
// directory-level failures are silently skipped.
type Options struct {
	Roots   []Root
	OnError OnError

	// ImageKind names are not loaded from a manifest at all: image-pipeline
	// tools are expected to be registered programmatically against the
	// shared back-end configured in the hub, so no ImageLoader field exists
	// here; discovery only produces specs for the four kinds with a
	// directory-local manifest (skill, rpc-tool, workflow, local-fn).
}

// New returns a Scanner for opts.
func New(opts Options) *Scanner {
	return &Scanner{
		roots:    opts.Roots,
		onError:  opts.OnError,
		skill:    &skillLoader{},
		rpc:      &rpcLoader{},
		workflow: &workflowLoader{},
		localfn:  &localfnLoader{},
	}
}

// Scan walks every root and returns the specs/bindings it discovered,
// reporting per-directory failures through Options.OnError rather than
// aborting.
func (s *Scanner) Scan(ctx context.Context) Result {
	var result Result
	result.Bindings = make(map[toolhub.Name]adapter.Adapter)

	for _, root := range s.roots {
		s.scanRoot(ctx, root, &result)
	}
	return result
}

func (s *Scanner) scanRoot(ctx context.Context, root Root, result *Result) {
	entries, err := os.ReadDir(root.Path)
	if err != nil {
		s.fail(root.Path, PhaseManifest, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s.scanDir(ctx, filepath.Join(root.Path, e.Name()), root, result)
	}
}

func (s *Scanner) scanDir(ctx context.Context, dir string, root Root, result *Result) {
	marker, ambiguous := classify(dir)
	if ambiguous {
		s.fail(dir, PhaseManifest, errAmbiguousMarkers)
		return
	}
	if marker == markerNone {
		return
	}

	leaf := filepath.Base(dir)
	defaultName := root.Namespace + "/" + leaf

	spec, binding, err := s.load(ctx, dir, marker, defaultName)
	if err != nil {
		phase := PhaseLoad
		if le, ok := err.(*LoadError); ok {
			s.onErrorOrDrop(le)
			return
		}
		s.fail(dir, phase, err)
		return
	}
	if spec == nil {
		// enabled:false, or the directory legitimately produced nothing.
		return
	}
	if err := spec.Validate(); err != nil {
		s.fail(dir, PhaseValidate, err)
		return
	}

	result.Specs = append(result.Specs, *spec)
	if binding != nil {
		result.Bindings[spec.Name] = binding
	}

	// A directory may additionally host a kind-named subfolder of local-fn
	// tools alongside its own flat tool (§4.4): scan one level of
	// kind-subfolders for more local-fn entries.
	s.scanLocalFnSubdirs(dir, root, result)
}

func (s *Scanner) scanLocalFnSubdirs(dir string, root Root, result *Result) {
	for _, sub := range localFnSubdirNames {
		subdir := filepath.Join(dir, sub)
		entries, err := os.ReadDir(subdir)
		if err != nil {
			continue // no such subfolder; not an error
		}
		for _, e := range entries {
			if e.IsDir() || !hasEntryFileExt(e.Name()) {
				continue
			}
			name := root.Namespace + "/" + filepath.Base(dir) + "-" + strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			spec, ok := s.localfn.load(name)
			if !ok {
				s.fail(subdir, PhaseLoad, errNoLocalFnRegistration(name))
				continue
			}
			if err := spec.Validate(); err != nil {
				s.fail(subdir, PhaseValidate, err)
				continue
			}
			result.Specs = append(result.Specs, spec)
		}
	}
}

func (s *Scanner) load(ctx context.Context, dir string, marker marker, defaultName string) (*toolhub.ToolSpec, adapter.Adapter, error) {
	man, err := readManifest(dir, marker)
	if err != nil {
		return nil, nil, &LoadError{Dir: dir, Phase: PhaseManifest, Err: err}
	}
	if man != nil && man.Enabled != nil && !*man.Enabled {
		return nil, nil, nil
	}

	name := defaultName
	if man != nil && man.Name != "" {
		name = man.Name
	}

	switch marker {
	case markerSkill:
		spec, err := s.skill.load(dir, name)
		return spec, nil, wrapLoad(dir, err)
	case markerWorkflow:
		spec, err := s.workflow.load(dir, man, name)
		return spec, nil, wrapLoad(dir, err)
	case markerMCP:
		spec, bound, err := s.rpc.load(ctx, dir, man, name)
		return spec, bound, wrapLoad(dir, err)
	case markerLocalFn:
		spec, ok := s.localfn.load(name)
		if !ok {
			return nil, nil, &LoadError{Dir: dir, Phase: PhaseLoad, Err: errNoLocalFnRegistration(name)}
		}
		return &spec, nil, nil
	default:
		return nil, nil, nil
	}
}

func wrapLoad(dir string, err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Dir: dir, Phase: PhaseLoad, Err: err}
}

func (s *Scanner) fail(dir string, phase Phase, err error) {
	s.onErrorOrDrop(&LoadError{Dir: dir, Phase: phase, Err: err})
}

func (s *Scanner) onErrorOrDrop(err *LoadError) {
	if s.onError != nil {
		s.onError(err)
	}
}

// localFnSubdirNames are the kind-named subfolders scanLocalFnSubdirs looks
// for alongside a toolset's flat tool.json (§4.4 example: "langchain").
var localFnSubdirNames = []string{"langchain", "local-fn"}

func hasEntryFileExt(name string) bool {
	switch filepath.Ext(name) {
	case ".js", ".mjs", ".go":
		return true
	default:
		return false
	}
}
