// Package policy implements the capability gate, path sandbox, URL
// allow/deny, and parameter inspection checks that the PTC Runtime's step 4
// delegates to (§4.7). It follows the donor's basic policy engine's
// allow/block-set filtering shape, extended with the path/network checks
// below; no pack example carries a third-party sandbox or CIDR library, so
// those two checks are plain `net`/`path/filepath` (see DESIGN.md).
package policy

import (
	"context"
	"net"
	"path/filepath"
	"regexp"
	"strings"

	"toolhub.dev/hub"
)

// Decision is the outcome of a Check. Kind is the ErrorKind a denial should
// surface as; it is meaningless when Allowed is true.
type Decision struct {
	Allowed             bool
	Reason              string
	Kind                toolhub.ErrorKind
	MissingCapabilities []toolhub.Capability
}

// Options configures an Engine.
type Options struct {
	// SandboxRoots are the absolute directory roots path-valued args must
	// resolve inside of.
	SandboxRoots []string
	// URLDenyList is matched first; a match always denies.
	URLDenyList []string
	// URLAllowList, if non-empty, requires at least one match after the
	// deny-list passes.
	URLAllowList []string
	// BlockedCIDRs are IPv4/IPv6 prefixes that the resolved IP of a `url` arg
	// must not fall within, for any tool that declares the network capability.
	BlockedCIDRs []string
	// Resolver looks up the IPs for a host; defaults to net.DefaultResolver.
	// Exposed so tests can stub DNS.
	Resolver func(ctx context.Context, host string) ([]net.IP, error)
}

// Engine implements the four policy checks of §4.7.
type Engine struct {
	sandboxRoots []string
	denyRe       []*regexp.Regexp
	allowRe      []*regexp.Regexp
	blockedNets  []*net.IPNet
	resolver     func(ctx context.Context, host string) ([]net.IP, error)
}

// pathArgKeys are the argument keys inspected for path sandboxing.
var pathArgKeys = map[string]struct{}{
	"path": {}, "dest": {}, "file": {}, "filePath": {}, "destPath": {},
}

// sqlArgKeys are the argument keys inspected for SQL keyword denial.
var sqlArgKeys = map[string]struct{}{"sql": {}, "query": {}}

var sqlDangerRe = regexp.MustCompile(`(?i)\b(DROP|TRUNCATE)\b`)

// New builds an Engine from opts. Malformed regex/CIDR entries are skipped
// rather than failing construction, since they arrive from operator config.
func New(opts Options) *Engine {
	e := &Engine{sandboxRoots: opts.SandboxRoots, resolver: opts.Resolver}
	if e.resolver == nil {
		e.resolver = func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		}
	}
	for _, p := range opts.URLDenyList {
		if re, err := regexp.Compile(p); err == nil {
			e.denyRe = append(e.denyRe, re)
		}
	}
	for _, p := range opts.URLAllowList {
		if re, err := regexp.Compile(p); err == nil {
			e.allowRe = append(e.allowRe, re)
		}
	}
	for _, c := range opts.BlockedCIDRs {
		if _, ipnet, err := net.ParseCIDR(c); err == nil {
			e.blockedNets = append(e.blockedNets, ipnet)
		}
	}
	return e
}

// Check evaluates all four policy checks against spec/args/ctx. The first
// failing check short-circuits the rest.
func (e *Engine) Check(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) Decision {
	if d := e.checkCapabilities(spec, execCtx); !d.Allowed {
		return d
	}
	if d := e.checkPaths(args); !d.Allowed {
		return d
	}
	if d := e.checkURLs(ctx, spec, args); !d.Allowed {
		return d
	}
	if d := e.checkSQL(args, execCtx); !d.Allowed {
		return d
	}
	return Decision{Allowed: true}
}

// Enforce calls Check and returns a PolicyDenied error on denial.
func (e *Engine) Enforce(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) error {
	d := e.Check(ctx, spec, args, execCtx)
	if !d.Allowed {
		return &PolicyDenied{Reason: d.Reason, Kind: d.Kind, MissingCapabilities: d.MissingCapabilities}
	}
	return nil
}

// PolicyDenied is thrown by Enforce on denial. Kind distinguishes a bare
// capability/SQL denial (POLICY_DENIED) from the more specific sandbox and
// network denials the runtime reports under their own error kinds.
type PolicyDenied struct {
	Reason              string
	Kind                toolhub.ErrorKind
	MissingCapabilities []toolhub.Capability
}

func (e *PolicyDenied) Error() string { return "policy denied: " + e.Reason }

// checkCapabilities requires execCtx.Permissions be a superset of
// spec.Capabilities. danger:destructive is never implicit: no other grant
// stands in for it, here or in checkSQL, which passes destructive SQL only
// when execCtx.Permissions lists danger:destructive itself.
func (e *Engine) checkCapabilities(spec *toolhub.ToolSpec, execCtx *toolhub.ExecContext) Decision {
	var missing []toolhub.Capability
	for _, c := range spec.Capabilities {
		if !execCtx.HasPermission(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return Decision{Reason: "missing required capabilities", Kind: toolhub.ErrorPolicyDenied, MissingCapabilities: missing}
	}
	return Decision{Allowed: true}
}

// checkPaths resolves every path-like argument through symlink-expanding
// real-path resolution and requires containment inside at least one sandbox
// root. A literal ".." segment in the raw input is always flagged, even if
// the resolved path happens to land inside a root.
func (e *Engine) checkPaths(args map[string]any) Decision {
	if len(e.sandboxRoots) == 0 {
		return Decision{Allowed: true}
	}
	for key, v := range args {
		if _, ok := pathArgKeys[key]; !ok {
			continue
		}
		raw, ok := v.(string)
		if !ok || raw == "" {
			continue
		}
		if containsTraversalSegment(raw) {
			return Decision{Reason: "path traversal segment in " + key, Kind: toolhub.ErrorPathOutsideSandbox}
		}
		resolved, err := resolveRealPath(raw)
		if err != nil {
			return Decision{Reason: "cannot resolve path " + key + ": " + err.Error(), Kind: toolhub.ErrorPathOutsideSandbox}
		}
		if !withinAnyRoot(resolved, e.sandboxRoots) {
			return Decision{Reason: "path " + key + " escapes sandbox roots", Kind: toolhub.ErrorPathOutsideSandbox}
		}
	}
	return Decision{Allowed: true}
}

func containsTraversalSegment(raw string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(raw), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// resolveRealPath resolves symlinks on target; if target does not yet
// exist, its parent is resolved instead (§9 design note).
func resolveRealPath(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	parent := filepath.Dir(abs)
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		// Parent doesn't exist either; fall back to the lexical absolute
		// path so containment is still checked against something.
		return abs, nil
	}
	return filepath.Join(realParent, filepath.Base(abs)), nil
}

func withinAnyRoot(resolved string, roots []string) bool {
	for _, root := range roots {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			realRoot = root
		}
		rel, err := filepath.Rel(realRoot, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			return true
		}
	}
	return false
}

// checkURLs applies the deny-list, then the allow-list (if configured), to
// any `url` argument when the tool declares the network capability, then
// checks the resolved IP against the blocked-CIDR list. Only http/https
// schemes are accepted.
func (e *Engine) checkURLs(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any) Decision {
	raw, ok := args["url"].(string)
	if !ok || raw == "" {
		return Decision{Allowed: true}
	}
	if !hasCapability(spec.Capabilities, toolhub.CapabilityNetwork) {
		return Decision{Allowed: true}
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return Decision{Reason: "url scheme must be http or https", Kind: toolhub.ErrorHTTPDisallowedHost}
	}
	for _, re := range e.denyRe {
		if re.MatchString(raw) {
			return Decision{Reason: "url matches deny list", Kind: toolhub.ErrorHTTPDisallowedHost}
		}
	}
	if len(e.allowRe) > 0 {
		allowed := false
		for _, re := range e.allowRe {
			if re.MatchString(raw) {
				allowed = true
				break
			}
		}
		if !allowed {
			return Decision{Reason: "url does not match allow list", Kind: toolhub.ErrorHTTPDisallowedHost}
		}
	}
	if len(e.blockedNets) == 0 {
		return Decision{Allowed: true}
	}
	host := hostOf(raw)
	ips, err := e.resolver(ctx, host)
	if err != nil {
		return Decision{Reason: "dns resolution failed: " + err.Error(), Kind: toolhub.ErrorHTTPDisallowedHost}
	}
	for _, ip := range ips {
		for _, blocked := range e.blockedNets {
			if blocked.Contains(ip) {
				return Decision{Reason: "resolved ip falls within a blocked cidr", Kind: toolhub.ErrorHTTPDisallowedHost}
			}
		}
	}
	return Decision{Allowed: true}
}

func hostOf(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.IndexAny(trimmed, "/:?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func hasCapability(caps []toolhub.Capability, want toolhub.Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}

// checkSQL denies args keyed sql/query containing DROP/TRUNCATE unless
// danger:destructive has been explicitly granted.
func (e *Engine) checkSQL(args map[string]any, execCtx *toolhub.ExecContext) Decision {
	if execCtx.HasPermission(toolhub.CapabilityDestructive) {
		return Decision{Allowed: true}
	}
	for key, v := range args {
		if _, ok := sqlArgKeys[key]; !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if sqlDangerRe.MatchString(s) {
			return Decision{
				Reason:              key + " contains a destructive SQL keyword",
				Kind:                toolhub.ErrorPolicyDenied,
				MissingCapabilities: []toolhub.Capability{toolhub.CapabilityDestructive},
			}
		}
	}
	return Decision{Allowed: true}
}
