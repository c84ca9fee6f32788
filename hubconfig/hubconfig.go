// Package hubconfig loads the Hub's bootstrap YAML configuration: discovery
// roots, sandbox/policy limits, budget defaults, and backend connection
// strings (Redis/Mongo/Temporal). Grounded on the donor's
// cmd/nexus-edge/config.go (resolveConfigPath/loadConfig/errConfigNotFound
// shape), generalized from its edge-agent-specific fields to the Hub's own.
package hubconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gopkg.in/yaml.v3"

	"toolhub.dev/hub/adapter/workflow"
	"toolhub.dev/hub/budget"
	"toolhub.dev/hub/discovery"
	hubpkg "toolhub.dev/hub/hub"
	"toolhub.dev/hub/jobs/redisstore"
	"toolhub.dev/hub/obsfabric"
	"toolhub.dev/hub/policy"
	"toolhub.dev/hub/telemetry"
)

const (
	defaultConfigDir  = ".toolhub"
	defaultConfigName = "config.yaml"
	// EnvConfigPath is checked when no --config flag is given.
	EnvConfigPath = "TOOLHUB_CONFIG"
)

// ErrConfigNotFound is returned by Load (via Resolve) when no config file
// exists at the resolved path. The CLI maps this to exit code 1 (§6).
var ErrConfigNotFound = errors.New("hubconfig: config file not found")

// RootConfig is one discovery root entry.
type RootConfig struct {
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// SandboxConfig configures the Policy Engine's path/network checks.
type SandboxConfig struct {
	Roots        []string `yaml:"roots"`
	URLAllowList []string `yaml:"urlAllowList"`
	URLDenyList  []string `yaml:"urlDenyList"`
	BlockedCIDRs []string `yaml:"blockedCidrs"`
}

// BudgetConfig configures the Budget Manager's defaults.
type BudgetConfig struct {
	DefaultTimeoutMs  int64   `yaml:"defaultTimeoutMs"`
	DefaultRatePerSec float64 `yaml:"defaultRatePerSec"`
	DefaultBurst      int     `yaml:"defaultBurst"`
}

// BackendsConfig carries connection strings for the optional distributed
// back-ends the pack's dependencies serve: Redis-backed rate limiting/job
// storage, Mongo-backed event/trace persistence, and a Temporal cluster for
// the embedded workflow adapter's production engine.
type BackendsConfig struct {
	RedisAddr         string `yaml:"redisAddr"`
	MongoURI          string `yaml:"mongoUri"`
	MongoDatabase     string `yaml:"mongoDatabase"`
	TemporalHostPort  string `yaml:"temporalHostPort"`
	TemporalNamespace string `yaml:"temporalNamespace"`
	TemporalTaskQueue string `yaml:"temporalTaskQueue"`
}

// TelemetryConfig selects which ambient Logger/Tracer implementation
// ToHubOptions wires in. Backend is one of "" (or "noop", the default:
// no-op implementations) or "otel" (goa.design/clue/log for logging, OTEL
// for tracing — the caller is still responsible for configuring the global
// TracerProvider, e.g. via clue.ConfigureOpenTelemetry, before the Hub
// records anything). No OTEL metrics sink is wired by either backend.
type TelemetryConfig struct {
	Backend string `yaml:"backend"`
}

// Config is the full bootstrap document.
type Config struct {
	Roots           []RootConfig    `yaml:"roots"`
	Sandbox         SandboxConfig   `yaml:"sandbox"`
	Budget          BudgetConfig    `yaml:"budget"`
	Backends        BackendsConfig  `yaml:"backends"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	WatchDebounceMs int             `yaml:"watchDebounceMs"`
}

// DefaultPath returns the config path used when neither --config nor
// TOOLHUB_CONFIG is set: $HOME/.toolhub/config.yaml, falling back to the
// bare file name if the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return defaultConfigName
	}
	return filepath.Join(home, defaultConfigDir, defaultConfigName)
}

// Resolve picks the config path to load: explicit (e.g. a --config flag) if
// non-empty, else $TOOLHUB_CONFIG if set, else DefaultPath(). The second
// return reports whether a file actually exists there yet.
func Resolve(explicit string) (path string, exists bool) {
	if strings.TrimSpace(explicit) != "" {
		path = expandUser(explicit)
	} else if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		path = expandUser(env)
	} else {
		path = DefaultPath()
	}
	_, err := os.Stat(path)
	return path, err == nil
}

func expandUser(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return path
}

// Load resolves and parses the config file, returning ErrConfigNotFound if
// none exists at the resolved path.
func Load(explicit string) (Config, error) {
	path, exists := Resolve(explicit)
	if !exists {
		return Config{}, ErrConfigNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, fmt.Errorf("hubconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("hubconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// DiscoveryRoots converts the config's root entries to discovery.Root.
func (c Config) DiscoveryRoots() []discovery.Root {
	out := make([]discovery.Root, 0, len(c.Roots))
	for _, r := range c.Roots {
		out = append(out, discovery.Root{Path: r.Path, Namespace: r.Namespace})
	}
	return out
}

// PolicyOptions converts the config's sandbox section to policy.Options.
func (c Config) PolicyOptions() policy.Options {
	roots := append([]string{}, c.Sandbox.Roots...)
	return policy.Options{
		SandboxRoots: roots,
		URLAllowList: c.Sandbox.URLAllowList,
		URLDenyList:  c.Sandbox.URLDenyList,
		BlockedCIDRs: c.Sandbox.BlockedCIDRs,
	}
}

// BudgetManagerConfig converts the config's budget section to budget.Config.
func (c Config) BudgetManagerConfig() budget.Config {
	return budget.Config{
		DefaultTimeout:    time.Duration(c.Budget.DefaultTimeoutMs) * time.Millisecond,
		DefaultRatePerSec: c.Budget.DefaultRatePerSec,
		DefaultBurst:      c.Budget.DefaultBurst,
	}
}

// WatchDebounce converts WatchDebounceMs to a time.Duration, 0 if unset (the
// Hub then falls back to its own/discovery's default).
func (c Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// ToHubOptions converts c into a hub.Options. When the Backends section
// names a Redis address, Mongo URI, or Temporal host:port, the corresponding
// collaborator (a Redis-backed jobs.Store, a Mongo-persisting event sink, an
// embedded Temporal-backed workflow engine) is constructed and wired in;
// fields left empty fall back to hub.New's own in-memory defaults.
// ImagePipeline has no YAML-expressible connection shape and is always left
// for the embedder to set directly.
func (c Config) ToHubOptions() hubpkg.Options {
	opts := hubpkg.Options{
		Roots:         c.DiscoveryRoots(),
		WatchDebounce: c.WatchDebounce(),
		Policy:        c.PolicyOptions(),
		Budget:        c.BudgetManagerConfig(),
	}

	if addr := strings.TrimSpace(c.Backends.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		opts.JobStore = redisstore.New(client, "toolhub:jobs", nil)
	}

	if uri := strings.TrimSpace(c.Backends.MongoURI); uri != "" {
		if sink, err := c.mongoEventSink(uri); err == nil {
			eventLog := obsfabric.NewLog()
			eventLog.On("", sink.Listener())
			opts.Events = eventLog
		}
	}

	if hostPort := strings.TrimSpace(c.Backends.TemporalHostPort); hostPort != "" {
		engine := workflow.NewTemporalEngine(workflow.TemporalOptions{
			HostPort:  hostPort,
			Namespace: c.Backends.TemporalNamespace,
			TaskQueue: c.Backends.TemporalTaskQueue,
		})
		opts.WorkflowAdapter = workflow.NewEmbedded(engine)
	}

	// hub.Options.Metrics is the always-present domain fabric
	// (obsfabric.Metrics), not an ambient-telemetry sink, so "otel" only
	// selects the Logger/Tracer half of the ambient stack; OtelMetrics has
	// no component in hub.Options to attach to.
	if strings.EqualFold(strings.TrimSpace(c.Telemetry.Backend), "otel") {
		opts.Logger = telemetry.NewClueLogger()
		opts.Tracer = telemetry.NewOtelTracer()
	}

	return opts
}

// mongoEventSink connects to uri and returns a MongoSink writing into the
// configured database's "events" collection. The client is intentionally
// never disconnected here: it lives for the process lifetime, matching the
// Redis client constructed above.
func (c Config) mongoEventSink(uri string) (*obsfabric.MongoSink, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("hubconfig: mongo connect: %w", err)
	}
	database := c.Backends.MongoDatabase
	if database == "" {
		database = "toolhub"
	}
	collection := client.Database(database).Collection("events")
	return obsfabric.NewMongoSink(collection, nil), nil
}
