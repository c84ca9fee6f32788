package hubconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub/telemetry"
)

func writeConfigFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileReturnsErrConfigNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadParsesRootsSandboxBudgetBackends(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
roots:
  - path: /srv/tools
    namespace: acme
sandbox:
  roots:
    - /srv/tools
  urlDenyList:
    - "*.internal"
budget:
  defaultTimeoutMs: 5000
  defaultRatePerSec: 25
  defaultBurst: 5
backends:
  redisAddr: "localhost:6379"
  mongoUri: "mongodb://localhost:27017"
  temporalHostPort: "localhost:7233"
  temporalNamespace: "default"
  temporalTaskQueue: "toolhub"
watchDebounceMs: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	roots := cfg.DiscoveryRoots()
	require.Len(t, roots, 1)
	require.Equal(t, "/srv/tools", roots[0].Path)
	require.Equal(t, "acme", roots[0].Namespace)

	popts := cfg.PolicyOptions()
	require.Equal(t, []string{"/srv/tools"}, popts.SandboxRoots)
	require.Equal(t, []string{"*.internal"}, popts.URLDenyList)

	bcfg := cfg.BudgetManagerConfig()
	require.Equal(t, 5*1000, int(bcfg.DefaultTimeout.Milliseconds()))
	require.Equal(t, 25.0, bcfg.DefaultRatePerSec)
	require.Equal(t, 5, bcfg.DefaultBurst)

	require.Equal(t, "localhost:6379", cfg.Backends.RedisAddr)
	require.Equal(t, "toolhub", cfg.Backends.TemporalTaskQueue)
	require.Equal(t, 250, int(cfg.WatchDebounce().Milliseconds()))
}

func TestToHubOptionsWiresConfiguredBackends(t *testing.T) {
	cfg := Config{Backends: BackendsConfig{
		RedisAddr:         "localhost:6379",
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "toolhub",
		TemporalHostPort:  "localhost:7233",
		TemporalNamespace: "default",
		TemporalTaskQueue: "toolhub",
	}}

	opts := cfg.ToHubOptions()
	require.NotNil(t, opts.JobStore)
	require.NotNil(t, opts.Events)
	require.NotNil(t, opts.WorkflowAdapter)
}

func TestToHubOptionsLeavesCollaboratorsNilWithoutBackends(t *testing.T) {
	cfg := Config{}

	opts := cfg.ToHubOptions()
	require.Nil(t, opts.JobStore)
	require.Nil(t, opts.Events)
	require.Nil(t, opts.WorkflowAdapter)
}

func TestToHubOptionsSelectsOtelLoggerAndTracer(t *testing.T) {
	cfg := Config{Telemetry: TelemetryConfig{Backend: "otel"}}
	opts := cfg.ToHubOptions()
	require.IsType(t, telemetry.ClueLogger{}, opts.Logger)
	require.IsType(t, &telemetry.OtelTracer{}, opts.Tracer)
}

func TestToHubOptionsDefaultsTelemetryToNilForHubToFill(t *testing.T) {
	cfg := Config{}
	opts := cfg.ToHubOptions()
	require.Nil(t, opts.Logger)
	require.Nil(t, opts.Tracer)
}

func TestResolvePrefersExplicitOverEnv(t *testing.T) {
	dir := t.TempDir()
	explicitPath := writeConfigFile(t, dir, "roots: []\n")

	envDir := t.TempDir()
	envPath := filepath.Join(envDir, "env.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte("roots: []\n"), 0o644))
	t.Setenv(EnvConfigPath, envPath)

	path, exists := Resolve(explicitPath)
	require.True(t, exists)
	require.Equal(t, explicitPath, path)
}

func TestResolveFallsBackToEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "roots: []\n")
	t.Setenv(EnvConfigPath, path)

	resolved, exists := Resolve("")
	require.True(t, exists)
	require.Equal(t, path, resolved)
}
