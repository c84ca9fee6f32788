package budget

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config is the defaults the Manager falls back to for a tool that has no
// per-tool override registered.
type Config struct {
	DefaultTimeout    time.Duration
	DefaultRatePerSec float64
	DefaultBurst      int
	DefaultBreaker    BreakerConfig
}

func (c Config) defaulted() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DefaultRatePerSec <= 0 {
		c.DefaultRatePerSec = 50
	}
	if c.DefaultBurst <= 0 {
		c.DefaultBurst = 10
	}
	return c
}

// ToolOverride customizes budget behavior for one tool name.
type ToolOverride struct {
	Timeout       time.Duration
	RatePerSec    float64
	Burst         int
	BreakerConfig BreakerConfig
}

// Manager owns a rate limiter and circuit breaker per tool name, plus
// per-tool timeout resolution (§4.7). The zero value is not usable; use New.
type Manager struct {
	config    Config
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	breakers  map[string]*breaker
	overrides map[string]ToolOverride
}

// New builds a Manager with the given defaults.
func New(config Config) *Manager {
	return &Manager{
		config:    config.defaulted(),
		limiters:  make(map[string]*rate.Limiter),
		breakers:  make(map[string]*breaker),
		overrides: make(map[string]ToolOverride),
	}
}

// SetOverride registers tool-specific budget settings, used by discovery or
// operator config to tune hot paths.
func (m *Manager) SetOverride(toolName string, o ToolOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[toolName] = o
}

func (m *Manager) limiterFor(toolName string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[toolName]; ok {
		return l
	}
	r := rate.Limit(m.config.DefaultRatePerSec)
	burst := m.config.DefaultBurst
	if o, ok := m.overrides[toolName]; ok {
		if o.RatePerSec > 0 {
			r = rate.Limit(o.RatePerSec)
		}
		if o.Burst > 0 {
			burst = o.Burst
		}
	}
	l := rate.NewLimiter(r, burst)
	m.limiters[toolName] = l
	return l
}

func (m *Manager) breakerFor(toolName string) *breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[toolName]; ok {
		return b
	}
	cfg := m.config.DefaultBreaker
	if o, ok := m.overrides[toolName]; ok && (o.BreakerConfig != BreakerConfig{}) {
		cfg = o.BreakerConfig
	}
	b := newBreaker(cfg)
	m.breakers[toolName] = b
	return b
}

// CheckRateLimit reports whether toolName is admitted now under its token
// bucket.
func (m *Manager) CheckRateLimit(toolName string) bool {
	return m.limiterFor(toolName).Allow()
}

// BreakerState returns the current circuit breaker state for toolName.
func (m *Manager) BreakerState(toolName string) BreakerState {
	return m.breakerFor(toolName).State()
}

// Admit reports whether toolName is admitted right now: both the rate
// limiter has a token and the breaker is not Open.
func (m *Manager) Admit(toolName string) error {
	if !m.CheckRateLimit(toolName) {
		return ErrRateLimited
	}
	return m.breakerFor(toolName).admit()
}

// Execute wraps fn in toolName's breaker state machine, recording success or
// failure.
func (m *Manager) Execute(ctx context.Context, toolName string, fn func(context.Context) error) error {
	return m.breakerFor(toolName).Execute(ctx, fn)
}

// GetTimeout returns the effective per-call timeout: override (if non-zero
// and passed), then per-tool override, then global default.
func (m *Manager) GetTimeout(toolName string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.overrides[toolName]; ok && o.Timeout > 0 {
		return o.Timeout
	}
	return m.config.DefaultTimeout
}
