package httpclient

import (
	"log/slog"
	"sync"
)

// CircuitBreakerManager hands out shared circuit breakers by service
// name. The same name always returns the same breaker instance, and
// configuration updates reach active breakers without resetting their
// failure state.
type CircuitBreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	configs  map[string]*CircuitBreakerProfileConfig
	config   *CircuitBreakerConfig
	logger   *slog.Logger
}

// NewCircuitBreakerManager creates a manager with the given initial
// configuration, or the package defaults when cfg is nil.
func NewCircuitBreakerManager(cfg *CircuitBreakerConfig) *CircuitBreakerManager {
	if cfg == nil {
		defaultCfg := DefaultCircuitBreakerConfig()
		cfg = &defaultCfg
	}

	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		configs:  make(map[string]*CircuitBreakerProfileConfig),
		config:   cfg,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger and returns the manager.
func (m *CircuitBreakerManager) WithLogger(logger *slog.Logger) *CircuitBreakerManager {
	m.logger = logger
	return m
}

// GetOrCreate returns the breaker for a service, creating it with the
// service's effective profile on first use.
func (m *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}

	cfg := m.configLocked(name)
	breaker := NewCircuitBreakerWithConfig(cfg)
	m.breakers[name] = breaker

	m.logger.Debug("created circuit breaker",
		slog.String("service", name),
		slog.Int("failure_threshold", cfg.FailureThreshold),
		slog.Duration("reset_timeout", cfg.ResetTimeout),
	)

	return breaker
}

// configLocked returns the effective profile for a service, creating
// and caching it if needed. Caller must hold m.mu.
func (m *CircuitBreakerManager) configLocked(name string) *CircuitBreakerProfileConfig {
	if cfg, ok := m.configs[name]; ok {
		return cfg
	}
	cfg := m.config.GetProfileFor(name)
	m.configs[name] = cfg
	return cfg
}

// Get returns an existing breaker by name, or nil.
func (m *CircuitBreakerManager) Get(name string) *CircuitBreaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[name]
}

// UpdateConfig replaces the full configuration and pushes the merged
// profiles to every active breaker, preserving breaker state.
func (m *CircuitBreakerManager) UpdateConfig(cfg *CircuitBreakerConfig) {
	if cfg == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = cfg
	for name, breaker := range m.breakers {
		newCfg := cfg.GetProfileFor(name)
		m.configs[name] = newCfg
		breaker.UpdateConfig(newCfg)
	}

	m.logger.Info("circuit breaker configuration updated",
		slog.Int("active_breakers", len(m.breakers)),
	)
}

// UpdateServiceConfig sets or replaces one service profile. An active
// breaker for that service picks it up immediately.
func (m *CircuitBreakerManager) UpdateServiceConfig(name string, cfg CircuitBreakerProfileConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Profiles == nil {
		m.config.Profiles = make(map[string]CircuitBreakerProfileConfig)
	}
	m.config.Profiles[name] = cfg

	merged := m.config.GetProfileFor(name)
	m.configs[name] = merged

	if breaker, ok := m.breakers[name]; ok {
		breaker.UpdateConfig(merged)
	}
}

// GetServiceConfig returns the effective profile for a service.
func (m *CircuitBreakerManager) GetServiceConfig(name string) CircuitBreakerProfileConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cfg, ok := m.configs[name]; ok && cfg != nil {
		return *cfg
	}
	return *m.config.GetProfileFor(name)
}

// Names returns the names of all active breakers.
func (m *CircuitBreakerManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	return names
}

// GetAllStats returns statistics for all active breakers keyed by name.
func (m *CircuitBreakerManager) GetAllStats() map[string]CircuitBreakerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]CircuitBreakerStats, len(m.breakers))
	for name, breaker := range m.breakers {
		stats[name] = breaker.Stats()
	}
	return stats
}

// ResetBreaker resets one breaker to closed. Returns false if the
// service has no breaker.
func (m *CircuitBreakerManager) ResetBreaker(name string) bool {
	m.mu.RLock()
	breaker, ok := m.breakers[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	breaker.Reset()
	m.logger.Info("circuit breaker reset", slog.String("service", name))
	return true
}

// ResetAll resets every breaker to closed and returns the count.
func (m *CircuitBreakerManager) ResetAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, breaker := range m.breakers {
		breaker.Reset()
	}

	m.logger.Info("all circuit breakers reset", slog.Int("count", len(m.breakers)))
	return len(m.breakers)
}

// Remove drops a breaker from the manager. The breaker keeps working
// for clients that hold it, it just stops receiving config updates.
func (m *CircuitBreakerManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.breakers[name]; !ok {
		return false
	}
	delete(m.breakers, name)
	delete(m.configs, name)
	return true
}

// DefaultManager is the process-wide circuit breaker manager.
var DefaultManager = NewCircuitBreakerManager(nil)
