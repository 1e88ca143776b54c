package features

import (
	"sort"
	"sync"

	"sheger-walk-admin/internal/config"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a new feature flag manager.
func NewManager() *Manager {
	return &Manager{
		flags: make(map[string]*FeatureFlag),
	}
}

// NewFromConfig registers every known flag with its configured state.
func NewFromConfig(cfg *config.Config) *Manager {
	m := NewManager()
	m.Register(FeatureCacheEnabled, cfg.Cache.Backend != "none", "Cache fetched collections between requests")
	m.Register(FeatureEventHooksEnabled, cfg.Features.EventHooks, "Run cache invalidation and audit hooks after mutations")
	m.Register(FeatureServerSideFiltering, cfg.Features.ServerSideFiltering, "Forward activity filters and paging to the backend")
	m.Register(FeatureWithdrawalReview, cfg.Features.WithdrawalReview, "Allow approving and rejecting withdrawals")
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false // Default to disabled if flag doesn't exist
	}

	return flag.Enabled
}

// Set flips a registered flag. It reports false for unknown flags.
func (m *Manager) Set(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, exists := m.flags[name]
	if !exists {
		return false
	}
	flag.Enabled = enabled
	return true
}

// List returns copies of all flags sorted by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Predefined feature flag names
const (
	// FeatureCacheEnabled enables/disables caching layer
	FeatureCacheEnabled = "cache_enabled"
	// FeatureEventHooksEnabled enables/disables event-driven hooks
	FeatureEventHooksEnabled = "event_hooks_enabled"
	// FeatureServerSideFiltering sends activity filters upstream instead of
	// filtering the full collection locally
	FeatureServerSideFiltering = "server_side_filtering"
	// FeatureWithdrawalReview gates the approve/reject endpoints
	FeatureWithdrawalReview = "withdrawal_review"
)
