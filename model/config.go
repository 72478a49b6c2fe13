package model

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ioxiocom/firedantic/store"
)

// DefaultName is the name of the configuration used when none is selected
// explicitly.
const DefaultName = "(default)"

// Config binds a store backend to a collection-name prefix and a logger.
// Most processes call Configure once at startup; applications talking to
// several databases register additional named configurations.
type Config struct {
	// Backend is the document store capability. Required.
	Backend store.Backend

	// Prefix is prepended to every resolved collection name. It is
	// typically used to separate environments sharing a database, e.g.
	// "staging-".
	Prefix string

	// Admin is the optional administrative capability used by index and
	// TTL provisioning.
	Admin store.Admin

	// Logger receives structured diagnostics. Defaults to a discarding
	// logger.
	Logger *slog.Logger
}

func (c *Config) validate() {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

var (
	configMu sync.RWMutex
	configs  = make(map[string]*Config)
)

// Configure registers the default configuration for the process. Calling it
// again replaces the previous default; in-flight operations keep the
// configuration they started with.
func Configure(backend store.Backend, opts ...ConfigOption) {
	ConfigureNamed(DefaultName, backend, opts...)
}

// ConfigureNamed registers a named configuration, allowing several store
// clients with independent prefixes in one process. Managers select it with
// WithClient.
func ConfigureNamed(name string, backend store.Backend, opts ...ConfigOption) {
	cfg := &Config{Backend: backend}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.validate()

	configMu.Lock()
	defer configMu.Unlock()
	configs[name] = cfg
}

// ConfigOption customizes a configuration at registration time.
type ConfigOption func(*Config)

// WithPrefix sets the collection-name prefix.
func WithPrefix(prefix string) ConfigOption {
	return func(c *Config) { c.Prefix = prefix }
}

// WithAdmin sets the administrative capability.
func WithAdmin(admin store.Admin) ConfigOption {
	return func(c *Config) { c.Admin = admin }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) { c.Logger = logger }
}

func getConfig(name string) (*Config, error) {
	configMu.RLock()
	defer configMu.RUnlock()
	cfg, ok := configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrConfigurationNotFound, name)
	}
	return cfg, nil
}
