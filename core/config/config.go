// Package config loads and watches the application configuration backed by
// viper, with change hooks so long-lived components can react to reloads.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AccountConfig identifies the account implementation and its privileged
// collaborators.
type AccountConfig struct {
	Vendor  string `mapstructure:"vendor" yaml:"vendor"`
	Variant string `mapstructure:"variant" yaml:"variant"`
	Version string `mapstructure:"version" yaml:"version"`

	// Coordinator is the hex address of the privileged external party
	// permitted to submit operations and module-management requests.
	Coordinator string `mapstructure:"coordinator" yaml:"coordinator"`

	// Identity is the hex address of the account's deploy-time identity,
	// used by the bootstrap signature fallback.
	Identity string `mapstructure:"identity" yaml:"identity"`
}

// AttestationConfig controls the module attestation gate.
type AttestationConfig struct {
	// Enabled switches from the allow-all gate to the approval registry.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// StorePath points at the YAML approval store consumed by the CLI.
	StorePath string `mapstructure:"store_path" yaml:"store_path"`
}

// Config holds the application's configuration settings.
type Config struct {
	Environment string                    `mapstructure:"environment" yaml:"environment"`
	LogLevel    string                    `mapstructure:"log_level" yaml:"log_level"`
	Account     AccountConfig             `mapstructure:"account" yaml:"account"`
	Attestation AttestationConfig         `mapstructure:"attestation" yaml:"attestation"`
	EventBuffer int                       `mapstructure:"event_buffer" yaml:"event_buffer"`
	Modules     map[string]map[string]any `mapstructure:"modules" yaml:"modules"`
	Gateways    map[string]map[string]any `mapstructure:"gateways" yaml:"gateways"`
}

var (
	hookMu      sync.Mutex
	changeHooks []func(*Config)
	currentV    *viper.Viper
)

// LoadConfig loads configuration from file and environment. Missing files
// are tolerated; defaults and ARBOR_* environment variables apply.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/arbor")

	v.AutomaticEnv()
	v.SetEnvPrefix("ARBOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("event_buffer", 16)
	v.SetDefault("account.vendor", "arbor")
	v.SetDefault("account.variant", "kernel")
	v.SetDefault("account.version", "1.0.0")
	v.SetDefault("attestation.enabled", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "Config file not found, using defaults and environment variables.")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	hookMu.Lock()
	currentV = v
	hookMu.Unlock()

	return &cfg, nil
}

// AddConfigChangeHook registers a hook invoked with the freshly reloaded
// configuration whenever the watched file changes.
func AddConfigChangeHook(hook func(*Config)) {
	hookMu.Lock()
	defer hookMu.Unlock()
	changeHooks = append(changeHooks, hook)
}

// WatchConfig starts watching the loaded config file for changes. It is a
// no-op when no config file was found at load time.
func WatchConfig() {
	hookMu.Lock()
	v := currentV
	hookMu.Unlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to reload config: %v\n", err)
			return
		}
		hookMu.Lock()
		hooks := make([]func(*Config), len(changeHooks))
		copy(hooks, changeHooks)
		hookMu.Unlock()
		for _, hook := range hooks {
			hook(&cfg)
		}
	})
	v.WatchConfig()
}

// SaveConfig writes the configuration to the given path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
