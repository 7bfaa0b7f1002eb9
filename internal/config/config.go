// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig

	// Engine Setters
	SetEngineRoot(selector string)
	SetEnginePruneStrayOrder(bool)
	SetEngineAutoObserveMutations(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg LoggerConfig `mapstructure:"logger" yaml:"logger"`
	EngineCfg EngineConfig `mapstructure:"engine" yaml:"engine"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig { return c.EngineCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetEngineRoot(selector string)        { c.EngineCfg.Root = selector }
func (c *Config) SetEnginePruneStrayOrder(b bool)      { c.EngineCfg.PruneStrayOrder = b }
func (c *Config) SetEngineAutoObserveMutations(b bool) { c.EngineCfg.AutoObserveMutations = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig tunes the focus reconciliation engine.
type EngineConfig struct {
	// Root is a CSS or XPath selector for the managed container. Empty means the whole document.
	Root string `mapstructure:"root" yaml:"root"`

	CorrectNegativeOrder      bool `mapstructure:"correct_negative_order" yaml:"correct_negative_order"`
	// CollapsePositiveOrder rewrites every positive tabindex to 0. This discards
	// any authored ordering; turn it off to keep positive values.
	CollapsePositiveOrder     bool `mapstructure:"collapse_positive_order" yaml:"collapse_positive_order"`
	EnsureInteractiveCoverage bool `mapstructure:"ensure_interactive_coverage" yaml:"ensure_interactive_coverage"`
	PruneStrayOrder           bool `mapstructure:"prune_stray_order" yaml:"prune_stray_order"`
	AutoObserveMutations      bool `mapstructure:"auto_observe_mutations" yaml:"auto_observe_mutations"`
	AutoArmDialogs            bool `mapstructure:"auto_arm_dialogs" yaml:"auto_arm_dialogs"`
	ReturnFocusOnRelease      bool `mapstructure:"return_focus_on_release" yaml:"return_focus_on_release"`
	AnnounceDialogs           bool `mapstructure:"announce_dialogs" yaml:"announce_dialogs"`

	// Policy extensions. These are appended to the built-in lists, never replace them.
	ExtraInteractiveRoles  []string `mapstructure:"extra_interactive_roles" yaml:"extra_interactive_roles"`
	ExtraGenericContainers []string `mapstructure:"extra_generic_containers" yaml:"extra_generic_containers"`

	DialogRoles           []string `mapstructure:"dialog_roles" yaml:"dialog_roles"`
	CloseControlSelectors []string `mapstructure:"close_control_selectors" yaml:"close_control_selectors"`
}

// DefaultDialogRoles are the roles whose regions are auto-armed when they become visible.
var DefaultDialogRoles = []string{"dialog", "alertdialog"}

// DefaultCloseControlSelectors locate the conventional close control of a dialog.
var DefaultCloseControlSelectors = []string{
	"[data-dismiss]",
	"[data-close]",
	"button.close",
	".close",
	"[aria-label~=close]",
	"[aria-label~=Close]",
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "focuswarden")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Engine --
	v.SetDefault("engine.root", "")
	v.SetDefault("engine.correct_negative_order", true)
	v.SetDefault("engine.collapse_positive_order", true)
	v.SetDefault("engine.ensure_interactive_coverage", true)
	v.SetDefault("engine.prune_stray_order", false)
	v.SetDefault("engine.auto_observe_mutations", true)
	v.SetDefault("engine.auto_arm_dialogs", true)
	v.SetDefault("engine.return_focus_on_release", true)
	v.SetDefault("engine.announce_dialogs", false)
	v.SetDefault("engine.dialog_roles", DefaultDialogRoles)
	v.SetDefault("engine.close_control_selectors", DefaultCloseControlSelectors)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	switch strings.ToLower(c.LoggerCfg.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.LoggerCfg.Format)
	}
	return nil
}

// Validate checks the engine settings. Selector syntax is checked where the
// selectors are compiled, since an unresolvable root is a runtime diagnostic.
func (e *EngineConfig) Validate() error {
	for _, role := range e.DialogRoles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("dialog_roles must not contain empty entries")
		}
	}
	for _, role := range e.ExtraInteractiveRoles {
		if strings.ContainsAny(role, " \t") {
			return fmt.Errorf("extra_interactive_roles entry %q must be a single token", role)
		}
	}
	for _, tag := range e.ExtraGenericContainers {
		if strings.ContainsAny(tag, " \t") || tag == "" {
			return fmt.Errorf("extra_generic_containers entry %q must be a tag name", tag)
		}
	}
	return nil
}
