// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is built once at
// startup and passed by reference down through the orchestrator and sessions;
// nothing in this package is a process-wide mutable singleton.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Browser      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	Flow         FlowConfig         `mapstructure:"flow" yaml:"flow"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Accounts     AccountsConfig     `mapstructure:"accounts" yaml:"accounts"`
	Linker       LinkerConfig       `mapstructure:"linker" yaml:"linker"`
	Diagnostics  DiagnosticsConfig  `mapstructure:"diagnostics" yaml:"diagnostics"`
}

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

// BrowserConfig holds settings for the browser instances. Each session gets
// its own browser process; these settings apply to every launch.
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLS     bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args          []string      `mapstructure:"args" yaml:"args"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// FlowConfig tunes the primary authentication flow. The delays are
// load-bearing: the remote UI debounces keystrokes and issues its
// second-factor challenge asynchronously, so under-waiting produces
// false negatives rather than speedups.
type FlowConfig struct {
	LoginURL             string        `mapstructure:"login_url" yaml:"login_url"`
	WaitTimeout          time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	SettleDelay          time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	InterFieldDelay      time.Duration `mapstructure:"inter_field_delay" yaml:"inter_field_delay"`
	PostSubmitDelay      time.Duration `mapstructure:"post_submit_delay" yaml:"post_submit_delay"`
	SecondFactorTimeout  time.Duration `mapstructure:"second_factor_timeout" yaml:"second_factor_timeout"`
	PostSecondFactorKeys time.Duration `mapstructure:"post_second_factor_keys" yaml:"post_second_factor_keys"`
	PostFinalSubmitDelay time.Duration `mapstructure:"post_final_submit_delay" yaml:"post_final_submit_delay"`
	DashboardPathHint    string        `mapstructure:"dashboard_path_hint" yaml:"dashboard_path_hint"`
	LeaveOpenOnSuccess   bool          `mapstructure:"leave_open_on_success" yaml:"leave_open_on_success"`
	LeaveOpenOnFailure   bool          `mapstructure:"leave_open_on_failure" yaml:"leave_open_on_failure"`
}

// StartPolicy selects how the orchestrator launches sessions.
type StartPolicy string

const (
	// PolicyStaggered starts sessions with a fixed inter-start delay and
	// lets them run concurrently. Avoids overwhelming local resources
	// when many browser processes spawn at once.
	PolicyStaggered StartPolicy = "staggered"
	// PolicySimultaneous starts every session at once.
	PolicySimultaneous StartPolicy = "simultaneous"
)

// OrchestratorConfig governs session scheduling.
type OrchestratorConfig struct {
	Policy       StartPolicy   `mapstructure:"policy" yaml:"policy"`
	StaggerDelay time.Duration `mapstructure:"stagger_delay" yaml:"stagger_delay"`
}

// AccountsConfig locates the credential source and optionally narrows the run
// to a subset of account IDs.
type AccountsConfig struct {
	CredentialsFile string   `mapstructure:"credentials_file" yaml:"credentials_file"`
	Targets         []string `mapstructure:"targets" yaml:"targets"`
}

// LinkerConfig configures the optional post-authentication sub-flow that
// links the broker session into a companion application. Positions maps an
// account ID to its ordinal slot in the companion UI; accounts absent from
// the map skip the position-specific step.
type LinkerConfig struct {
	Enabled         bool           `mapstructure:"enabled" yaml:"enabled"`
	URL             string         `mapstructure:"url" yaml:"url"`
	CredentialsFile string         `mapstructure:"credentials_file" yaml:"credentials_file"`
	Positions       map[string]int `mapstructure:"positions" yaml:"positions"`
	SettleDelay     time.Duration  `mapstructure:"settle_delay" yaml:"settle_delay"`
	VerifyDelay     time.Duration  `mapstructure:"verify_delay" yaml:"verify_delay"`
}

// DiagnosticsConfig controls failure snapshot capture.
type DiagnosticsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults initializes default values for all configuration parameters.
// The flow timings mirror the remote service's observed latencies and should
// only be lowered with care.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kitelogin")
	v.SetDefault("logger.log_file", "kitelogin.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	// Headful by default: the operator takes over the window after login.
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.launch_timeout", "30s")

	// -- Flow --
	v.SetDefault("flow.login_url", "https://kite.zerodha.com/")
	v.SetDefault("flow.wait_timeout", "30s")
	v.SetDefault("flow.settle_delay", "750ms")
	v.SetDefault("flow.inter_field_delay", "375ms")
	v.SetDefault("flow.post_submit_delay", "4s")
	v.SetDefault("flow.second_factor_timeout", "30s")
	v.SetDefault("flow.post_second_factor_keys", "1s")
	v.SetDefault("flow.post_final_submit_delay", "750ms")
	v.SetDefault("flow.dashboard_path_hint", "dashboard")
	v.SetDefault("flow.leave_open_on_success", true)
	v.SetDefault("flow.leave_open_on_failure", true)

	// -- Orchestrator --
	v.SetDefault("orchestrator.policy", string(PolicyStaggered))
	v.SetDefault("orchestrator.stagger_delay", "2s")

	// -- Accounts --
	v.SetDefault("accounts.credentials_file", "~/.kitelogin/credentials.csv")

	// -- Linker --
	v.SetDefault("linker.enabled", false)
	v.SetDefault("linker.url", "https://algotest.in/live")
	v.SetDefault("linker.credentials_file", "~/.kitelogin/linker_credentials.json")
	v.SetDefault("linker.settle_delay", "1500ms")
	v.SetDefault("linker.verify_delay", "5s")

	// -- Diagnostics --
	v.SetDefault("diagnostics.dir", "diagnostics")
}

// NewConfigFromViper creates a validated configuration instance from a viper
// object that has already read its sources.
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

// NewDefaultConfig creates a configuration populated with default values.
// Primarily used by tests.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults must always validate.
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Flow.LoginURL == "" {
		return fmt.Errorf("flow.login_url is required")
	}
	if c.Flow.WaitTimeout <= 0 {
		return fmt.Errorf("flow.wait_timeout must be a positive duration")
	}
	if c.Accounts.CredentialsFile == "" {
		return fmt.Errorf("accounts.credentials_file is required")
	}
	switch c.Orchestrator.Policy {
	case PolicyStaggered:
		if c.Orchestrator.StaggerDelay <= 0 {
			return fmt.Errorf("orchestrator.stagger_delay must be positive for the staggered policy")
		}
	case PolicySimultaneous:
	default:
		return fmt.Errorf("orchestrator.policy must be %q or %q, got %q",
			PolicyStaggered, PolicySimultaneous, c.Orchestrator.Policy)
	}
	if err := c.Linker.Validate(); err != nil {
		return fmt.Errorf("linker configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the linker sub-flow configuration.
func (l *LinkerConfig) Validate() error {
	if !l.Enabled {
		return nil
	}
	if l.URL == "" {
		return fmt.Errorf("url is required when the linker is enabled")
	}
	for id, pos := range l.Positions {
		if pos < 1 {
			return fmt.Errorf("position for account %q must be >= 1, got %d", id, pos)
		}
	}
	return nil
}
