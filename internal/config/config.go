// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Flow    FlowConfig    `mapstructure:"flow" yaml:"flow"`
	OTP     OTPConfig     `mapstructure:"otp" yaml:"otp"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Results ResultsConfig `mapstructure:"results" yaml:"results"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chromium process launched per account run.
type BrowserConfig struct {
	Headless  bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath  string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args      []string `mapstructure:"args" yaml:"args"`
	// WindowWidth/Height are applied via --window-size.
	WindowWidth  int `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int `mapstructure:"window_height" yaml:"window_height"`
}

// FlowConfig controls the login flow, interstitial resolution and the post-login task.
type FlowConfig struct {
	LoginURL        string `mapstructure:"login_url" yaml:"login_url"`
	TargetURLPrefix string `mapstructure:"target_url_prefix" yaml:"target_url_prefix"`
	JunkSettingsURL string `mapstructure:"junk_settings_url" yaml:"junk_settings_url"`
	SafeSender      string `mapstructure:"safe_sender" yaml:"safe_sender"`

	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`

	ResolverMaxRetries int           `mapstructure:"resolver_max_retries" yaml:"resolver_max_retries"`
	ResolverDelay      time.Duration `mapstructure:"resolver_delay" yaml:"resolver_delay"`

	ActionMaxAttempts int           `mapstructure:"action_max_attempts" yaml:"action_max_attempts"`
	ActionRetryDelay  time.Duration `mapstructure:"action_retry_delay" yaml:"action_retry_delay"`

	OTPSubmitAttempts int `mapstructure:"otp_submit_attempts" yaml:"otp_submit_attempts"`
}

// OTPConfig controls the external one-time-code generation page.
type OTPConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	PollAttempts int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// StoreConfig controls the per-account cookie store.
type StoreConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ResultsConfig controls result CSVs and failure diagnostics.
type ResultsConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	CaptureOnFailure bool   `mapstructure:"capture_on_failure" yaml:"capture_on_failure"`
}

// RunnerConfig controls the bounded worker pool.
type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// LaunchInterval paces browser launches to avoid a thundering herd of
	// Chromium processes. Zero disables pacing.
	LaunchInterval time.Duration `mapstructure:"launch_interval" yaml:"launch_interval"`
}

// SetDefaults registers the default value for every configuration key on the
// provided viper instance. Flags and environment variables override these.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mailpilot")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)

	v.SetDefault("flow.login_url", "https://login.live.com")
	v.SetDefault("flow.target_url_prefix", "https://outlook.live.com/mail/0/")
	v.SetDefault("flow.junk_settings_url", "https://outlook.live.com/mail/0/options/mail/junkEmail")
	v.SetDefault("flow.safe_sender", "customer_support@email.ticketmaster.com")
	v.SetDefault("flow.navigation_timeout", 30*time.Second)
	v.SetDefault("flow.selector_timeout", 15*time.Second)
	v.SetDefault("flow.resolver_max_retries", 10)
	v.SetDefault("flow.resolver_delay", 2*time.Second)
	v.SetDefault("flow.action_max_attempts", 3)
	v.SetDefault("flow.action_retry_delay", time.Second)
	v.SetDefault("flow.otp_submit_attempts", 3)

	v.SetDefault("otp.endpoint", "https://2fa.live")
	v.SetDefault("otp.poll_attempts", 15)
	v.SetDefault("otp.poll_interval", time.Second)

	v.SetDefault("store.dir", "cookies")

	v.SetDefault("results.dir", "results")
	v.SetDefault("results.capture_on_failure", true)

	v.SetDefault("runner.concurrency", 2)
	v.SetDefault("runner.launch_interval", 3*time.Second)
}

// NewConfigFromViper unmarshals, expands and validates a Config from viper.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefaultConfig returns a Config populated with defaults only. Used by tests
// and as the fallback when no config file is present.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// expandPaths resolves "~" in user-supplied directories.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Store.Dir, &c.Results.Dir, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}

	if c.Flow.TargetURLPrefix == "" {
		return fmt.Errorf("flow.target_url_prefix must not be empty")
	}
	if c.Flow.LoginURL == "" {
		return fmt.Errorf("flow.login_url must not be empty")
	}
	if c.Flow.ResolverMaxRetries < 1 {
		return fmt.Errorf("flow.resolver_max_retries must be >= 1")
	}
	if c.Flow.ActionMaxAttempts < 1 {
		return fmt.Errorf("flow.action_max_attempts must be >= 1")
	}
	if c.OTP.Endpoint == "" {
		return fmt.Errorf("otp.endpoint must not be empty")
	}
	if c.OTP.PollAttempts < 1 {
		return fmt.Errorf("otp.poll_attempts must be >= 1")
	}
	if c.Runner.Concurrency < 1 {
		return fmt.Errorf("runner.concurrency must be >= 1")
	}
	return nil
}
