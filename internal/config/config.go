// Package config provides configuration management for the panic button
// service using Viper for loading from command-line flags, environment
// variables and an optional YAML file.
//
// The configuration is built once at process start by Load and is never
// mutated afterwards; components receive it (or the parts they need) by
// reference. The subset published to the control panel through
// /api/config is exposed by Published.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/msfocb/panicbutton/internal/errors"
	"github.com/msfocb/panicbutton/internal/logging"
	"github.com/msfocb/panicbutton/internal/validation"
)

// Viper keys. Flags, environment variables and the config file all feed
// these.
const (
	KeyListenPort     = "server.listen_port"
	KeyHost           = "server.host"
	KeyStaticDir      = "server.static_dir"
	KeyAllowedOrigins = "server.allowed_origins"
	KeyMaxConnections = "server.max_connections"
	KeyRateLimit      = "server.rate_limit"
	KeyRateBurst      = "server.rate_burst"

	KeyLockScript     = "actions.lock_script"
	KeyVerifyScript   = "actions.verify_script"
	KeyCommandTimeout = "actions.command_timeout"

	KeyDisableTargets      = "publish.disable_targets"
	KeyPollInterval        = "publish.poll_interval"
	KeyLockRetryMaxCount   = "publish.lock_retry_max_count"
	KeyVerifyRetryMaxCount = "publish.verify_retry_max_count"

	KeyMockPolicy = "mock.policy"
	KeyMockSeed   = "mock.seed"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
)

// Defaults for the optional numeric parameters.
const (
	DefaultLockRetryMaxCount   = 10
	DefaultVerifyRetryMaxCount = 10
	DefaultPollInterval        = 15
	DefaultStaticDir           = "static"
	DefaultRateBurst           = 5
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Actions ActionsConfig `mapstructure:"actions" yaml:"actions"`
	Publish PublishConfig `mapstructure:"publish" yaml:"publish"`
	Mock    MockConfig    `mapstructure:"mock" yaml:"mock"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	ListenPort     int      `mapstructure:"listen_port" yaml:"listen_port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	StaticDir      string   `mapstructure:"static_dir" yaml:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxConnections int      `mapstructure:"max_connections" yaml:"max_connections"`
	// RateLimit is requests per second per client on the action routes.
	// Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type ActionsConfig struct {
	LockScript     string        `mapstructure:"lock_script" yaml:"lock_script"`
	VerifyScript   string        `mapstructure:"verify_script" yaml:"verify_script"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

type PublishConfig struct {
	DisableTargets      []string `mapstructure:"disable_targets" yaml:"disable_targets"`
	PollInterval        int      `mapstructure:"poll_interval" yaml:"poll_interval"`
	LockRetryMaxCount   int      `mapstructure:"lock_retry_max_count" yaml:"lock_retry_max_count"`
	VerifyRetryMaxCount int      `mapstructure:"verify_retry_max_count" yaml:"verify_retry_max_count"`
}

type MockConfig struct {
	Policy string `mapstructure:"policy" yaml:"policy"`
	Seed   uint64 `mapstructure:"seed" yaml:"seed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Published is the read-only snapshot handed to the control panel so it
// can drive its own retry loop.
type Published struct {
	Hosts               []string `json:"hosts"`
	RetryDelaySec       int      `json:"retryDelaySec"`
	LockRetryMaxCount   int      `json:"lockRetryMaxCount"`
	VerifyRetryMaxCount int      `json:"verifyRetryMaxCount"`
}

// Published returns the configuration callers see through /api/config.
// The host list is copied so the snapshot cannot alias the config.
func (c *Config) Published() Published {
	hosts := make([]string, len(c.Publish.DisableTargets))
	copy(hosts, c.Publish.DisableTargets)

	return Published{
		Hosts:               hosts,
		RetryDelaySec:       c.Publish.PollInterval,
		LockRetryMaxCount:   c.Publish.LockRetryMaxCount,
		VerifyRetryMaxCount: c.Publish.VerifyRetryMaxCount,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.ListenPort)
}

// SetDefaults registers defaults for every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStaticDir, DefaultStaticDir)
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyLockRetryMaxCount, DefaultLockRetryMaxCount)
	v.SetDefault(KeyVerifyRetryMaxCount, DefaultVerifyRetryMaxCount)
	v.SetDefault(KeyRateBurst, DefaultRateBurst)
	v.SetDefault(KeyMockPolicy, "random")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// requiredKeys must be provided by the operator; the service refuses to
// start without them.
var requiredKeys = []string{KeyListenPort, KeyLockScript, KeyVerifyScript, KeyDisableTargets}

// Load builds the immutable configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	missing := lo.Filter(requiredKeys, func(key string, _ int) bool {
		return !v.IsSet(key)
	})
	if len(missing) > 0 {
		return nil, errors.NewConfigError(fmt.Sprintf("missing required parameters: %v", missing)).
			WithContext("missing", missing)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.NewConfigError("cannot decode configuration"), err)
	}

	// Handle slices set via viper as a single delimited string
	// (workaround for viper slice handling of env values)
	if len(config.Publish.DisableTargets) == 0 {
		config.Publish.DisableTargets = v.GetStringSlice(KeyDisableTargets)
	}
	if config.Publish.DisableTargets == nil {
		config.Publish.DisableTargets = []string{}
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice(KeyAllowedOrigins)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Browsers send Origin without a trailing slash.
	config.Server.AllowedOrigins = lo.Map(config.Server.AllowedOrigins, func(origin string, _ int) string {
		return strings.TrimSuffix(origin, "/")
	})

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return wrapConfigError("server", err)
	}

	if err := validateActionsConfig(&config.Actions); err != nil {
		return wrapConfigError("actions", err)
	}

	if err := validatePublishConfig(&config.Publish); err != nil {
		return wrapConfigError("publish", err)
	}

	if config.Mock.Policy != "random" && config.Mock.Policy != "success" {
		return wrapConfigError("mock", fmt.Errorf("unknown policy %q (random, success)", config.Mock.Policy))
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return wrapConfigError("log", err)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return wrapConfigError("log", fmt.Errorf("unknown format %q (text, json)", config.Log.Format))
	}

	return nil
}

func wrapConfigError(section string, err error) error {
	return errors.NewConfigError(fmt.Sprintf("%s config: %v", section, err)).WithContext("section", section)
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.ListenPort < 0 || config.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d is not in valid range 0-65535", config.ListenPort)
	}

	if err := validation.ValidateHost(config.Host); err != nil {
		return err
	}

	for _, origin := range config.AllowedOrigins {
		if err := validation.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("allowed origin %q: %w", origin, err)
		}
	}

	if config.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}

	if config.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if config.RateLimit > 0 && config.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set")
	}

	return nil
}

// validateActionsConfig validates the command strings
func validateActionsConfig(config *ActionsConfig) error {
	if err := validation.ValidateCommandLine(config.LockScript); err != nil {
		return fmt.Errorf("lock_script: %w", err)
	}

	if err := validation.ValidateCommandLine(config.VerifyScript); err != nil {
		return fmt.Errorf("verify_script: %w", err)
	}

	if config.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative")
	}

	return nil
}

// validatePublishConfig validates the values echoed to the control panel
func validatePublishConfig(config *PublishConfig) error {
	for _, host := range config.DisableTargets {
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("disable_targets contains a blank host")
		}
	}

	if config.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	if config.LockRetryMaxCount < 0 {
		return fmt.Errorf("lock_retry_max_count must not be negative")
	}
	if config.VerifyRetryMaxCount < 0 {
		return fmt.Errorf("verify_retry_max_count must not be negative")
	}

	return nil
}
