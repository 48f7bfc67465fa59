package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// keyDelimiter separates nested config keys. Node names in store.endpoints
// may contain dots (ip-10-0-0-1.ec2.internal), so "." cannot be used.
const keyDelimiter = "::"

// ControllerIPEnv overrides the host part of controller.url when set.
const ControllerIPEnv = "CENTRAL_CONTROLLER_IP"

type AgentConfig struct {
	Environment string `mapstructure:"environment"`
	NodeName    string `mapstructure:"node_name"`
	Hostname    string `mapstructure:"hostname"`
}

type ControllerConfig struct {
	URL            string `mapstructure:"url"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

type StoreConfig struct {
	Endpoints        map[string]string `mapstructure:"endpoints"`
	FallbackEndpoint string            `mapstructure:"fallback_endpoint"`
	DB               int               `mapstructure:"db"`
	Password         string            `mapstructure:"password"`
	DialTimeout      string            `mapstructure:"dial_timeout"`
	ReadTimeout      string            `mapstructure:"read_timeout"`
	PoolSize         int               `mapstructure:"pool_size"`
}

type HeartbeatConfig struct {
	Interval     string `mapstructure:"interval"`
	CounterKey   string `mapstructure:"counter_key"`
	Align        bool   `mapstructure:"align"`
	MaxInFlight  int    `mapstructure:"max_in_flight"`
	DrainTimeout string `mapstructure:"drain_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type Config struct {
	Agent      AgentConfig      `mapstructure:"agent"`
	Controller ControllerConfig `mapstructure:"controller"`
	Store      StoreConfig      `mapstructure:"store"`
	Heartbeat  HeartbeatConfig  `mapstructure:"heartbeat"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent::environment", EnvDev)
	v.SetDefault("agent::node_name", "")
	v.SetDefault("agent::hostname", "")
	v.SetDefault("controller::url", "http://10.101.101.101:3000")
	v.SetDefault("controller::request_timeout", "750ms")
	v.SetDefault("store::fallback_endpoint", "")
	v.SetDefault("store::db", 0)
	v.SetDefault("store::password", "")
	v.SetDefault("store::dial_timeout", "250ms")
	v.SetDefault("store::read_timeout", "250ms")
	v.SetDefault("store::pool_size", 4)
	v.SetDefault("heartbeat::interval", "1s")
	v.SetDefault("heartbeat::counter_key", "outstanding_requests")
	v.SetDefault("heartbeat::align", true)
	v.SetDefault("heartbeat::max_in_flight", 4)
	v.SetDefault("heartbeat::drain_timeout", "2s")
	v.SetDefault("logging::level", LogLevelInfo)
	v.SetDefault("logging::file", "")
	v.SetDefault("logging::max_size_mb", 50)
	v.SetDefault("logging::max_backups", 3)
	v.SetDefault("logging::max_age_days", 7)
	v.SetDefault("metrics::address", "")
}

// Load reads config.yaml from ./config or the working directory, applies
// environment overrides and validates the result. The returned Config is
// never mutated afterwards.
func Load() (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if ip := os.Getenv(ControllerIPEnv); ip != "" {
		overridden, err := overrideHost(cfg.Controller.URL, ip)
		if err != nil {
			slog.Error("invalid controller url", slog.String("error", err.Error()))
			return nil, err
		}
		cfg.Controller.URL = overridden
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// overrideHost swaps the host of rawURL for ip and keeps the port.
func overrideHost(rawURL, ip string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ip, port)
	} else {
		u.Host = ip
	}

	return u.String(), nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Agent,
			validation.Required,
			validation.By(func(value interface{}) error {
				ac, ok := value.(AgentConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an AgentConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
		validation.Field(&c.Controller,
			validation.Required,
			validation.By(func(value interface{}) error {
				cc, ok := value.(ControllerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ControllerConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.URL,
						validation.Required,
						validation.By(validateControllerURL),
					),
					validation.Field(&cc.RequestTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Store,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StoreConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StoreConfig")
				}
				if len(sc.Endpoints) == 0 && sc.FallbackEndpoint == "" {
					return validation.NewError("validation_no_endpoints", "at least one endpoint or a fallback endpoint is required")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Endpoints,
						validation.Each(validation.Required, validation.By(validateHostPort)),
					),
					validation.Field(&sc.FallbackEndpoint,
						validation.By(validateOptionalHostPort),
					),
					validation.Field(&sc.DB, validation.Min(0)),
					validation.Field(&sc.DialTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&sc.ReadTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&sc.PoolSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Heartbeat,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HeartbeatConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HeartbeatConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.CounterKey,
						validation.Required,
					),
					validation.Field(&hc.MaxInFlight,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&hc.DrainTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
					validation.Field(&lc.MaxSizeMB, validation.Min(0)),
					validation.Field(&lc.MaxBackups, validation.Min(0)),
					validation.Field(&lc.MaxAgeDays, validation.Min(0)),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Address, validation.By(validateOptionalHostPort)),
				)
			}),
		),
	)
}

// RequestTimeoutDuration returns the parsed controller request timeout.
func (c ControllerConfig) RequestTimeoutDuration() time.Duration {
	return mustDuration(c.RequestTimeout)
}

func (s StoreConfig) DialTimeoutDuration() time.Duration {
	return mustDuration(s.DialTimeout)
}

func (s StoreConfig) ReadTimeoutDuration() time.Duration {
	return mustDuration(s.ReadTimeout)
}

func (h HeartbeatConfig) IntervalDuration() time.Duration {
	return mustDuration(h.Interval)
}

func (h HeartbeatConfig) DrainTimeoutDuration() time.Duration {
	return mustDuration(h.DrainTimeout)
}

// mustDuration is only used on fields Validate has already checked.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateOptionalHostPort(value interface{}) error {
	if addr, ok := value.(string); ok && addr == "" {
		return nil
	}
	return validateHostPort(value)
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 750ms, 1s)")
	}

	if d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

func validateControllerURL(value interface{}) error {
	controllerURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	parsedURL, err := url.Parse(controllerURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
