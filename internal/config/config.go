package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ServiceAuth    = "auth"
	ServiceGateway = "gateway"

	envPrefix = "CODEVEROS"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Service string `mapstructure:"-"`

	Server struct {
		Addr           string        `mapstructure:"addr"`
		Mode           string        `mapstructure:"mode"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
		WriteTimeout   time.Duration `mapstructure:"write_timeout"`
		TrustedProxies []string      `mapstructure:"trusted_proxies"` // IPs or CIDRs allowed to set X-Forwarded-For
	} `mapstructure:"server"`

	Auth struct {
		Secret   string        `mapstructure:"secret"`
		TokenTTL time.Duration `mapstructure:"token_ttl"`
		Issuer   string        `mapstructure:"issuer"`
		Leeway   time.Duration `mapstructure:"leeway"`
	} `mapstructure:"auth"`

	Gateway struct {
		AuthServiceURL     string   `mapstructure:"auth_service_url"`
		UserServiceURL     string   `mapstructure:"user_service_url"`
		TrainingServiceURL string   `mapstructure:"training_service_url"`
		AllowedUpstreams   []string `mapstructure:"allowed_upstreams"`
		Upstream           struct {
			Timeout    time.Duration `mapstructure:"timeout"`
			RetryCount int           `mapstructure:"retry_count"`
		} `mapstructure:"upstream"`
		HeaderKeys struct {
			UserID string `mapstructure:"user_id"`
		} `mapstructure:"header_keys"`
		LoginRateLimit struct {
			Enabled bool    `mapstructure:"enabled"`
			RPS     float64 `mapstructure:"rps"`
			Burst   int     `mapstructure:"burst"`
		} `mapstructure:"login_rate_limit"`
		Revocation struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"revocation"`
	} `mapstructure:"gateway"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Observability struct {
		MetricsEnabled     bool   `mapstructure:"metrics_enabled"`
		TraceEnabled       bool   `mapstructure:"trace_enabled"`
		TracingEndpointURL string `mapstructure:"tracing_endpoint_url"`
		LogLevel           string `mapstructure:"log_level"`
		Format             string `mapstructure:"log_format"`
		LogSource          bool   `mapstructure:"log_source"`
	} `mapstructure:"observability"`

	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
}

// MustLoad loads config/<service>.yaml and exits the process on any error.
func MustLoad(service string) *Config {
	cfg, err := Load(service)
	if err != nil {
		slog.Default().Error("Failed to load config", slog.String("service", service), slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}

func Load(service string) (*Config, error) {
	return LoadFrom(service, "./config", ".")
}

// LoadFrom reads <service>.yaml from the first matching path, merges <service>.<APP_ENV>.yaml
// when APP_ENV is set, then applies CODEVEROS_* environment overrides.
// A missing base file is not an error; defaults and environment still apply.
func LoadFrom(service string, paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	v.SetConfigName(service)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("%s.%s", service, env))
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to merge %s config: %w", env, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Service = service
	cfg.Server.TrustedProxies = splitList(cfg.Server.TrustedProxies)
	cfg.Gateway.AllowedUpstreams = splitList(cfg.Gateway.AllowedUpstreams)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// every key needs a default so AutomaticEnv can override it during Unmarshal
func setDefaults(v *viper.Viper, service string) {
	addr := ":8081"
	if service == ServiceGateway {
		addr = ":8080"
	}
	v.SetDefault("server.addr", addr)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", time.Duration(0))

	v.SetDefault("gateway.auth_service_url", "")
	v.SetDefault("gateway.user_service_url", "")
	v.SetDefault("gateway.training_service_url", "")
	v.SetDefault("gateway.allowed_upstreams", []string{})
	v.SetDefault("gateway.upstream.timeout", 5*time.Second)
	v.SetDefault("gateway.upstream.retry_count", 1)
	v.SetDefault("gateway.header_keys.user_id", "X-User-ID")
	v.SetDefault("gateway.login_rate_limit.enabled", true)
	v.SetDefault("gateway.login_rate_limit.rps", 1.0)
	v.SetDefault("gateway.login_rate_limit.burst", 10)
	v.SetDefault("gateway.revocation.enabled", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.trace_enabled", false)
	v.SetDefault("observability.tracing_endpoint_url", "")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.log_source", false)

	v.SetDefault("cors.allowed_origins", []string{})
}

func (c *Config) Validate() error {
	var problems []string

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if !isIPOrCIDR(proxy) {
			problems = append(problems, fmt.Sprintf("server.trusted_proxies: %q is not an IP or CIDR", proxy))
		}
	}

	switch c.Service {
	case ServiceAuth:
		problems = append(problems, c.validateAuth()...)
	case ServiceGateway:
		problems = append(problems, c.validateGateway()...)
	default:
		problems = append(problems, fmt.Sprintf("unknown service %q", c.Service))
	}

	if c.Observability.TraceEnabled && c.Observability.TracingEndpointURL == "" {
		problems = append(problems, "observability.tracing_endpoint_url is required when tracing is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateAuth() []string {
	var problems []string
	if c.Auth.Secret == "" {
		problems = append(problems, "auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "auth.token_ttl must be positive")
	}
	if c.Auth.Leeway < 0 {
		problems = append(problems, "auth.leeway must not be negative")
	}
	return problems
}

func (c *Config) validateGateway() []string {
	var problems []string

	required := []struct{ key, value string }{
		{"gateway.auth_service_url", c.Gateway.AuthServiceURL},
		{"gateway.user_service_url", c.Gateway.UserServiceURL},
	}
	for _, r := range required {
		if r.value == "" {
			problems = append(problems, r.key+" is required")
			continue
		}
		if !isAbsoluteURL(r.value) {
			problems = append(problems, r.key+" must be an absolute http(s) URL")
		}
	}
	if c.Gateway.TrainingServiceURL != "" && !isAbsoluteURL(c.Gateway.TrainingServiceURL) {
		problems = append(problems, "gateway.training_service_url must be an absolute http(s) URL")
	}

	if len(c.Gateway.AllowedUpstreams) == 0 {
		problems = append(problems, "gateway.allowed_upstreams is required")
	}
	for _, entry := range c.Gateway.AllowedUpstreams {
		if !isAbsoluteURL(entry) {
			problems = append(problems, fmt.Sprintf("gateway.allowed_upstreams: %q must be an absolute http(s) URL", entry))
		}
	}

	if c.Gateway.Upstream.Timeout <= 0 {
		problems = append(problems, "gateway.upstream.timeout must be positive")
	}
	if c.Gateway.Upstream.RetryCount < 0 {
		problems = append(problems, "gateway.upstream.retry_count must not be negative")
	}
	if c.Gateway.HeaderKeys.UserID == "" {
		problems = append(problems, "gateway.header_keys.user_id is required")
	}
	if rl := c.Gateway.LoginRateLimit; rl.Enabled && (rl.RPS <= 0 || rl.Burst <= 0) {
		problems = append(problems, "gateway.login_rate_limit rps and burst must be positive")
	}
	if c.Gateway.Revocation.Enabled {
		if c.Redis.URL == "" {
			problems = append(problems, "redis.url is required when revocation is enabled")
		}
		if c.Auth.TokenTTL <= 0 {
			problems = append(problems, "auth.token_ttl must be positive when revocation is enabled")
		}
	}
	return problems
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isIPOrCIDR(raw string) bool {
	if net.ParseIP(raw) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(raw)
	return err == nil
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
