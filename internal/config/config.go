package config

import (
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	"github.com/arrowlabs/rrlsched/pkg/scheduler"
)

// Server holds the HTTP status/control surface settings.
type Server struct {
	ServerMode    string `mapstructure:"server_mode" default:"dev"`
	HTTPPort      int    `mapstructure:"http_port" default:"8000"`
	DownstreamURL string `mapstructure:"downstream_url"`
}

// Auth holds the bearer-token gate on the shutdown endpoint.
type Auth struct {
	Enabled   bool   `mapstructure:"enabled" default:"false"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// SchedulerSettings mirrors the subset of scheduler.Config the process
// exposes as top-level flags/env vars; everything else keeps the
// scheduler package's own defaults.
type SchedulerSettings struct {
	NumWorkers            int           `mapstructure:"num_workers" default:"4"`
	MaxAttempts           int           `mapstructure:"max_attempts" default:"3"`
	MaxPendingRequests    int           `mapstructure:"max_pending_requests" default:"1000"`
	RateLimiterBucketSize int64         `mapstructure:"rate_limiter_bucket_size" default:"0"`
	RateLimiterRefillRate int64         `mapstructure:"rate_limiter_refill_rate" default:"0"`
	RateLimiterRefillInterval time.Duration `mapstructure:"rate_limiter_refill_interval" default:"1s"`
}

// Configuration is the top-level process configuration, loaded by Load.
type Configuration struct {
	Server    Server            `mapstructure:"server"`
	Auth      Auth              `mapstructure:"auth"`
	Scheduler SchedulerSettings `mapstructure:"scheduler"`

	LogLevel  string `mapstructure:"log_level" default:"info"`
	LogFormat string `mapstructure:"log_format" default:"console"`
}

// Load reads configuration from environment variables prefixed
// RRLSCHED_ (nested fields use "_", e.g. RRLSCHED_SERVER_HTTP_PORT),
// falling back to the struct tag defaults for anything unset.
func Load() (*Configuration, error) {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("rrlsched")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults seeds viper with the already-populated struct defaults so
// AutomaticEnv overrides participate in the same precedence chain as a
// config-file-backed viper instance would use.
func bindDefaults(v *viper.Viper, cfg *Configuration) {
	v.SetDefault("server.server_mode", cfg.Server.ServerMode)
	v.SetDefault("server.http_port", cfg.Server.HTTPPort)
	v.SetDefault("server.downstream_url", cfg.Server.DownstreamURL)
	v.SetDefault("auth.enabled", cfg.Auth.Enabled)
	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("scheduler.num_workers", cfg.Scheduler.NumWorkers)
	v.SetDefault("scheduler.max_attempts", cfg.Scheduler.MaxAttempts)
	v.SetDefault("scheduler.max_pending_requests", cfg.Scheduler.MaxPendingRequests)
	v.SetDefault("scheduler.rate_limiter_bucket_size", cfg.Scheduler.RateLimiterBucketSize)
	v.SetDefault("scheduler.rate_limiter_refill_rate", cfg.Scheduler.RateLimiterRefillRate)
	v.SetDefault("scheduler.rate_limiter_refill_interval", cfg.Scheduler.RateLimiterRefillInterval)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
}

// ToSchedulerConfig translates the process configuration into a
// pkg/scheduler.Config via the package's generated functional options.
func (c *Configuration) ToSchedulerConfig() (*scheduler.Config, error) {
	return scheduler.NewConfig(
		scheduler.WithMaxAttempts(c.Scheduler.MaxAttempts),
		scheduler.WithMaxPendingRequests(c.Scheduler.MaxPendingRequests),
		scheduler.WithRateLimiterBucketSize(c.Scheduler.RateLimiterBucketSize),
		scheduler.WithRateLimiterRefillRate(c.Scheduler.RateLimiterRefillRate),
		scheduler.WithRateLimiterRefillInterval(c.Scheduler.RateLimiterRefillInterval),
		scheduler.WithRequestProcessingThreadPoolConfig(scheduler.ThreadPoolConfig{Min: 0, Max: c.Scheduler.NumWorkers}),
	)
}
