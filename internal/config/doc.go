// Package config defines the process-level configuration for the
// rrlsched service: server mode and listen port, scheduler sizing and
// rate-limiter knobs, authentication, and logging.
//
// Configuration is loaded through github.com/spf13/viper with
// environment-variable binding (prefix RRLSCHED_), following the
// field/table layout convention below.
//
// # Server
//
//	┌───────────────┬─────────┬─────────────────────────────────────┐
//	│ Field         │ Default │ Description                          │
//	├───────────────┼─────────┼─────────────────────────────────────┤
//	│ ServerMode    │ "dev"   │ Server mode: "prod" or "dev"          │
//	│ HTTPPort      │ 8000    │ HTTP status/control server port       │
//	│ DownstreamURL │ ""      │ Target the request processor forwards │
//	│               │         │ payloads to; empty runs an echo       │
//	│               │         │ processor instead                     │
//	└───────────────┴─────────┴─────────────────────────────────────┘
//
// # Scheduler
//
//	┌───────────────────────┬─────────┬──────────────────────────────────┐
//	│ Field                 │ Default │ Description                       │
//	├───────────────────────┼─────────┼──────────────────────────────────┤
//	│ NumWorkers            │ 4       │ Worker pool max size               │
//	│ MaxAttempts           │ 3       │ Attempts before final failure      │
//	│ MaxPendingRequests    │ 1000    │ In-flight admission ceiling        │
//	│ RateLimiterBucketSize │ 0       │ 0 disables the token-bucket limiter │
//	│ RateLimiterRefillRate │ 0       │ Tokens added per refill interval   │
//	└───────────────────────┴─────────┴──────────────────────────────────┘
//
// # Auth
//
//	┌─────────────┬─────────┬──────────────────────────────────────┐
//	│ Field       │ Default │ Description                           │
//	├─────────────┼─────────┼──────────────────────────────────────┤
//	│ Enabled     │ false   │ Require a bearer token on /shutdown    │
//	│ JWTSecret   │ ""      │ HMAC secret validating the bearer token │
//	└─────────────┴─────────┴──────────────────────────────────────┘
//
// # Usage
//
//	cfg, err := config.Load()
//	schedCfg, err := cfg.ToSchedulerConfig()
//	engine := scheduler.NewEngine(schedCfg, processor, pool, limiter, scheduler.Hooks{})
package config
