package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quota-gateway/quota/domain"
	"quota-gateway/quota/infra"

	flag "github.com/spf13/pflag"
)

type config struct {
	listenAddr string
	staticDir  string

	identityMode string
	deviceHeader string
	trustXFF     bool

	dailyLimit   int
	timezone     string
	vipReset     string
	cleanupEvery time.Duration
	passwordVar  string

	unlockThrottle   bool
	unlockPerMinute  float64
	unlockBurst      int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsRedisEnabled  bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool

	logVerbosity int

	// preenchidos pela validação
	location *time.Location
	policy   domain.VIPPolicy
}

// readConfig lê o ambiente e aplica as flags por cima (flag > env > padrão).
// As senhas VIP não entram aqui: são lidas a cada unlock.
func readConfig(args []string) (config, error) {
	cfg := config{}
	fs := flag.NewFlagSet("quota-server", flag.ContinueOnError)

	fs.StringVar(&cfg.listenAddr, "listen-addr", defaultListenAddr(), "address the HTTP server binds to (LISTEN_ADDR, or :$PORT)")
	fs.StringVar(&cfg.staticDir, "static-dir", getenvDefault("STATIC_DIR", "templates"), "directory with the single-page app; empty disables static files (STATIC_DIR)")

	fs.StringVar(&cfg.identityMode, "identity", getenvDefault("IDENTITY_MODE", "device"), `client identity source: "device" (header) or "address" (IDENTITY_MODE)`)
	fs.StringVar(&cfg.deviceHeader, "device-header", getenvDefault("DEVICE_HEADER", "X-Device-ID"), "header carrying the device id (DEVICE_HEADER)")
	fs.BoolVar(&cfg.trustXFF, "trust-xff", getenvBoolDefault("TRUST_XFF", false), "trust X-Forwarded-For for client addresses (TRUST_XFF)")

	fs.IntVar(&cfg.dailyLimit, "daily-limit", getenvIntDefault("QUOTA_DAILY_LIMIT", domain.DefaultDailyLimit), "free uses per client per day (QUOTA_DAILY_LIMIT)")
	fs.StringVar(&cfg.timezone, "timezone", getenvDefault("QUOTA_TIMEZONE", "Asia/Tokyo"), "timezone whose midnight resets the counters (QUOTA_TIMEZONE)")
	fs.StringVar(&cfg.vipReset, "vip-reset", getenvDefault("QUOTA_VIP_RESET", "daily"), `"daily" clears VIP on date rollover, "never" keeps it (QUOTA_VIP_RESET)`)
	fs.DurationVar(&cfg.cleanupEvery, "cleanup-every", getenvDurationDefault("QUOTA_CLEANUP_EVERY", time.Hour), "interval for dropping stale quota records, 0 disables (QUOTA_CLEANUP_EVERY)")
	fs.StringVar(&cfg.passwordVar, "password-env", getenvDefault("VIP_PASSWORD_VAR", infra.DefaultPasswordVar), "environment variable holding the comma separated unlock passwords (VIP_PASSWORD_VAR)")

	fs.BoolVar(&cfg.unlockThrottle, "unlock-throttle", getenvBoolDefault("UNLOCK_THROTTLE_ENABLED", true), "throttle unlock attempts per client address (UNLOCK_THROTTLE_ENABLED)")
	fs.Float64Var(&cfg.unlockPerMinute, "unlock-per-minute", getenvFloatDefault("UNLOCK_PER_MINUTE", 5), "unlock attempts refilled per minute (UNLOCK_PER_MINUTE)")
	fs.IntVar(&cfg.unlockBurst, "unlock-burst", getenvIntDefault("UNLOCK_BURST", 5), "unlock attempts allowed in a row (UNLOCK_BURST)")

	fs.IntVar(&cfg.concurrencyMax, "concurrency-max", getenvIntDefault("CONCURRENCY_MAX", 100), "max concurrent API requests, 0 disables (CONCURRENCY_MAX)")
	fs.DurationVar(&cfg.concurrencyTimeout, "concurrency-timeout", getenvDurationDefault("CONCURRENCY_TIMEOUT", 0), "wait for a free slot before 503, 0 waits forever (CONCURRENCY_TIMEOUT)")

	fs.BoolVar(&cfg.statsRedisEnabled, "stats-redis", getenvBoolDefault("STATS_REDIS_ENABLED", false), "write quota statistics to Redis (STATS_REDIS_ENABLED)")
	fs.StringVar(&cfg.statsRedisAddr, "stats-redis-addr", getenvDefault("STATS_REDIS_ADDR", ""), "Redis address for statistics (STATS_REDIS_ADDR)")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	fs.IntVar(&cfg.statsRedisDB, "stats-redis-db", getenvIntDefault("STATS_REDIS_DB", 0), "Redis database (STATS_REDIS_DB)")
	fs.StringVar(&cfg.statsPrefix, "stats-prefix", getenvDefault("STATS_PREFIX", "quota:stats"), "Redis key prefix (STATS_PREFIX)")
	fs.DurationVar(&cfg.statsTTL, "stats-ttl", getenvDurationDefault("STATS_TTL", 7*24*time.Hour), "expiry of daily/per-key statistics (STATS_TTL)")
	fs.StringVar(&cfg.statsBucket, "stats-bucket", getenvDefault("STATS_BUCKET", "day"), `"day" or "none" (STATS_BUCKET)`)
	fs.BoolVar(&cfg.statsTrackKeys, "stats-track-keys", getenvBoolDefault("STATS_TRACK_KEYS", false), "keep per-client statistics (STATS_TRACK_KEYS)")

	fs.IntVar(&cfg.logVerbosity, "v", getenvIntDefault("LOG_VERBOSITY", 0), "log verbosity, 1 logs every request (LOG_VERBOSITY)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	return cfg, cfg.validate()
}

func (cfg *config) validate() error {
	if strings.TrimSpace(cfg.listenAddr) == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	switch cfg.identityMode {
	case "device":
		if strings.TrimSpace(cfg.deviceHeader) == "" {
			return errors.New("DEVICE_HEADER is required when IDENTITY_MODE=device")
		}
	case "address":
	default:
		return fmt.Errorf("IDENTITY_MODE must be \"device\" or \"address\", got %q", cfg.identityMode)
	}
	if cfg.dailyLimit <= 0 {
		return errors.New("QUOTA_DAILY_LIMIT must be > 0")
	}

	loc, err := time.LoadLocation(cfg.timezone)
	if err != nil {
		return fmt.Errorf("invalid QUOTA_TIMEZONE: %w", err)
	}
	cfg.location = loc

	policy, err := domain.ParseVIPPolicy(cfg.vipReset)
	if err != nil {
		return fmt.Errorf("invalid QUOTA_VIP_RESET: %w", err)
	}
	cfg.policy = policy

	if cfg.unlockThrottle && (cfg.unlockPerMinute <= 0 || cfg.unlockBurst <= 0) {
		return errors.New("UNLOCK_PER_MINUTE and UNLOCK_BURST must be > 0 when the unlock throttle is enabled")
	}
	if cfg.concurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.statsRedisEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return errors.New("STATS_REDIS_ADDR is required when STATS_REDIS_ENABLED=true")
	}
	return nil
}

// defaultListenAddr segue o padrão de PaaS: LISTEN_ADDR, senão :$PORT, senão :10000.
func defaultListenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	if p := os.Getenv("PORT"); p != "" {
		return ":" + p
	}
	return ":10000"
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
