package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type config struct {
	listenAddr   string
	cooldown     time.Duration
	cooldownPoll time.Duration
	accessMin    time.Duration
	accessJitter time.Duration
	parallelMax  int

	rateEnabled   bool
	rateRPS       float64
	rateBurst     int
	rateKeyHeader string
	trustXFF      bool
	retryAfter    time.Duration
	addHeaders    bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string

	logLevel       string
	logDevelopment bool
}

// defaultConfig lê as variáveis de ambiente; flags da linha de comando
// sobrescrevem esses valores.
func defaultConfig() config {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.cooldown = getenvDurationDefault("COOLDOWN", 120*time.Second)
	cfg.cooldownPoll = getenvDurationDefault("COOLDOWN_POLL", 10*time.Second)
	cfg.accessMin = getenvDurationDefault("ACCESS_MIN", 5*time.Second)
	cfg.accessJitter = getenvDurationDefault("ACCESS_JITTER", 10*time.Second)
	cfg.parallelMax = getenvIntDefault("PARALLEL_MAX", 0)

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", false)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 1)
	// Com RPS baixo (ex: 0.02) um burst grande deixa passar a rajada inicial
	// inteira, o que parece limite desligado.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else {
		cfg.rateBurst = 5
		if getenvIsSet("RATE_RPS") && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 0)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "resource:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")

	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logDevelopment = getenvBoolDefault("LOG_DEVELOPMENT", false)
	return cfg
}

func (cfg *config) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&cfg.listenAddr, "listen-addr", cfg.listenAddr, "address to listen on (LISTEN_ADDR)")
	f.DurationVar(&cfg.cooldown, "cooldown", cfg.cooldown, "minimum interval between the start of two accesses (COOLDOWN)")
	f.DurationVar(&cfg.cooldownPoll, "cooldown-poll", cfg.cooldownPoll, "how often a waiting request re-checks the cooldown (COOLDOWN_POLL)")
	f.DurationVar(&cfg.accessMin, "access-min", cfg.accessMin, "minimum simulated access time (ACCESS_MIN)")
	f.DurationVar(&cfg.accessJitter, "access-jitter", cfg.accessJitter, "random extra simulated access time (ACCESS_JITTER)")
	f.IntVar(&cfg.parallelMax, "parallel-max", cfg.parallelMax, "max concurrent submissions of /access-parallel, 0 = unlimited (PARALLEL_MAX)")

	f.BoolVar(&cfg.rateEnabled, "rate-enabled", cfg.rateEnabled, "limit submissions per client (RATE_ENABLED)")
	f.Float64Var(&cfg.rateRPS, "rate-rps", cfg.rateRPS, "submissions per second per client (RATE_RPS)")
	f.IntVar(&cfg.rateBurst, "rate-burst", cfg.rateBurst, "burst per client (RATE_BURST)")
	f.StringVar(&cfg.rateKeyHeader, "rate-key-header", cfg.rateKeyHeader, "header identifying the client, empty = IP (RATE_KEY_HEADER)")
	f.BoolVar(&cfg.trustXFF, "trust-xff", cfg.trustXFF, "use X-Forwarded-For to identify the client (TRUST_XFF)")
	f.DurationVar(&cfg.retryAfter, "retry-after", cfg.retryAfter, "Retry-After when rate limited (RETRY_AFTER)")
	f.BoolVar(&cfg.addHeaders, "ratelimit-headers", cfg.addHeaders, "add X-RateLimit-* headers (ADD_RATELIMIT_HEADERS)")

	f.IntVar(&cfg.concurrencyMax, "concurrency-max", cfg.concurrencyMax, "max callers waiting at once, 0 = unlimited (CONCURRENCY_MAX)")
	f.DurationVar(&cfg.concurrencyTimeout, "concurrency-timeout", cfg.concurrencyTimeout, "how long a caller waits for a slot (CONCURRENCY_TIMEOUT)")

	f.BoolVar(&cfg.statsEnabled, "stats-enabled", cfg.statsEnabled, "record access stats in Redis (STATS_ENABLED)")
	f.StringVar(&cfg.statsRedisAddr, "stats-redis-addr", cfg.statsRedisAddr, "Redis address (STATS_REDIS_ADDR)")
	f.IntVar(&cfg.statsRedisDB, "stats-redis-db", cfg.statsRedisDB, "Redis DB (STATS_REDIS_DB)")
	f.StringVar(&cfg.statsPrefix, "stats-prefix", cfg.statsPrefix, "Redis key prefix (STATS_PREFIX)")
	f.DurationVar(&cfg.statsTTL, "stats-ttl", cfg.statsTTL, "TTL of per-minute buckets (STATS_TTL)")
	f.StringVar(&cfg.statsBucket, "stats-bucket", cfg.statsBucket, "\"minute\" or \"none\" (STATS_BUCKET)")

	f.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "debug, info, warn or error (LOG_LEVEL)")
	f.BoolVar(&cfg.logDevelopment, "log-development", cfg.logDevelopment, "human-friendly logs (LOG_DEVELOPMENT)")
}

func (cfg config) validate() error {
	if cfg.cooldown <= 0 {
		return errors.New("COOLDOWN must be > 0")
	}
	if cfg.cooldownPoll <= 0 || cfg.cooldownPoll > cfg.cooldown {
		return errors.New("COOLDOWN_POLL must be > 0 and <= COOLDOWN")
	}
	if cfg.accessMin < 0 || cfg.accessJitter < 0 {
		return errors.New("ACCESS_MIN and ACCESS_JITTER must be >= 0")
	}
	if cfg.rateEnabled {
		if cfg.rateRPS <= 0 {
			return errors.New("RATE_RPS must be > 0")
		}
		if cfg.rateBurst <= 0 {
			return errors.New("RATE_BURST must be > 0")
		}
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	if cfg.concurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.parallelMax < 0 {
		return errors.New("PARALLEL_MAX must be >= 0")
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	if i, ok := getenvInt(k); ok {
		return i
	}
	return def
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
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
