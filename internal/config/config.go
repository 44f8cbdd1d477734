package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the broad query and publish scope when none is configured.
var (
	DefaultReadRelays = []string{
		"wss://relay.damus.io",
		"wss://nos.lol",
		"wss://relay.primal.net",
	}
	DefaultWriteRelays = []string{
		"wss://relay.damus.io",
		"wss://nos.lol",
	}
	DefaultIndexers = []string{
		"wss://purplepag.es",
		"wss://user.kindpag.es",
		"wss://relay.nos.social",
		"wss://indexer.coracle.social",
	}
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request budget, must cover a full aggregation

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Relays
	RelayListFile     string   // YAML file with the user's lists (optional)
	ReadRelays        []string // broad query scope
	WriteRelays       []string // always receive published records
	Indexers          []string // aggregation fallback chain, in priority order
	VerifySignatures  bool     // drop records with a bad signature
	SessionsPerSecond float64  // relay session pacing

	// Prober
	ProbeTimeout    time.Duration
	ProbeStagger    time.Duration
	ReprobeInterval time.Duration // how often configured relays are re-probed
	StaleAfter      time.Duration // index entries older than this are re-probed too
	PruneInterval   time.Duration
	PruneThreshold  time.Duration

	// Aggregator
	QueryTimeout     time.Duration
	IndexerTimeout   time.Duration
	BatchSize        int
	BatchConcurrency int
	CacheTTL         time.Duration
	CacheSize        int

	// Publisher
	PublishTimeout time.Duration
	SecretKey      string // hex secp256k1 key; empty disables publishing
	ClientName     string // value of the client tag on secure origins

	// Redis (optional, empty address = in-memory only)
	RedisAddr             string
	RedisUser             string
	RedisPassword         string
	RedisPasswordRequired bool
	RedisDB               int
	RedisDT               time.Duration // dial timeout
	RedisRT               time.Duration // read timeout
	RedisWT               time.Duration // write timeout
	RedisMaxWait          time.Duration // max wait between retries
	RedisPingTimeout      time.Duration
	RedisPoolSize         int
	RedisConnectTimeout   time.Duration // total time to retry connecting
	RedisRetryInterval    time.Duration // initial wait between retries, grows exponentially
	RedisWarnThreshold    int
	StatusTTL             time.Duration

	// Access restrictions
	AllowedHosts      []string // optional, restrict write endpoints to these Host headers
	AllowedCIDRS      []string // optional, restrict ops endpoints to these IPs/CIDRs
	AllowedOrigins    []string // CORS origins, empty = "*"
	TrustProxy        bool     // trust X-Forwarded-* headers
	RateLimitBurst    int
	RateLimitPerMin   int
	RateLimitMaxPeers int
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func Load() *Config {
	cfg := &Config{
		// Server
		ListenPort:      getenv("RELAYSCOPE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("RELAYSCOPE_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("RELAYSCOPE_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("RELAYSCOPE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("RELAYSCOPE_PRETTY_LOG", true),

		// Relays
		RelayListFile:     getenv("RELAYSCOPE_RELAY_FILE", ""),
		ReadRelays:        getenvSlice("RELAYSCOPE_READ_RELAYS", DefaultReadRelays),
		WriteRelays:       getenvSlice("RELAYSCOPE_WRITE_RELAYS", DefaultWriteRelays),
		Indexers:          getenvSlice("RELAYSCOPE_INDEXERS", DefaultIndexers),
		VerifySignatures:  mustBool("RELAYSCOPE_VERIFY_SIGNATURES", true),
		SessionsPerSecond: getenvFloat("RELAYSCOPE_SESSIONS_PER_SECOND", 20),

		// Prober
		ProbeTimeout:    mustDuration("RELAYSCOPE_PROBE_TIMEOUT", 5*time.Second),
		ProbeStagger:    mustDuration("RELAYSCOPE_PROBE_STAGGER", 100*time.Millisecond),
		ReprobeInterval: mustDuration("RELAYSCOPE_REPROBE_INTERVAL", 15*time.Minute),
		StaleAfter:      mustDuration("RELAYSCOPE_STALE_AFTER", time.Hour),
		PruneInterval:   mustDuration("RELAYSCOPE_PRUNE_INTERVAL", 24*time.Hour),
		PruneThreshold:  mustDuration("RELAYSCOPE_PRUNE_THRESHOLD", 7*24*time.Hour),

		// Aggregator
		QueryTimeout:     mustDuration("RELAYSCOPE_QUERY_TIMEOUT", 8*time.Second),
		IndexerTimeout:   mustDuration("RELAYSCOPE_INDEXER_TIMEOUT", 3*time.Second),
		BatchSize:        getenvInt("RELAYSCOPE_BATCH_SIZE", 100),
		BatchConcurrency: getenvInt("RELAYSCOPE_BATCH_CONCURRENCY", 4),
		CacheTTL:         mustDuration("RELAYSCOPE_CACHE_TTL", 15*time.Minute),
		CacheSize:        getenvInt("RELAYSCOPE_CACHE_SIZE", 256),

		// Publisher
		PublishTimeout: mustDuration("RELAYSCOPE_PUBLISH_TIMEOUT", 10*time.Second),
		SecretKey:      getenv("RELAYSCOPE_SECRET_KEY", ""),
		ClientName:     getenv("RELAYSCOPE_CLIENT_NAME", "relayscope"),

		// Redis
		RedisAddr:             getenv("RELAYSCOPE_REDIS_ADDR", ""),
		RedisUser:             getenv("RELAYSCOPE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("RELAYSCOPE_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("RELAYSCOPE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("RELAYSCOPE_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),
		StatusTTL:             mustDuration("RELAYSCOPE_STATUS_TTL", 7*24*time.Hour),

		// Access restrictions
		AllowedHosts:      splitAndTrim(getenv("RELAYSCOPE_ALLOWED_HOSTS", "")),
		AllowedCIDRS:      splitAndTrim(getenv("RELAYSCOPE_ALLOWED_CIDRS", "")),
		AllowedOrigins:    splitAndTrim(getenv("RELAYSCOPE_ALLOWED_ORIGINS", "")),
		TrustProxy:        mustBool("RELAYSCOPE_TRUST_PROXY", false),
		RateLimitBurst:    getenvInt("RELAYSCOPE_RATE_LIMIT_BURST", 10),
		RateLimitPerMin:   getenvInt("RELAYSCOPE_RATE_LIMIT_PER_MIN", 30),
		RateLimitMaxPeers: getenvInt("RELAYSCOPE_RATE_LIMIT_MAX_PEERS", 4096),
	}

	if cfg.RedisEnabled() && cfg.RedisPasswordRequired {
		cfg.RedisPassword = requireEnv("RELAYSCOPE_REDIS_PASSWORD")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.SecretKey != "" {
		cp.SecretKey = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvSlice(key string, def []string) []string {
	if parts := splitAndTrim(os.Getenv(key)); len(parts) > 0 {
		return parts
	}
	return append([]string(nil), def...)
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
