package config

import (
	"fmt"
	"log/slog"
	"math"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PublicURL string // Optional: CDN or public bucket base URL used for stored media links

	// Notifications
	EmailDevMode        bool // log emails instead of sending; defaults to true in development
	EmailFrom           string
	ResendAPIKey        string
	NotifyWebhookURL    string
	NotifyWebhookSecret string // standard-webhooks secret ("whsec_..." or raw)
	NotifyTimeout       time.Duration

	// Ingestion limits
	MaxFileSize       int64
	MaxAttachments    int
	MaxJSONSize       int64
	UploadTimeout     time.Duration
	UploadConcurrency int
	DefaultType       string

	// Rate limiting (per client IP on the ingestion endpoint)
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RedisURL          string // Optional: shared limiter across instances

	// Proxies whose X-Forwarded-For / X-Real-IP headers are honored.
	// Empty means the TCP peer address is the client.
	TrustedProxies []netip.Prefix
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Feedbackloop"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/feedbackloop.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:    envRequired("S3_REGION"),
		S3Bucket:    envRequired("S3_BUCKET"),
		S3AccessKey: envRequired("S3_ACCESS_KEY"),
		S3SecretKey: envRequired("S3_SECRET_KEY"),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
		S3PublicURL: envString("S3_PUBLIC_URL", ""),

		// Notifications (RESEND_API_KEY optional in development, required in production)
		EmailFrom:           envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey:        envString("RESEND_API_KEY", ""),
		NotifyWebhookURL:    envString("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret: envString("NOTIFY_WEBHOOK_SECRET", ""),
		NotifyTimeout:       envDuration("NOTIFY_TIMEOUT", 10*time.Second),

		// Ingestion
		MaxFileSize:       envBytes("INGEST_MAX_FILE_SIZE", 10<<20), // 10 MiB
		MaxAttachments:    envInt("INGEST_MAX_ATTACHMENTS", 5),
		MaxJSONSize:       envBytes("INGEST_MAX_JSON_SIZE", 1<<20), // 1 MiB
		UploadTimeout:     envDuration("INGEST_UPLOAD_TIMEOUT", 30*time.Second),
		UploadConcurrency: envInt("INGEST_UPLOAD_CONCURRENCY", 3),
		DefaultType:       envString("INGEST_DEFAULT_TYPE", "bug"),

		// Rate limiting
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		RedisURL:          envString("REDIS_URL", ""),
		TrustedProxies:    envPrefixes("TRUSTED_PROXIES"),
	}
	cfg.EmailDevMode = envBool("EMAIL_DEV_MODE", cfg.IsDevelopment())

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development falls back to logging notification emails instead of sending them.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envBytes(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := ParseBytes(v)
	if err != nil {
		slog.Warn("config invalid size, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envPrefixes(key string) []netip.Prefix {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	prefixes, err := ParsePrefixes(v)
	if err != nil {
		slog.Error("config invalid proxy list", "key", key, "error", err)
		os.Exit(1)
	}
	return prefixes
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"KIB", 1 << 10},
	{"MIB", 1 << 20},
	{"GIB", 1 << 30},
	{"KB", 1 << 10},
	{"MB", 1 << 20},
	{"GB", 1 << 30},
	{"K", 1 << 10},
	{"M", 1 << 20},
	{"G", 1 << 30},
	{"B", 1},
}

// ParseBytes parses sizes like "10MB", "512KiB" or "1048576".
// Units are binary: 1MB == 1MiB.
func ParseBytes(s string) (int64, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(raw, u.suffix) {
			raw = strings.TrimSpace(strings.TrimSuffix(raw, u.suffix))
			mult = u.mult
			break
		}
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", s)
	}
	if n > math.MaxInt64/mult {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return n * mult, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ParsePrefixes parses a comma-separated list of IPs and CIDRs, e.g.
// "10.0.0.0/8, 127.0.0.1". Bare IPs become single-address prefixes.
func ParsePrefixes(s string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid prefix %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
