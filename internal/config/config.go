package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the crawler's runtime settings, loaded from the environment.
type Config struct {
	DBPath      string // e.g. /var/lib/hydracrawl/catalog.db
	HTTPAddr    string // e.g. :8080
	PublicBaseURL string // e.g. https://hydra.example.org, used to build latest_check_url
	BearerToken string

	UpstreamWebhookURL string

	ProbePoolSize    int
	AnalysisPoolSize int

	DomainConcurrency int     // max in-flight probes per domain (K)
	DomainRatePerSec  float64 // token-bucket rate per domain (R)

	ProbeTotalTimeout time.Duration
	ProbeConnTimeout  time.Duration

	CheckIntervalBase time.Duration
	CheckIntervalMin  time.Duration
	CheckIntervalMax  time.Duration

	MaxConsecutiveFailures int
	FailureRetryInterval   time.Duration

	// MaxFilesizeAllowed maps an inferred format ("csv", "gzip", "default", ...) to a byte cap.
	MaxFilesizeAllowed map[string]int64

	// SQLIndexTypes is the closed set of index kinds resources_exceptions may request.
	SQLIndexTypes map[string]struct{}
}

// Load reads configuration from the environment, applying defaults for anything unset.
func Load() *Config {
	c := &Config{
		DBPath:             getEnv("HYDRA_DB_PATH", "./hydracrawl.db"),
		HTTPAddr:           getEnv("HYDRA_HTTP_ADDR", ":8080"),
		PublicBaseURL:      getEnv("HYDRA_PUBLIC_BASE_URL", "http://localhost:8080"),
		BearerToken:        os.Getenv("HYDRA_BEARER_TOKEN"),
		UpstreamWebhookURL: os.Getenv("HYDRA_UPSTREAM_WEBHOOK_URL"),
		ProbePoolSize:      getEnvInt("HYDRA_PROBE_POOL_SIZE", 100),
		AnalysisPoolSize:   getEnvInt("HYDRA_ANALYSIS_POOL_SIZE", 4),
		DomainConcurrency:  getEnvInt("HYDRA_DOMAIN_CONCURRENCY", 5),
		DomainRatePerSec:   getEnvFloat("HYDRA_DOMAIN_RATE_PER_SEC", 2.0),
		ProbeTotalTimeout:  getEnvDuration("HYDRA_PROBE_TOTAL_TIMEOUT", 30*time.Second),
		ProbeConnTimeout:   getEnvDuration("HYDRA_PROBE_CONN_TIMEOUT", 10*time.Second),
		CheckIntervalBase:  getEnvDuration("HYDRA_CHECK_INTERVAL_BASE", 7*24*time.Hour),
		CheckIntervalMin:   getEnvDuration("HYDRA_CHECK_INTERVAL_MIN", 1*time.Hour),
		CheckIntervalMax:   getEnvDuration("HYDRA_CHECK_INTERVAL_MAX", 30*24*time.Hour),
		MaxConsecutiveFailures: getEnvInt("HYDRA_MAX_CONSECUTIVE_FAILURES", 5),
		FailureRetryInterval:   getEnvDuration("HYDRA_FAILURE_RETRY_INTERVAL", 1*time.Hour),
	}

	c.MaxFilesizeAllowed = map[string]int64{
		"default": getEnvInt64("HYDRA_MAX_FILESIZE_DEFAULT", 1<<30), // 1 GiB
		"csv":     getEnvInt64("HYDRA_MAX_FILESIZE_CSV", 1<<30),
		"gzip":    getEnvInt64("HYDRA_MAX_FILESIZE_GZIP", 1<<29),
	}

	c.SQLIndexTypes = map[string]struct{}{}
	indexTypes := getEnv("HYDRA_SQL_INDEX_TYPES", "btree,unique")
	for _, t := range strings.Split(indexTypes, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			c.SQLIndexTypes[t] = struct{}{}
		}
	}

	if c.ProbePoolSize <= 0 {
		c.ProbePoolSize = 100
	}
	if c.AnalysisPoolSize <= 0 {
		c.AnalysisPoolSize = 4
	}
	if c.DomainConcurrency <= 0 {
		c.DomainConcurrency = 5
	}
	if c.DomainRatePerSec <= 0 {
		c.DomainRatePerSec = 2.0
	}
	return c
}

// AllowsIndexType reports whether kind is one of the configured supported index kinds.
func (c *Config) AllowsIndexType(kind string) bool {
	_, ok := c.SQLIndexTypes[kind]
	return ok
}

// MaxFilesizeFor returns the configured byte cap for the given inferred format, falling
// back to the "default" entry when format has no specific entry.
func (c *Config) MaxFilesizeFor(format string) int64 {
	if v, ok := c.MaxFilesizeAllowed[format]; ok {
		return v
	}
	return c.MaxFilesizeAllowed["default"]
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
