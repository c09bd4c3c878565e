// Package config loads worker and api configuration from the environment.
package config

import (
	"os"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	LogLevel   string
	LogConsole bool

	// cache backend selection
	CacheMode      string // "redis" or "rest"
	RedisAddr      string
	CacheRESTURL   string
	CacheRESTToken string
	CacheOpTimeout time.Duration

	HealthAddr string
	APIAddr    string

	SourcesDir string

	// upstream credentials
	FIRMSMapKey         string
	OpenAQKey           string
	OpenSkyClientID     string
	OpenSkyClientSecret string
	OpenWeatherMapKey   string

	// grib proxy serving decoded model output as JSON grids
	GribProxyURL string

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	return Config{
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		CacheMode:      strings.ToLower(getenv("CACHE_MODE", "redis")),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		CacheRESTURL:   getenv("CACHE_REST_URL", ""),
		CacheRESTToken: getenv("CACHE_REST_TOKEN", ""),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		HealthAddr: getenv("HEALTH_ADDR", ":8091"),
		APIAddr:    getenv("API_ADDR", ":8090"),

		SourcesDir: getenv("SOURCES_DIR", "sources"),

		FIRMSMapKey:         getenv("FIRMS_MAP_KEY", ""),
		OpenAQKey:           getenv("OPENAQ_API_KEY", ""),
		OpenSkyClientID:     getenv("OPENSKY_CLIENT_ID", ""),
		OpenSkyClientSecret: getenv("OPENSKY_CLIENT_SECRET", ""),
		OpenWeatherMapKey:   getenv("OWM_API_KEY", ""),

		GribProxyURL: getenv("GRIB_PROXY_URL", "http://localhost:9110"),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "kaos-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "kaos-worker"),
		},
	}
}

// Disabled reports whether DISABLE_<NAME> is set truthy for a collector.
// Dashes in collector names map to underscores (DISABLE_SPACE_WEATHER).
func Disabled(name string) bool {
	k := "DISABLE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return getbool(k, false)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
