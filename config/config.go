package config

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the scraper.
type Config struct {
	// Target site
	SiteURL        string
	ContactAPIBase string
	UserAgent      string
	Headless       bool

	// Crawl limits
	MaxPages        int
	MaxListings     int
	MaxItemsPerPage int
	DetailWorkers   int

	// Timing
	PageWait      time.Duration // wait for listing anchors on a results page
	DetailWait    time.Duration // wait for a detail page to become ready
	ScrollPause   time.Duration
	MinJitter     time.Duration
	MaxJitter     time.Duration
	MinDelay      time.Duration // short politeness delay between requests
	MaxDelay      time.Duration
	LongPauseMin  time.Duration // longer rest applied every LongPauseEvery items
	LongPauseMax  time.Duration
	LongPauseEvery int
	RetryPause    time.Duration // fixed pause between transient-navigation retries
	NavRetries    int
	LoginTimeout  time.Duration
	GlobalTimeout time.Duration

	// Cookie persistence
	CookieFile string
	CookieTTL  time.Duration

	// Fields never written into a record, whether scraped or from the
	// contact API. One canonical set for both phases.
	ExcludedFields []string

	// Output
	OutFile string

	// Logging
	LogLevel string
	LogFile  string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		SiteURL:        "https://www.olx.com.pk",
		ContactAPIBase: "https://www.olx.com.pk",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Headless: true,

		MaxPages:        getEnvInt("MAX_PAGES", 5),
		MaxListings:     getEnvInt("MAX_LISTINGS", 50),
		MaxItemsPerPage: 24,
		DetailWorkers:   getEnvInt("DETAIL_WORKERS", 3),

		PageWait:       10 * time.Second,
		DetailWait:     8 * time.Second,
		ScrollPause:    300 * time.Millisecond,
		MinJitter:      200 * time.Millisecond,
		MaxJitter:      600 * time.Millisecond,
		MinDelay:       300 * time.Millisecond,
		MaxDelay:       800 * time.Millisecond,
		LongPauseMin:   1500 * time.Millisecond,
		LongPauseMax:   2500 * time.Millisecond,
		LongPauseEvery: 10,
		RetryPause:     5 * time.Second,
		NavRetries:     3,
		LoginTimeout:   4 * time.Minute,
		GlobalTimeout:  90 * time.Minute,

		CookieFile: getEnv("COOKIE_FILE", "olx_cookies.json"),
		CookieTTL:  7 * 24 * time.Hour,

		ExcludedFields: []string{
			"Breadcrumb Path",
			"Posted",
			"chat_available",
			"call_available",
			"Thumbnail Image",
			"proxyMobile",
			"roles",
		},

		OutFile: getEnv("OUT_FILE", "all_listings.json"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "olx"),
		DBPassword: getEnv("DB_PASSWORD", "olx"),
		DBName:     getEnv("DB_NAME", "olx_scraper"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// IsExcluded reports whether key is on the canonical exclusion list. Keys
// arrive in two shapes — raw API field names and normalized attribute keys —
// so the comparison is case-insensitive and treats spaces as underscores.
func (c Config) IsExcluded(key string) bool {
	canon := canonicalKey(key)
	for _, k := range c.ExcludedFields {
		if canonicalKey(k) == canon {
			return true
		}
	}
	return false
}

func canonicalKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(k), " ", "_"))
}

// Jitter returns a random duration in [MinJitter, MaxJitter].
func (c Config) Jitter() time.Duration {
	return randBetween(c.MinJitter, c.MaxJitter)
}

// RequestDelay returns the short politeness delay between requests.
func (c Config) RequestDelay() time.Duration {
	return randBetween(c.MinDelay, c.MaxDelay)
}

// LongPause returns the longer rest delay applied every LongPauseEvery items.
func (c Config) LongPause() time.Duration {
	return randBetween(c.LongPauseMin, c.LongPauseMax)
}

func randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
