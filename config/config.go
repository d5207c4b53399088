package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SearchBaseURL string
	PagesToScrape int

	DelaySeconds     float64
	JitterSeconds    float64
	DoubleDelay      bool
	MaxListings      int
	RequireAllFields bool

	WaitTimeout     time.Duration
	ScrollPause     time.Duration
	PrecheckTimeout time.Duration
	PrecheckRetries int
	Headless        bool
	ChromeBin       string

	StoreDriver string
	SQLitePath  string
	TableName   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	CSVOutputPath string
	SelectorsFile string
	Debug         bool

	Selectors Selectors
}

// Load reads the .env file and returns a populated Config struct.
// Selectors are read from SELECTORS_FILE when set, otherwise the built-in
// willhaben selectors are used.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		SearchBaseURL: getEnv("SEARCH_BASE_URL", "https://www.willhaben.at/iad/immobilien/mietwohnungen/wien"),
		PagesToScrape: getEnvInt("PAGES_TO_SCRAPE", 1),

		DelaySeconds:     getEnvFloat("DELAY_SECONDS", 5),
		JitterSeconds:    getEnvFloat("JITTER_SECONDS", 0.5),
		DoubleDelay:      getEnvBool("DOUBLE_DELAY", false),
		MaxListings:      getEnvInt("MAX_LISTINGS", 1),
		RequireAllFields: getEnvBool("REQUIRE_ALL_FIELDS", false),

		WaitTimeout:     getEnvDuration("WAIT_TIMEOUT", 10*time.Second),
		ScrollPause:     getEnvDuration("SCROLL_PAUSE", 500*time.Millisecond),
		PrecheckTimeout: getEnvDuration("PRECHECK_TIMEOUT", 15*time.Second),
		PrecheckRetries: getEnvInt("PRECHECK_RETRIES", 0),
		Headless:        getEnvBool("HEADLESS", true),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", "rental_data.db"),
		TableName:   getEnv("TABLE_NAME", "rental_data"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
		SelectorsFile: getEnv("SELECTORS_FILE", ""),
		Debug:         getEnvBool("LOG_DEBUG", false),
	}

	sel, err := LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return nil, err
	}
	cfg.Selectors = sel

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Delay is the base pause between two listing attempts.
func (c *Config) Delay() time.Duration {
	return seconds(c.DelaySeconds)
}

// Jitter is the maximum deviation applied to Delay in either direction.
func (c *Config) Jitter() time.Duration {
	return seconds(c.JitterSeconds)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
