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
	DBDriver         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	SearchSubject  string
	SearchBaseURL  string
	MaxResults     int
	ScrollCycles   int
	ScrollWait     time.Duration
	FeedTimeout    time.Duration
	FieldTimeout   time.Duration
	DetailTimeout  time.Duration
	NavTimeout     time.Duration
	ExtractReviews bool
	MaxReviews     int

	RoomFetchMode string
	ImageDir      string
	CSVOutputPath string
	ChromeBin     string
	Headless      bool
	UserAgent     string
	LogLevel      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "crawler"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "crawler123"),
		PostgresDB:       getEnv("POSTGRES_DB", "venues_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./output/venues.db"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		SearchSubject:  getEnv("SEARCH_SUBJECT", "escape rooms"),
		SearchBaseURL:  getEnv("SEARCH_BASE_URL", "https://www.google.com/maps/search/"),
		MaxResults:     getEnvInt("MAX_RESULTS", 20),
		ScrollCycles:   getEnvInt("SCROLL_CYCLES", 5),
		ScrollWait:     getEnvDuration("SCROLL_WAIT_MS", 1500*time.Millisecond),
		FeedTimeout:    getEnvDuration("FEED_TIMEOUT_MS", 10*time.Second),
		FieldTimeout:   getEnvDuration("FIELD_TIMEOUT_MS", time.Second),
		DetailTimeout:  getEnvDuration("DETAIL_TIMEOUT_MS", 5*time.Second),
		NavTimeout:     getEnvDuration("NAV_TIMEOUT_MS", 45*time.Second),
		ExtractReviews: getEnvBool("EXTRACT_REVIEWS", true),
		MaxReviews:     getEnvInt("MAX_REVIEWS", 5),

		RoomFetchMode: strings.ToLower(getEnv("ROOM_FETCH_MODE", "browser")),
		ImageDir:      getEnv("IMAGE_DIR", "./output/images"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/raw_venues.csv"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		Headless:      getEnvBool("HEADLESS", true),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
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

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
