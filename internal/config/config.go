package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source and sink backends.
const (
	BackendSheets   = "sheets"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

type Config struct {
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Source   SourceConfig
	Sink     SinkConfig
	Sheets   SheetsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Notify   NotifyConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	SiteKey            string
	LayoutsFile        string
	MaxRetriesPerURL   int
	RestartDriverAfter int
	MaxPages           int
	LoadTimeout        time.Duration
	ContentTimeout     time.Duration
	PaginationTimeout  time.Duration
	PollInterval       time.Duration
	ScrollPause        time.Duration
}

type BrowserConfig struct {
	Headless          bool
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	ScriptTimeout     time.Duration
	Locale            string
	TimezoneID        string
	ProxyServer       string
	Install           bool
}

type SourceConfig struct {
	Type string
	File string
}

type SinkConfig struct {
	Type string
	File string
}

type SheetsConfig struct {
	CredentialsFile string
	SpreadsheetID   string
	InputTab        string
	OutputTab       string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

type NotifyConfig struct {
	Enabled    bool
	OnSkip     bool
	SMTPServer string
	SMTPPort   int
	Sender     string
	Password   string
	Recipients []string
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Scraper: ScraperConfig{
			SiteKey:            getEnvOrDefault("SITE_KEY", "Myntra"),
			LayoutsFile:        getEnvOrDefault("LAYOUTS_FILE", ""),
			MaxRetriesPerURL:   getIntOrDefault("MAX_RETRIES_PER_URL", 3),
			RestartDriverAfter: getIntOrDefault("RESTART_DRIVER_AFTER", 25),
			MaxPages:           getIntOrDefault("SCRAPER_MAX_PAGES", 120),
			LoadTimeout:        getDurationOrDefault("SCRAPER_LOAD_TIMEOUT", 20*time.Second),
			ContentTimeout:     getDurationOrDefault("SCRAPER_CONTENT_TIMEOUT", 10*time.Second),
			PaginationTimeout:  getDurationOrDefault("SCRAPER_PAGINATION_TIMEOUT", 15*time.Second),
			PollInterval:       getDurationOrDefault("SCRAPER_POLL_INTERVAL", 250*time.Millisecond),
			ScrollPause:        getDurationOrDefault("SCRAPER_SCROLL_PAUSE", time.Second),
		},
		Browser: BrowserConfig{
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			UserAgent:         getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:     getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			NavigationTimeout: getDurationOrDefault("BROWSER_NAVIGATION_TIMEOUT", 60*time.Second),
			ScriptTimeout:     getDurationOrDefault("BROWSER_SCRIPT_TIMEOUT", 60*time.Second),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			TimezoneID:        getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			ProxyServer:       getEnvOrDefault("BROWSER_PROXY", ""),
			Install:           getBoolOrDefault("BROWSER_INSTALL", false),
		},
		Source: SourceConfig{
			Type: getEnvOrDefault("SOURCE_TYPE", BackendSheets),
			File: getEnvOrDefault("SOURCE_FILE", "urls.csv"),
		},
		Sink: SinkConfig{
			Type: getEnvOrDefault("SINK_TYPE", BackendSheets),
			File: getEnvOrDefault("SINK_FILE", "output/rows.csv"),
		},
		Sheets: SheetsConfig{
			CredentialsFile: getEnvOrDefault("GCP_CREDENTIALS_PATH", "credentials.json"),
			SpreadsheetID:   getEnvOrDefault("SPREADSHEET_ID", ""),
			InputTab:        getEnvOrDefault("INPUT_WORKSHEET_NAME", "URLs"),
			OutputTab:       getEnvOrDefault("OUTPUT_WORKSHEET_NAME", "Product Titles"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "listing_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 4),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:listing_scraper"),
			MaxLen:   int64(getIntOrDefault("REDIS_STREAM_MAXLEN", 10000)),
		},
		Notify: NotifyConfig{
			Enabled:    getBoolOrDefault("ENABLE_EMAIL_NOTIFICATIONS", false),
			OnSkip:     getBoolOrDefault("NOTIFY_ON_SKIP", false),
			SMTPServer: getEnvOrDefault("SMTP_SERVER", "smtp.gmail.com"),
			SMTPPort:   getIntOrDefault("SMTP_PORT", 587),
			Sender:     getEnvOrDefault("SENDER_EMAIL", ""),
			Password:   getEnvOrDefault("SENDER_PASSWORD", ""),
			Recipients: getStringSliceOrDefault("RECIPIENT_EMAIL", nil),
		},
		Server: ServerConfig{
			Addr:            getEnvOrDefault("STATUS_ADDR", ""),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			File:   getEnvOrDefault("LOG_FILE", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.SiteKey == "" {
		return fmt.Errorf("SITE_KEY is required")
	}

	if c.Scraper.MaxRetriesPerURL < 1 {
		return fmt.Errorf("MAX_RETRIES_PER_URL must be at least 1")
	}

	if c.Scraper.RestartDriverAfter < 1 {
		return fmt.Errorf("RESTART_DRIVER_AFTER must be at least 1")
	}

	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be at least 1")
	}

	if c.Scraper.PollInterval <= 0 {
		return fmt.Errorf("SCRAPER_POLL_INTERVAL must be positive")
	}

	switch c.Source.Type {
	case BackendSheets, BackendCSV:
	default:
		return fmt.Errorf("SOURCE_TYPE must be %q or %q, got %q", BackendSheets, BackendCSV, c.Source.Type)
	}

	switch c.Sink.Type {
	case BackendSheets, BackendCSV, BackendPostgres:
	default:
		return fmt.Errorf("SINK_TYPE must be %q, %q or %q, got %q",
			BackendSheets, BackendCSV, BackendPostgres, c.Sink.Type)
	}

	if c.UsesSheets() && c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is required for the sheets backend")
	}

	if c.Notify.Enabled && (c.Notify.Sender == "" || len(c.Notify.Recipients) == 0) {
		return fmt.Errorf("SENDER_EMAIL and RECIPIENT_EMAIL are required when notifications are enabled")
	}

	return nil
}

// UsesSheets reports whether the source or the sink is a spreadsheet.
func (c *Config) UsesSheets() bool {
	return c.Source.Type == BackendSheets || c.Sink.Type == BackendSheets
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return defaultValue
}
