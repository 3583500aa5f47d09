package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port string

	// Persistence
	DataBackend  string
	DataFile     string
	SQLiteDBPath string

	// Accounting
	ContributionModel      string
	Windowing              string
	HouseholdTimezone      string
	SubmissionDeadlineHour int

	// AMQP realtime sync
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets reports
	GoogleSpreadsheetID     string
	GoogleReportSheetPrefix string
	ReportInterval          time.Duration

	// Report cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "file"),
		DataFile:     getEnv("DATA_FILE", "./data/mess.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/mess.db"),

		ContributionModel:      getEnv("CONTRIBUTION_MODEL", "deposit"),
		Windowing:              getEnv("WINDOWING", "monthly"),
		HouseholdTimezone:      getEnv("HOUSEHOLD_TIMEZONE", "Asia/Dhaka"),
		SubmissionDeadlineHour: getEnvInt("SUBMISSION_DEADLINE_HOUR", 22),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "mess.changes"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""),

		GoogleSpreadsheetID:     getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetPrefix: getEnv("GOOGLE_REPORT_SHEET_PREFIX", "Report"),
		ReportInterval:          getEnvDuration("REPORT_INTERVAL", time.Hour),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 64),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Location resolves the household timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.HouseholdTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.HouseholdTimezone, err)
	}
	return loc, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory":
	case "file":
		if c.DataFile == "" {
			errors = append(errors, "data file path cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory file sqlite]", c.DataBackend))
	}

	if c.ContributionModel != "deposit" && c.ContributionModel != "paid_by" {
		errors = append(errors, fmt.Sprintf("invalid contribution model '%s': must be 'deposit' or 'paid_by'", c.ContributionModel))
	}
	if c.Windowing != "monthly" && c.Windowing != "all_time" {
		errors = append(errors, fmt.Sprintf("invalid windowing '%s': must be 'monthly' or 'all_time'", c.Windowing))
	}
	if _, err := time.LoadLocation(c.HouseholdTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid household timezone '%s': %v", c.HouseholdTimezone, err))
	}
	if c.SubmissionDeadlineHour < 0 || c.SubmissionDeadlineHour > 24 {
		errors = append(errors, fmt.Sprintf("invalid submission deadline hour %d: must be between 0 and 24", c.SubmissionDeadlineHour))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReportInterval < time.Minute || c.ReportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be between 1 minute and 24 hours", c.ReportInterval))
	}
	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be positive", c.ReportCacheTTL))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text json tint]", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateReports checks the settings the report worker needs on top of
// Validate.
func (c *Config) ValidateReports() error {
	if c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("GOOGLE_SPREADSHEET_ID is required for report publishing")
	}
	if strings.TrimSpace(c.GoogleReportSheetPrefix) == "" {
		return fmt.Errorf("GOOGLE_REPORT_SHEET_PREFIX cannot be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
