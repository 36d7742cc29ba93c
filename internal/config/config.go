package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selects the tabular store implementation.
type Backend string

const (
	BackendSheets Backend = "sheets"
	BackendSQLite Backend = "sqlite"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string

	StoreBackend          Backend
	SpreadsheetID         string
	GoogleCredentialsFile string
	DatabaseURL           string

	Timezone         *time.Location
	SweepInterval    time.Duration
	MetadataCacheTTL time.Duration
}

// Load reads configuration from the environment (and a .env file when
// present) with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:         strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		StoreBackend:          Backend(strings.TrimSpace(os.Getenv("STORE_BACKEND"))),
		SpreadsheetID:         strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		GoogleCredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE")),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SweepInterval:         parseMinutes(os.Getenv("SWEEP_INTERVAL_MINUTES"), time.Minute),
		MetadataCacheTTL:      parseSeconds(os.Getenv("METADATA_CACHE_TTL_SECONDS"), 5*time.Second),
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	switch cfg.StoreBackend {
	case "":
		cfg.StoreBackend = BackendSQLite
	case BackendSheets:
		if cfg.SpreadsheetID == "" {
			return cfg, fmt.Errorf("SPREADSHEET_ID is required for the sheets backend")
		}
		if cfg.GoogleCredentialsFile == "" {
			return cfg, fmt.Errorf("GOOGLE_CREDENTIALS_FILE is required for the sheets backend")
		}
	case BackendSQLite:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "listkeeper.db"
	}

	tz := strings.TrimSpace(os.Getenv("TIMEZONE"))
	if tz == "" {
		cfg.Timezone = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("load TIMEZONE %q: %w", tz, err)
		}
		cfg.Timezone = loc
	}

	return cfg, nil
}

func parseMinutes(raw string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Minute
}

func parseSeconds(raw string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
