package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	ListenAddr  string
	APIBaseURL  string

	// storage
	DataPath    string
	DatabaseURL string

	// scheduler
	PollInterval time.Duration
	StartupDelay time.Duration
	StaleAfter   int

	// upstream APIs
	CatalogBaseURL string
	GradesBaseURL  string

	// notifications
	DesktopNotify   bool
	RelayBin        string
	RelayScript     string
	TelegramToken   string
	TelegramChatIDs []string
}

// Load reads .env when present and then builds the config from the environment.
func Load() (Config, error) {
	// a missing .env is fine, the environment may already carry everything
	_ = godotenv.Load(".env")
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Environment:    getenv("ENV", "development"),
		ListenAddr:     getenv("LISTEN_ADDR", "127.0.0.1:7878"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogBaseURL: strings.TrimRight(getenv("CATALOG_BASE_URL", "https://public.enroll.wisc.edu/api/search/v1"), "/"),
		GradesBaseURL:  strings.TrimRight(getenv("GRADES_BASE_URL", "https://api.madgrades.com/v1"), "/"),
		RelayBin:       getenv("RELAY_BIN", "osascript"),
		RelayScript:    getenv("RELAY_SCRIPT", "sendMessage.scpt"),
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
	}
	cfg.APIBaseURL = strings.TrimRight(getenv("BADGERWATCH_API", "http://"+cfg.ListenAddr), "/")

	var err error
	if cfg.DataPath, err = dataPath(); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = duration("POLL_INTERVAL", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.StartupDelay, err = duration("STARTUP_DELAY", "1s"); err != nil {
		return Config{}, err
	}

	staleAfter, err := strconv.Atoi(getenv("STALE_AFTER", "5"))
	if err != nil || staleAfter < 0 {
		return Config{}, fmt.Errorf("invalid STALE_AFTER")
	}
	cfg.StaleAfter = staleAfter

	desktop, err := strconv.ParseBool(getenv("DESKTOP_NOTIFY", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DESKTOP_NOTIFY: %w", err)
	}
	cfg.DesktopNotify = desktop

	cfg.TelegramChatIDs = splitCSV(os.Getenv("TELEGRAM_CHAT_IDS"))
	if cfg.TelegramToken != "" && len(cfg.TelegramChatIDs) == 0 {
		return Config{}, fmt.Errorf("TELEGRAM_CHAT_IDS is required when TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

func dataPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("DATA_PATH")); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "badgerwatch", "app-config.json"), nil
}

func duration(k, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenv(k, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return d, nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
