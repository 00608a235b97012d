package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATA_PATH", "/tmp/bw/app-config.json")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("STARTUP_DELAY", "")
	t.Setenv("STALE_AFTER", "")
	t.Setenv("DESKTOP_NOTIFY", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("BADGERWATCH_API", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.StartupDelay != time.Second {
		t.Fatalf("startup delay = %s", cfg.StartupDelay)
	}
	if cfg.StaleAfter != 5 {
		t.Fatalf("stale after = %d", cfg.StaleAfter)
	}
	if !cfg.DesktopNotify {
		t.Fatalf("desktop notify should default on")
	}
	if cfg.APIBaseURL != "http://127.0.0.1:7878" {
		t.Fatalf("api base = %q", cfg.APIBaseURL)
	}
	if cfg.DataPath != "/tmp/bw/app-config.json" {
		t.Fatalf("data path = %q", cfg.DataPath)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATA_PATH", "/tmp/x.json")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("STALE_AFTER", "0")
	t.Setenv("CATALOG_BASE_URL", "http://catalog.local/")
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_IDS", " 12, ,34 ")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.StaleAfter != 0 {
		t.Fatalf("stale after = %d", cfg.StaleAfter)
	}
	if cfg.CatalogBaseURL != "http://catalog.local" {
		t.Fatalf("catalog base = %q", cfg.CatalogBaseURL)
	}
	if len(cfg.TelegramChatIDs) != 2 || cfg.TelegramChatIDs[0] != "12" || cfg.TelegramChatIDs[1] != "34" {
		t.Fatalf("chat ids = %v", cfg.TelegramChatIDs)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"bad poll":    {"POLL_INTERVAL", "soon"},
		"zero poll":   {"POLL_INTERVAL", "0s"},
		"bad stale":   {"STALE_AFTER", "-1"},
		"bad desktop": {"DESKTOP_NOTIFY", "maybe"},
		"bad startup": {"STARTUP_DELAY", "later"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATA_PATH", "/tmp/x.json")
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestFromEnvTelegramNeedsChats(t *testing.T) {
	t.Setenv("DATA_PATH", "/tmp/x.json")
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_IDS", "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error without chat ids")
	}
}
