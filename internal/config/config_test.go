package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"discord": {"token": "tok-123", "guild_id": "g1"},
		"tickets": {"data_dir": "/data", "close_policy": "delete", "confirm_timeout": 120},
		"transcripts": {"page_size": 50, "retention_hours": 24},
		"api": {"host": "127.0.0.1", "port": 9090, "api_key": "secret"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.Token != "tok-123" {
		t.Errorf("token = %q", cfg.Discord.Token)
	}
	if cfg.Tickets.ClosePolicy != "delete" {
		t.Errorf("close_policy = %q", cfg.Tickets.ClosePolicy)
	}
	if cfg.ConfirmTTL() != 2*time.Minute {
		t.Errorf("ConfirmTTL = %v", cfg.ConfirmTTL())
	}
	if cfg.Retention() != 24*time.Hour {
		t.Errorf("Retention = %v", cfg.Retention())
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api port = %d", cfg.API.Port)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"discord": {"token": "tok"},
		"tickets": {"data_dir": "/data"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tickets.Category != "Tickets" {
		t.Errorf("category default = %q", cfg.Tickets.Category)
	}
	if cfg.Tickets.ArchiveCategory != "Tickets-Archive" {
		t.Errorf("archive category default = %q", cfg.Tickets.ArchiveCategory)
	}
	if cfg.Tickets.StaffRole != "Staff" {
		t.Errorf("staff role default = %q", cfg.Tickets.StaffRole)
	}
	if cfg.Tickets.ClosePolicy != "archive" {
		t.Errorf("close policy default = %q", cfg.Tickets.ClosePolicy)
	}
	if cfg.ConfirmTTL() != 5*time.Minute {
		t.Errorf("confirm ttl default = %v", cfg.ConfirmTTL())
	}
	if cfg.Transcripts.Dir != "/data/transcripts" {
		t.Errorf("transcript dir default = %q", cfg.Transcripts.Dir)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 8080 {
		t.Errorf("api defaults = %s:%d", cfg.API.Host, cfg.API.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := &Config{
		Tickets: TicketConfig{ClosePolicy: "archive", ConfirmTimeout: -1},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"discord.token is required",
		"tickets.data_dir is required",
		"tickets.confirm_timeout must not be negative",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}

func TestValidateClosePolicy(t *testing.T) {
	path := writeConfig(t, `{
		"discord": {"token": "tok"},
		"tickets": {"data_dir": "/data", "close_policy": "vaporize"}
	}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "close_policy") {
		t.Fatalf("expected close_policy error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TICKD_DISCORD_TOKEN", "env-tok")
	t.Setenv("TICKD_DATA_DIR", "/var/tickd")
	t.Setenv("TICKD_CLOSE_POLICY", "delete")
	t.Setenv("TICKD_API_PORT", "9999")
	t.Setenv("TICKD_TRANSCRIPT_RETENTION_HOURS", "48")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load from env: %v", err)
	}
	if cfg.Discord.Token != "env-tok" {
		t.Errorf("token = %q", cfg.Discord.Token)
	}
	if cfg.Tickets.DataDir != "/var/tickd" {
		t.Errorf("data dir = %q", cfg.Tickets.DataDir)
	}
	if cfg.Tickets.ClosePolicy != "delete" {
		t.Errorf("close policy = %q", cfg.Tickets.ClosePolicy)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("api port = %d", cfg.API.Port)
	}
	if cfg.Retention() != 48*time.Hour {
		t.Errorf("retention = %v", cfg.Retention())
	}
}

func TestLoadFromEnvMissingToken(t *testing.T) {
	t.Setenv("TICKD_DISCORD_TOKEN", "")
	t.Setenv("TICKD_DATA_DIR", "/data")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error without token")
	}
}
