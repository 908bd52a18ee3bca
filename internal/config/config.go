package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level tickd configuration.
type Config struct {
	Discord     DiscordConfig    `json:"discord"`
	Tickets     TicketConfig     `json:"tickets"`
	Transcripts TranscriptConfig `json:"transcripts"`
	API         APIConfig        `json:"api"`
}

// DiscordConfig holds the bot connection settings.
type DiscordConfig struct {
	Token string `json:"token"`
	// GuildID scopes slash-command registration to one guild. Empty
	// registers the commands globally.
	GuildID string `json:"guild_id,omitempty"`
}

// TicketConfig holds the lifecycle policy settings.
type TicketConfig struct {
	DataDir         string `json:"data_dir"`
	Category        string `json:"category,omitempty"`         // default "Tickets"
	ArchiveCategory string `json:"archive_category,omitempty"` // default "Tickets-Archive"
	StaffRole       string `json:"staff_role,omitempty"`       // default "Staff"
	ClosePolicy     string `json:"close_policy,omitempty"`     // "archive" (default) or "delete"
	ConfirmTimeout  int    `json:"confirm_timeout,omitempty"`  // seconds, default 300
}

// TranscriptConfig holds transcript export settings.
type TranscriptConfig struct {
	Dir            string `json:"dir,omitempty"` // default {data_dir}/transcripts
	PageSize       int    `json:"page_size,omitempty"`
	MaxMessages    int    `json:"max_messages,omitempty"`    // 0 = unlimited
	RetentionHours int    `json:"retention_hours,omitempty"` // 0 = keep forever
}

// APIConfig holds admin API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds the config from environment variables with TICKD_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Discord: DiscordConfig{
			Token:   os.Getenv("TICKD_DISCORD_TOKEN"),
			GuildID: os.Getenv("TICKD_GUILD_ID"),
		},
		Tickets: TicketConfig{
			DataDir:         getenv("TICKD_DATA_DIR", "/data"),
			Category:        os.Getenv("TICKD_TICKET_CATEGORY"),
			ArchiveCategory: os.Getenv("TICKD_ARCHIVE_CATEGORY"),
			StaffRole:       os.Getenv("TICKD_STAFF_ROLE"),
			ClosePolicy:     os.Getenv("TICKD_CLOSE_POLICY"),
			ConfirmTimeout:  getenvInt("TICKD_CONFIRM_TIMEOUT", 0),
		},
		Transcripts: TranscriptConfig{
			Dir:            os.Getenv("TICKD_TRANSCRIPT_DIR"),
			PageSize:       getenvInt("TICKD_TRANSCRIPT_PAGE_SIZE", 0),
			MaxMessages:    getenvInt("TICKD_TRANSCRIPT_MAX_MESSAGES", 0),
			RetentionHours: getenvInt("TICKD_TRANSCRIPT_RETENTION_HOURS", 0),
		},
		API: APIConfig{
			Host: getenv("TICKD_API_HOST", "0.0.0.0"),
			Port: getenvInt("TICKD_API_PORT", 8080),
			Key:  os.Getenv("TICKD_API_KEY"),
		},
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Tickets.Category == "" {
		c.Tickets.Category = "Tickets"
	}
	if c.Tickets.ArchiveCategory == "" {
		c.Tickets.ArchiveCategory = "Tickets-Archive"
	}
	if c.Tickets.StaffRole == "" {
		c.Tickets.StaffRole = "Staff"
	}
	if c.Tickets.ClosePolicy == "" {
		c.Tickets.ClosePolicy = "archive"
	}
	if c.Tickets.ConfirmTimeout == 0 {
		c.Tickets.ConfirmTimeout = 300
	}
	if c.Transcripts.Dir == "" && c.Tickets.DataDir != "" {
		c.Transcripts.Dir = c.Tickets.DataDir + "/transcripts"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate checks for required fields and aggregates everything wrong.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "discord.token is required")
	}
	if c.Tickets.DataDir == "" {
		errs = append(errs, "tickets.data_dir is required")
	}
	switch c.Tickets.ClosePolicy {
	case "archive", "delete":
	default:
		errs = append(errs, fmt.Sprintf("tickets.close_policy must be \"archive\" or \"delete\", got %q", c.Tickets.ClosePolicy))
	}
	if c.Tickets.ConfirmTimeout < 0 {
		errs = append(errs, "tickets.confirm_timeout must not be negative")
	}
	if c.Transcripts.PageSize < 0 {
		errs = append(errs, "transcripts.page_size must not be negative")
	}
	if c.Transcripts.MaxMessages < 0 {
		errs = append(errs, "transcripts.max_messages must not be negative")
	}
	if c.Transcripts.RetentionHours < 0 {
		errs = append(errs, "transcripts.retention_hours must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ConfirmTTL returns the close-confirmation timeout as a duration.
func (c *Config) ConfirmTTL() time.Duration {
	return time.Duration(c.Tickets.ConfirmTimeout) * time.Second
}

// Retention returns the transcript retention window, zero meaning keep forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Transcripts.RetentionHours) * time.Hour
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
