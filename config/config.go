package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/settings"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken        string        `yaml:"telegram_token" env:"BOT_TOKEN"`
	Profile              string        `yaml:"profile" env:"SYSCLEAN_PROFILE"`
	LogLevel             string        `yaml:"log_level" env:"SYSCLEAN_LOG_LEVEL"`
	DBPath               string        `yaml:"db_path" env:"SYSCLEAN_DB"`
	PersistSettings      bool          `yaml:"persist_settings" env:"SYSCLEAN_PERSIST_SETTINGS"`
	NotifyTimeout        time.Duration `yaml:"notify_timeout" env:"SYSCLEAN_NOTIFY_TIMEOUT"`
	PollTimeoutSecs      int           `yaml:"poll_timeout_secs" env:"SYSCLEAN_POLL_TIMEOUT_SECS"`
	ReportTime           string        `yaml:"report_time" env:"SYSCLEAN_REPORT_TIME"`
	Timezone             string        `yaml:"timezone" env:"SYSCLEAN_TIMEZONE"`
	ReportChatID         int64         `yaml:"report_chat_id" env:"SYSCLEAN_REPORT_CHAT_ID"`
	JournalRetentionDays int           `yaml:"journal_retention_days" env:"SYSCLEAN_JOURNAL_RETENTION_DAYS"`
	StrictMaxTextRunes   int           `yaml:"strict_max_text_runes"`
	SystemEventTypes     []string      `yaml:"system_event_types"`
	Keywords             Keywords      `yaml:"keywords"`
	Defaults             Defaults      `yaml:"defaults"`
}

// Keywords replaces the built-in phrase list of each non-empty group.
type Keywords struct {
	Join         []string `yaml:"join"`
	Leave        []string `yaml:"leave"`
	Title        []string `yaml:"title"`
	Photo        []string `yaml:"photo"`
	PhotoRemoved []string `yaml:"photo_removed"`
	Pin          []string `yaml:"pin"`
}

// Defaults are the startup values of the moderation toggles. Unset keys keep
// the built-in defaults.
type Defaults struct {
	AutoDelete   *bool `yaml:"auto_delete"`
	LogDeletions *bool `yaml:"log_deletions"`
	NotifyAdmins *bool `yaml:"notify_admins"`
}

// reportTimeRegex validates HH:MM format with proper ranges.
var reportTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration and applies defaults. Sources in increasing
// precedence: the YAML file at path, a .env file in the working directory,
// then process environment. A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("SYSCLEAN_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// loadDotEnv exports variables from a .env file without overriding ones
// already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnvironmentOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Profile == "" {
		cfg.Profile = string(classifier.ProfilePermissive)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./sysclean.db"
	}
	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if cfg.PollTimeoutSecs == 0 {
		cfg.PollTimeoutSecs = 60
	}
	if cfg.ReportTime == "" {
		cfg.ReportTime = "09:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.JournalRetentionDays == 0 {
		cfg.JournalRetentionDays = 30
	}
	if cfg.StrictMaxTextRunes == 0 {
		cfg.StrictMaxTextRunes = classifier.DefaultStrictMaxTextRunes
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required (or set BOT_TOKEN)")
	}
	if _, err := classifier.ParseProfile(cfg.Profile); err != nil {
		return err
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if !reportTimeRegex.MatchString(cfg.ReportTime) {
		return fmt.Errorf("report_time must be in HH:MM format (00:00-23:59), got %q", cfg.ReportTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.NotifyTimeout < 0 {
		return fmt.Errorf("notify_timeout must be positive, got %s", cfg.NotifyTimeout)
	}
	if cfg.PollTimeoutSecs < 0 {
		return fmt.Errorf("poll_timeout_secs must be positive, got %d", cfg.PollTimeoutSecs)
	}
	if cfg.JournalRetentionDays < 0 {
		return fmt.Errorf("journal_retention_days must be positive, got %d", cfg.JournalRetentionDays)
	}
	if cfg.StrictMaxTextRunes < 0 {
		return fmt.Errorf("strict_max_text_runes must be positive, got %d", cfg.StrictMaxTextRunes)
	}
	seen := make(map[string]bool, len(cfg.SystemEventTypes))
	for _, name := range cfg.SystemEventTypes {
		if !message.IsKnown(message.EventType(name)) {
			return fmt.Errorf("system_event_types: unknown event type %q", name)
		}
		if seen[name] {
			return fmt.Errorf("system_event_types: duplicate event type %q", name)
		}
		seen[name] = true
	}
	return nil
}

// ClassifierProfile returns the parsed profile. Load has already validated it.
func (c *Config) ClassifierProfile() classifier.Profile {
	p, err := classifier.ParseProfile(c.Profile)
	if err != nil {
		return classifier.ProfileSafe
	}
	return p
}

// Tables builds the classifier tables from the built-in ones and the
// configured overrides.
func (c *Config) Tables() classifier.Tables {
	t := classifier.DefaultTables()

	if len(c.SystemEventTypes) > 0 {
		t.FlagOrder = make([]message.EventType, len(c.SystemEventTypes))
		for i, name := range c.SystemEventTypes {
			t.FlagOrder[i] = message.EventType(name)
		}
	}

	overrides := map[message.EventType][]string{
		message.EventMemberAdded:  c.Keywords.Join,
		message.EventMemberLeft:   c.Keywords.Leave,
		message.EventTitleChanged: c.Keywords.Title,
		message.EventPhotoChanged: c.Keywords.Photo,
		message.EventPhotoRemoved: c.Keywords.PhotoRemoved,
		message.EventPinned:       c.Keywords.Pin,
	}
	for i, g := range t.Groups {
		if phrases := overrides[g.Event]; len(phrases) > 0 {
			t.Groups[i].Phrases = phrases
		}
	}

	if c.StrictMaxTextRunes > 0 {
		t.StrictMaxTextRunes = c.StrictMaxTextRunes
	}
	return t
}

// InitialSettings returns the startup toggles.
func (c *Config) InitialSettings() settings.Values {
	v := settings.Defaults()
	if c.Defaults.AutoDelete != nil {
		v.AutoDelete = *c.Defaults.AutoDelete
	}
	if c.Defaults.LogDeletions != nil {
		v.LogDeletions = *c.Defaults.LogDeletions
	}
	if c.Defaults.NotifyAdmins != nil {
		v.NotifyAdmins = *c.Defaults.NotifyAdmins
	}
	return v
}
