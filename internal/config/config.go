package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Late reminder policies.
const (
	LatePolicyDrop = "drop"
	LatePolicyFire = "fire"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when no explicit path is given.
var DefaultPaths = []string{"config.yaml", "config.yml", "/etc/planner-agent/config.yaml"}

// Config keeps runtime settings for the agent.
type Config struct {
	Telegram  TelegramConfig  `koanf:"telegram"`
	Database  DatabaseConfig  `koanf:"database"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Delivery  DeliveryConfig  `koanf:"delivery"`
	Greeting  GreetingConfig  `koanf:"greeting"`
	HTTP      HTTPConfig      `koanf:"http"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type TelegramConfig struct {
	Token    string  `koanf:"token"`
	OwnerIDs []int64 `koanf:"owner_ids"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SchedulerConfig controls reminder and daily-job timing.
type SchedulerConfig struct {
	Timezone   string        `koanf:"timezone"`
	DailyAt    string        `koanf:"daily_at"`
	LeadTime   time.Duration `koanf:"lead_time"`
	LatePolicy string        `koanf:"late_policy"`
}

type DeliveryConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// GreetingConfig points at an OpenAI-compatible chat completions endpoint.
// An empty APIKey disables generation and the templated fallback is used.
type GreetingConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "planner_agent.db"},
		Scheduler: SchedulerConfig{
			Timezone:   "Asia/Shanghai",
			DailyAt:    "07:00",
			LeadTime:   15 * time.Minute,
			LatePolicy: LatePolicyDrop,
		},
		Delivery: DeliveryConfig{
			Timeout:       15 * time.Second,
			RatePerSecond: 30,
		},
		Greeting: GreetingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 20 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads defaults, then the YAML file (path, CONFIG_PATH or a default
// location, all optional), then environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitOwnerIDs(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(PathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envKeys = map[string]string{
	"telegram_token":   "telegram.token",
	"owner_ids":        "telegram.owner_ids",
	"database_url":     "database.url",
	"tz_name":          "scheduler.timezone",
	"daily_at":         "scheduler.daily_at",
	"reminder_lead":    "scheduler.lead_time",
	"late_policy":      "scheduler.late_policy",
	"delivery_timeout": "delivery.timeout",
	"delivery_rate":    "delivery.rate_per_second",
	"openai_api_key":   "greeting.api_key",
	"openai_base_url":  "greeting.base_url",
	"default_model":    "greeting.model",
	"greeting_timeout": "greeting.timeout",
	"http_addr":        "http.addr",
	"log_level":        "logging.level",
	"log_format":       "logging.format",
}

// envTransformFunc maps known variables to config paths and drops the rest,
// so unrelated environment never leaks into the config tree.
func envTransformFunc(key string) string {
	return envKeys[strings.ToLower(key)]
}

// splitOwnerIDs turns "1, 2" from the environment into a list.
func splitOwnerIDs(k *koanf.Koanf) error {
	raw, ok := k.Get("telegram.owner_ids").(string)
	if !ok {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fmt.Errorf("owner id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return k.Set("telegram.owner_ids", ids)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := ParseClock(c.Scheduler.DailyAt); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.daily_at: %w", err))
	}
	if c.Scheduler.LeadTime < 0 {
		errs = append(errs, fmt.Errorf("scheduler.lead_time must not be negative"))
	}
	switch c.Scheduler.LatePolicy {
	case LatePolicyDrop, LatePolicyFire:
	default:
		errs = append(errs, fmt.Errorf("scheduler.late_policy must be %q or %q", LatePolicyDrop, LatePolicyFire))
	}
	if c.Delivery.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("delivery.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// RequireTelegram checks the settings needed to run the bot.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if len(c.Telegram.OwnerIDs) == 0 {
		return fmt.Errorf("OWNER_IDS is required")
	}
	return nil
}

// Location resolves the scheduler time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

// ParseClock parses an HH:MM wall-clock time.
func ParseClock(raw string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}
