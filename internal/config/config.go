package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type BotConfig struct {
	Token     string `yaml:"token"`
	ChannelID int64  `yaml:"channel_id"`
	AdminIDs  string `yaml:"admin_ids"`
	Mode      string `yaml:"mode"`
	Admission string `yaml:"admission"`
	Challenge string `yaml:"challenge"`
}

type VerificationConfig struct {
	Attempts      int    `yaml:"attempts"`
	SessionTTL    string `yaml:"session_ttl"`
	SweepInterval string `yaml:"sweep_interval"`
}

type BroadcastConfig struct {
	Delay     string `yaml:"delay"`
	BatchSize int    `yaml:"batch_size"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HTTPConfig struct {
	Port          int    `yaml:"port"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type ConfigFile struct {
	Bot          BotConfig          `yaml:"bot"`
	Verification VerificationConfig `yaml:"verification"`
	Broadcast    BroadcastConfig    `yaml:"broadcast"`
	Redis        RedisConfig        `yaml:"redis"`
	HTTP         HTTPConfig         `yaml:"http"`
	DataFile     string             `yaml:"data_file"`
}

type Config struct {
	BotToken       string
	ChannelID      int64
	AdminIDs       []int64
	Mode           string
	Admission      string
	Challenge      string
	Attempts       int
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	BroadcastDelay time.Duration
	BroadcastBatch int
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	HTTPPort       string
	WebhookSecret  string
	DataFile       string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads the config file (if present), applies environment
// overrides and validates. Startup fails fast when bot token, channel
// id or the operator list is missing.
func Load() (*Config, error) {
	return LoadFile(env("CONFIG_FILE", "config/config.yml"))
}

func LoadFile(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		// The file is optional; environment variables alone can carry
		// a full configuration.
		configFile = &ConfigFile{}
	}

	token := env("BOT_TOKEN", configFile.Bot.Token)
	if token == "" {
		return nil, fmt.Errorf("bot token is not configured (BOT_TOKEN)")
	}

	channelID := configFile.Bot.ChannelID
	if v := os.Getenv("CHANNEL_ID"); v != "" {
		channelID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHANNEL_ID: %w", err)
		}
	}
	if channelID == 0 {
		return nil, fmt.Errorf("channel id is not configured (CHANNEL_ID)")
	}

	adminIDs, err := parseAdminIDs(env("ADMIN_IDS", configFile.Bot.AdminIDs))
	if err != nil {
		return nil, err
	}
	if len(adminIDs) == 0 {
		return nil, fmt.Errorf("operator list is not configured (ADMIN_IDS)")
	}

	sessionTTL, err := parseDuration(configFile.Verification.SessionTTL, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid session TTL: %w", err)
	}
	sweepInterval, err := parseDuration(configFile.Verification.SweepInterval, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	broadcastDelay, err := parseDuration(configFile.Broadcast.Delay, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid broadcast delay: %w", err)
	}

	cfg := &Config{
		BotToken:       token,
		ChannelID:      channelID,
		AdminIDs:       adminIDs,
		Mode:           defaultString(configFile.Bot.Mode, "polling"),
		Admission:      defaultString(configFile.Bot.Admission, "direct"),
		Challenge:      defaultString(configFile.Bot.Challenge, "freeform"),
		Attempts:       defaultInt(configFile.Verification.Attempts, 3),
		SessionTTL:     sessionTTL,
		SweepInterval:  sweepInterval,
		BroadcastDelay: broadcastDelay,
		BroadcastBatch: defaultInt(configFile.Broadcast.BatchSize, 20),
		RedisAddr:      env("REDIS_ADDR", configFile.Redis.Addr),
		RedisPassword:  env("REDIS_PASSWORD", configFile.Redis.Password),
		RedisDB:        configFile.Redis.DB,
		HTTPPort:       strconv.Itoa(defaultInt(configFile.HTTP.Port, 8080)),
		WebhookSecret:  env("WEBHOOK_SECRET", configFile.HTTP.WebhookSecret),
		DataFile:       env("DATA_FILE", defaultString(configFile.DataFile, "data.json")),
	}

	switch cfg.Mode {
	case "polling", "webhook":
	default:
		return nil, fmt.Errorf("invalid mode %q (want polling or webhook)", cfg.Mode)
	}
	switch cfg.Admission {
	case "direct", "invite":
	default:
		return nil, fmt.Errorf("invalid admission %q (want direct or invite)", cfg.Admission)
	}
	switch cfg.Challenge {
	case "freeform", "choice":
	default:
		return nil, fmt.Errorf("invalid challenge %q (want freeform or choice)", cfg.Challenge)
	}

	return cfg, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
