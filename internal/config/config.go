package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"classchat/internal/content"

	"github.com/joho/godotenv"
)

type Config struct {
	GatewayURL    string
	GroupID       string
	UserID        string
	UserName      string
	Avatar        string
	IdentityForm  string
	RequireAvatar bool

	TypingDebounce time.Duration
	TypingTTL      time.Duration

	Reconnect    bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	MaxMessages int
	HistoryDB   string
	MetricsAddr string

	AssistantURL   string
	AssistantToken string
	AssistantModel string

	LogLevel slog.Level
}

// Load reads the environment, after a .env file in the working directory
// if there is one. offline skips the checks that only matter for a live
// gateway session.
func Load(offline bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	boolean := func(key string, fallback bool) bool {
		b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	maxMessages, err := strconv.Atoi(getEnv("CHAT_MAX_MESSAGES", "500"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CHAT_MAX_MESSAGES: %w", err))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	cfg := &Config{
		GatewayURL:     os.Getenv("CHAT_GATEWAY_URL"),
		GroupID:        getEnv("CHAT_GROUP_ID", "Course-101"),
		UserID:         os.Getenv("CHAT_USER_ID"),
		UserName:       os.Getenv("CHAT_USER_NAME"),
		Avatar:         os.Getenv("CHAT_AVATAR"),
		IdentityForm:   strings.ToLower(getEnv("CHAT_IDENTITY_FORM", "json")),
		RequireAvatar:  boolean("CHAT_REQUIRE_AVATAR", false),
		TypingDebounce: duration("CHAT_TYPING_DEBOUNCE", "1s"),
		TypingTTL:      duration("CHAT_TYPING_TTL", "10s"),
		Reconnect:      boolean("CHAT_RECONNECT", false),
		ReconnectMin:   duration("CHAT_RECONNECT_MIN", "500ms"),
		ReconnectMax:   duration("CHAT_RECONNECT_MAX", "30s"),
		MaxMessages:    maxMessages,
		HistoryDB:      os.Getenv("CHAT_HISTORY_DB"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		AssistantURL:   os.Getenv("ASSISTANT_URL"),
		AssistantToken: os.Getenv("ASSISTANT_TOKEN"),
		AssistantModel: os.Getenv("ASSISTANT_MODEL"),
		LogLevel:       level,
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(offline); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(offline bool) error {
	if !offline {
		if c.GatewayURL == "" {
			return fmt.Errorf("CHAT_GATEWAY_URL is required")
		}
		if c.UserID == "" {
			return fmt.Errorf("CHAT_USER_ID is required")
		}
		if err := content.ValidateUserID(c.UserID); err != nil {
			return fmt.Errorf("CHAT_USER_ID: %w", err)
		}
		if c.RequireAvatar && c.Avatar == "" {
			return fmt.Errorf("CHAT_AVATAR is required when CHAT_REQUIRE_AVATAR is set")
		}
	}

	if c.GroupID == "" {
		return fmt.Errorf("CHAT_GROUP_ID must not be empty")
	}

	if c.IdentityForm != "json" && c.IdentityForm != "plain" {
		return fmt.Errorf("CHAT_IDENTITY_FORM must be json or plain, got %q", c.IdentityForm)
	}

	if c.TypingDebounce <= 0 {
		return fmt.Errorf("CHAT_TYPING_DEBOUNCE must be greater than 0")
	}

	if c.TypingTTL < 0 {
		return fmt.Errorf("CHAT_TYPING_TTL must not be negative")
	}

	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("CHAT_RECONNECT_MIN must be positive and not above CHAT_RECONNECT_MAX")
	}

	if c.MaxMessages <= 0 {
		return fmt.Errorf("CHAT_MAX_MESSAGES must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
