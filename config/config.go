package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kova98/reddit-digest/enums"
)

const (
	EnvDevelopment = "DEV"
	EnvProduction  = "PROD"
)

const (
	defaultAuthURL   = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL    = "https://oauth.reddit.com"
	defaultUserAgent = "MyBot/0.0.1"
)

type AppConfig struct {
	ClientID      string
	ClientSecret  string
	UserName      string
	Password      string
	Subreddit     string
	UserAgent     string
	RedditAuthURL string
	RedditAPIURL  string
	HTTPTimeout   time.Duration
	ProxyURL      string

	OutputDir    string
	OutputPrefix string

	SenderEmail   string
	ReceiverEmail string
	EmailPassword string
	SMTPHost      string
	SMTPPort      string

	DiscordWebhook string
	DiscordMode    enums.DiscordMode
	DiscordRate    float64

	ArchiveDriver string
	ArchiveDSN    string

	PushgatewayURL string

	AppEnv   string // EnvDevelopment or EnvProduction
	LogLevel slog.Level
}

// Load reads the configuration from the process environment.
func Load() (AppConfig, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through lookup, which returns "" for unset keys.
func LoadFrom(lookup func(string) string) (AppConfig, error) {
	l := loader{lookup: lookup}
	cfg := AppConfig{}

	cfg.AppEnv = lookup("APP_ENV")
	cfg.ClientID = l.required("CLIENT_ID")
	cfg.ClientSecret = l.required("CLIENT_SECRET")
	cfg.UserName = l.required("USER_NAME")
	cfg.Password = l.required("PASSWORD")
	cfg.Subreddit = strings.TrimPrefix(l.optional("SUBREDDIT", "news"), "r/")
	cfg.UserAgent = l.optional("USER_AGENT", defaultUserAgent)
	cfg.RedditAuthURL = l.optional("REDDIT_AUTH_URL", defaultAuthURL)
	cfg.RedditAPIURL = strings.TrimRight(l.optional("REDDIT_API_URL", defaultAPIURL), "/")
	cfg.HTTPTimeout = l.duration("HTTP_TIMEOUT", 10*time.Second)
	cfg.ProxyURL = lookup("PROXY_URL")

	cfg.OutputDir = l.optional("OUTPUT_DIR", "data")
	cfg.OutputPrefix = l.optional("OUTPUT_PREFIX", "news")

	cfg.SenderEmail = lookup("SENDER_EMAIL")
	cfg.ReceiverEmail = lookup("RECEIVER_EMAIL")
	cfg.EmailPassword = lookup("EMAIL_PWD")
	cfg.SMTPHost = l.optional("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort = l.optional("SMTP_PORT", "465")

	cfg.DiscordWebhook = lookup("DISCORD_WEBHOOK")
	cfg.DiscordMode = enums.DiscordMode(strings.ToLower(l.optional("DISCORD_MODE", string(enums.DiscordModeMessages))))
	cfg.DiscordRate = l.float("DISCORD_RATE", 2)

	cfg.ArchiveDriver = l.optional("ARCHIVE_DRIVER", "postgres")
	cfg.ArchiveDSN = lookup("ARCHIVE_DSN")

	cfg.PushgatewayURL = lookup("PUSHGATEWAY_URL")

	lvlString := l.optional("LOG_LEVEL", "INFO")
	var err error
	cfg.LogLevel, err = parseLogLevel(lvlString)
	if err != nil {
		l.fail(fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}

	if !cfg.DiscordMode.Valid() {
		l.fail(fmt.Errorf("invalid DISCORD_MODE %q", cfg.DiscordMode))
	}
	if cfg.DiscordRate <= 0 {
		l.fail(fmt.Errorf("DISCORD_RATE must be positive"))
	}
	if cfg.HTTPTimeout <= 0 {
		l.fail(fmt.Errorf("HTTP_TIMEOUT must be positive"))
	}
	if cfg.ArchiveDriver != "postgres" && cfg.ArchiveDriver != "sqlite" {
		l.fail(fmt.Errorf("ARCHIVE_DRIVER must be postgres or sqlite, got %q", cfg.ArchiveDriver))
	}

	if l.err != nil {
		return AppConfig{}, l.err
	}
	return cfg, nil
}

func (c AppConfig) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// EmailEnabled reports whether all email credentials are present.
func (c AppConfig) EmailEnabled() bool {
	return c.SenderEmail != "" && c.ReceiverEmail != "" && c.EmailPassword != ""
}

func (c AppConfig) DiscordEnabled() bool {
	return c.DiscordWebhook != "" && c.DiscordMode != enums.DiscordModeOff
}

func (c AppConfig) ArchiveEnabled() bool {
	return c.ArchiveDSN != ""
}

// LogValue keeps secrets out of log output.
func (c AppConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("subreddit", c.Subreddit),
		slog.String("output_dir", c.OutputDir),
		slog.Bool("email", c.EmailEnabled()),
		slog.Bool("discord", c.DiscordEnabled()),
		slog.String("discord_mode", string(c.DiscordMode)),
		slog.Bool("archive", c.ArchiveEnabled()),
		slog.Bool("pushgateway", c.PushgatewayURL != ""),
		slog.Bool("proxy", c.ProxyURL != ""),
		slog.String("env", c.AppEnv),
	)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	var err = level.UnmarshalText([]byte(s))
	return level, err
}

type loader struct {
	lookup func(string) string
	err    error
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *loader) required(key string) string {
	value := l.lookup(key)
	if value == "" {
		l.fail(fmt.Errorf("required env var %s not set", key))
	}
	return value
}

func (l *loader) optional(key, defaultValue string) string {
	value := l.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (l *loader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := l.lookup(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func (l *loader) float(key string, defaultValue float64) float64 {
	raw := l.lookup(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}
