package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application level configuration loaded from file, environment and flags.
type Config struct {
	RunAddress           string
	DatabaseURI          string
	RedisAddr            string
	BotToken             string
	TelegramAPIURL       string
	AdminIDs             []int64
	AdminUsername        string
	StoreName            string
	WebhookSecret        string
	PollTimeout          time.Duration
	WorkerPoolSize       int
	ShutdownTimeout      time.Duration
	ConversationTTL      time.Duration
	BroadcastConcurrency int
	OperatorPasswordHash string
	TokenSecret          string
	LogLevel             string
}

// Args are the command line arguments configuration flags are parsed from.
type Args []string

const (
	defaultRunAddress           = ":8080"
	defaultTelegramAPIURL       = "https://api.telegram.org"
	defaultStoreName            = "Digital Store"
	defaultTokenSecret          = "change-me-in-production"
	defaultPollTimeout          = 30 * time.Second
	defaultWorkerPoolSize       = 4
	defaultShutdownTimeout      = 10 * time.Second
	defaultConversationTTL      = 10 * time.Minute
	defaultBroadcastConcurrency = 8
	defaultLogLevel             = "info"
)

// fileConfig mirrors the optional YAML configuration file.
type fileConfig struct {
	RunAddress           string  `yaml:"run_address"`
	DatabaseURI          string  `yaml:"database_uri"`
	RedisAddr            string  `yaml:"redis_addr"`
	BotToken             string  `yaml:"bot_token"`
	TelegramAPIURL       string  `yaml:"telegram_api_url"`
	AdminIDs             []int64 `yaml:"admin_ids"`
	AdminUsername        string  `yaml:"admin_username"`
	StoreName            string  `yaml:"store_name"`
	WebhookSecret        string  `yaml:"webhook_secret"`
	PollTimeout          string  `yaml:"poll_timeout"`
	WorkerPoolSize       int     `yaml:"worker_pool_size"`
	ShutdownTimeout      string  `yaml:"shutdown_timeout"`
	ConversationTTL      string  `yaml:"conversation_ttl"`
	BroadcastConcurrency int     `yaml:"broadcast_concurrency"`
	OperatorPasswordHash string  `yaml:"operator_password_hash"`
	TokenSecret          string  `yaml:"token_secret"`
	LogLevel             string  `yaml:"log_level"`
}

// Load parses configuration from the process arguments and environment.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

// FromArgs parses configuration from the supplied arguments and the process environment.
func FromArgs(args Args) (*Config, error) {
	return load(args, os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:           defaultRunAddress,
		TelegramAPIURL:       defaultTelegramAPIURL,
		StoreName:            defaultStoreName,
		TokenSecret:          defaultTokenSecret,
		PollTimeout:          defaultPollTimeout,
		WorkerPoolSize:       defaultWorkerPoolSize,
		ShutdownTimeout:      defaultShutdownTimeout,
		ConversationTTL:      defaultConversationTTL,
		BroadcastConcurrency: defaultBroadcastConcurrency,
		LogLevel:             defaultLogLevel,
	}

	configFile := configFileFromArgs(args)
	if configFile == "" {
		configFile = getString(lookup, "CONFIG_FILE", "")
	}
	if configFile != "" {
		if err := applyFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	cfg.RunAddress = getString(lookup, "RUN_ADDRESS", cfg.RunAddress)
	cfg.DatabaseURI = getString(lookup, "DATABASE_URI", cfg.DatabaseURI)
	cfg.RedisAddr = getString(lookup, "REDIS_ADDR", cfg.RedisAddr)
	cfg.BotToken = getString(lookup, "BOT_TOKEN", cfg.BotToken)
	cfg.TelegramAPIURL = getString(lookup, "TELEGRAM_API_URL", cfg.TelegramAPIURL)
	cfg.AdminUsername = getString(lookup, "ADMIN_USERNAME", cfg.AdminUsername)
	cfg.StoreName = getString(lookup, "STORE_NAME", cfg.StoreName)
	cfg.WebhookSecret = getString(lookup, "WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.PollTimeout = getDuration(lookup, "POLL_TIMEOUT", cfg.PollTimeout)
	cfg.WorkerPoolSize = getInt(lookup, "WORKER_POOL_SIZE", cfg.WorkerPoolSize)
	cfg.ShutdownTimeout = getDuration(lookup, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.ConversationTTL = getDuration(lookup, "CONVERSATION_TTL", cfg.ConversationTTL)
	cfg.BroadcastConcurrency = getInt(lookup, "BROADCAST_CONCURRENCY", cfg.BroadcastConcurrency)
	cfg.OperatorPasswordHash = getString(lookup, "OPERATOR_PASSWORD_HASH", cfg.OperatorPasswordHash)
	cfg.TokenSecret = getString(lookup, "TOKEN_SECRET", cfg.TokenSecret)
	cfg.LogLevel = getString(lookup, "LOG_LEVEL", cfg.LogLevel)

	adminIDs := joinIDs(cfg.AdminIDs)
	adminIDs = getString(lookup, "ADMIN_IDS", adminIDs)

	fs := flag.NewFlagSet("vendbot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		pollTimeoutStr     = cfg.PollTimeout.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		conversationTTLStr = cfg.ConversationTTL.String()
		ignoredConfigFile  string
	)

	fs.StringVar(&ignoredConfigFile, "config", configFile, "Path to YAML configuration file")
	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for conversation state")
	fs.StringVar(&cfg.BotToken, "token", cfg.BotToken, "Telegram bot token")
	fs.StringVar(&adminIDs, "admins", adminIDs, "Comma separated operator chat ids")
	fs.StringVar(&cfg.WebhookSecret, "webhook-secret", cfg.WebhookSecret, "Webhook path secret, empty enables long polling")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent update workers")
	fs.IntVar(&cfg.BroadcastConcurrency, "broadcast-concurrency", cfg.BroadcastConcurrency, "Concurrent sends during broadcast")
	fs.StringVar(&pollTimeoutStr, "poll-timeout", pollTimeoutStr, "Long polling timeout")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&conversationTTLStr, "conversation-ttl", conversationTTLStr, "Lifetime of a pending conversation step")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.PollTimeout, err = time.ParseDuration(pollTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid poll timeout: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.ConversationTTL, err = time.ParseDuration(conversationTTLStr); err != nil {
		return nil, fmt.Errorf("invalid conversation ttl: %w", err)
	}

	if cfg.AdminIDs, err = parseIDs(adminIDs); err != nil {
		return nil, fmt.Errorf("invalid admin ids: %w", err)
	}

	if tokenFile, ok := lookup("BOT_TOKEN_FILE"); ok && tokenFile != "" {
		content, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("read bot token file: %w", err)
		}
		cfg.BotToken = strings.TrimSpace(string(content))
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.BroadcastConcurrency <= 0 {
		cfg.BroadcastConcurrency = defaultBroadcastConcurrency
	}

	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.ConversationTTL <= 0 {
		cfg.ConversationTTL = defaultConversationTTL
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token must be provided")
	}

	if len(cfg.AdminIDs) == 0 {
		return nil, fmt.Errorf("at least one admin id must be provided")
	}

	return cfg, nil
}

// IsAdmin reports whether the chat id belongs to an operator.
func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

func applyFile(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(content, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.RunAddress, fc.RunAddress)
	setString(&cfg.DatabaseURI, fc.DatabaseURI)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.BotToken, fc.BotToken)
	setString(&cfg.TelegramAPIURL, fc.TelegramAPIURL)
	setString(&cfg.AdminUsername, fc.AdminUsername)
	setString(&cfg.StoreName, fc.StoreName)
	setString(&cfg.WebhookSecret, fc.WebhookSecret)
	setString(&cfg.OperatorPasswordHash, fc.OperatorPasswordHash)
	setString(&cfg.TokenSecret, fc.TokenSecret)
	setString(&cfg.LogLevel, fc.LogLevel)
	if len(fc.AdminIDs) > 0 {
		cfg.AdminIDs = fc.AdminIDs
	}
	if fc.WorkerPoolSize != 0 {
		cfg.WorkerPoolSize = fc.WorkerPoolSize
	}
	if fc.BroadcastConcurrency != 0 {
		cfg.BroadcastConcurrency = fc.BroadcastConcurrency
	}

	durations := []struct {
		name  string
		raw   string
		value *time.Duration
	}{
		{"poll_timeout", fc.PollTimeout, &cfg.PollTimeout},
		{"shutdown_timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"conversation_ttl", fc.ConversationTTL, &cfg.ConversationTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in config file: %w", d.name, err)
		}
		*d.value = parsed
	}
	return nil
}

// configFileFromArgs finds -config before the full flag set is parsed so the
// file can sit below environment and flags in precedence.
func configFileFromArgs(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if value, ok := strings.CutPrefix(name, "config="); ok {
			return value
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
