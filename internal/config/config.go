package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Config aggregates every service setting.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Chat     ChatConfig
	Telegram TelegramConfig
	Mail     MailConfig
	Log      LogConfig

	SeedFile string `env:"SEED_FILE,default=seed.yaml"`
}

// ServerConfig describes the HTTP listener and sessions.
type ServerConfig struct {
	Port         string        `env:"PORT,default=8080"`
	StaticDir    string        `env:"STATIC_DIR,default=public"`
	SessionTTL   time.Duration `env:"SESSION_TTL,default=24h"`
	SecureCookie bool          `env:"SECURE_COOKIE,default=false"`

	// Addr is derived from Port.
	Addr string
}

// StorageConfig locates the badger directory.
type StorageConfig struct {
	Dir string `env:"DATA_DIR,default=data"`
}

// ChatConfig tunes the chat channel.
type ChatConfig struct {
	HistoryLimit   int           `env:"CHAT_HISTORY_LIMIT,default=50"`
	WriteTimeout   time.Duration `env:"CHAT_WRITE_TIMEOUT,default=10s"`
	PingInterval   time.Duration `env:"CHAT_PING_INTERVAL,default=54s"`
	MaxMessageSize int64         `env:"CHAT_MAX_MESSAGE_SIZE,default=65536"`
	SendQueue      int           `env:"CHAT_SEND_QUEUE,default=64"`
}

// TelegramConfig points the audit log at a bot. Both fields empty disables it.
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`
	BaseURL  string `env:"TELEGRAM_API_URL"`
}

// MailConfig is the SMTP relay used for password resets.
type MailConfig struct {
	Host     string `env:"EMAIL_HOST"`
	Port     int    `env:"EMAIL_PORT,default=587"`
	Username string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASS"`
	From     string `env:"EMAIL_FROM"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return LoadFrom(es)
}

// LoadFrom reads the configuration from es.
func LoadFrom(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.Chat.HistoryLimit < 1 {
		return nil, fmt.Errorf("invalid CHAT_HISTORY_LIMIT value: %d", cfg.Chat.HistoryLimit)
	}
	return &cfg, nil
}

// listenAddr accepts "8080", ":8080" or "127.0.0.1:8080".
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}
