package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSQLitePath  string
	SessionStore  string
	RedisHost     string
	RedisPort     string
	SessionSecret string
	GinMode       string
	LogLevel      string
	HTTPAddr      string
	OpenAIAPIKey  string

	WSWriteTimeout    time.Duration
	WSPongTimeout     time.Duration
	WSMaxMessageBytes int64
	WSAllowedOrigins  []string

	ProductivityAlertThreshold float64
}

// fileConfig mirrors Config for the optional YAML overlay.
type fileConfig struct {
	Database struct {
		Driver     string `yaml:"driver"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		Name       string `yaml:"name"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Session struct {
		Store     string `yaml:"store"`
		Secret    string `yaml:"secret"`
		RedisHost string `yaml:"redis_host"`
		RedisPort string `yaml:"redis_port"`
	} `yaml:"session"`
	Server struct {
		Addr     string `yaml:"addr"`
		GinMode  string `yaml:"gin_mode"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	WebSocket struct {
		WriteTimeout    string   `yaml:"write_timeout"`
		PongTimeout     string   `yaml:"pong_timeout"`
		MaxMessageBytes int64    `yaml:"max_message_bytes"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"websocket"`
	OpenAIAPIKey               string   `yaml:"openai_api_key"`
	ProductivityAlertThreshold *float64 `yaml:"productivity_alert_threshold"`
}

// Load builds the configuration from defaults, the optional CONFIG_FILE overlay,
// and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DBDriver:                   "mysql",
		DBHost:                     "localhost",
		DBPort:                     "3306",
		DBUser:                     "timetracker",
		DBPassword:                 "timetracker",
		DBName:                     "timetracker",
		DBSQLitePath:               "timetracker.db",
		SessionStore:               "cookie",
		RedisHost:                  "localhost",
		RedisPort:                  "6379",
		SessionSecret:              "default-secret-key-change-me",
		GinMode:                    "debug",
		LogLevel:                   "info",
		HTTPAddr:                   ":8080",
		WSWriteTimeout:             10 * time.Second,
		WSPongTimeout:              60 * time.Second,
		WSMaxMessageBytes:          4096,
		ProductivityAlertThreshold: 0.3,
	}
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	setString(&c.DBDriver, fc.Database.Driver)
	setString(&c.DBHost, fc.Database.Host)
	setString(&c.DBPort, fc.Database.Port)
	setString(&c.DBUser, fc.Database.User)
	setString(&c.DBPassword, fc.Database.Password)
	setString(&c.DBName, fc.Database.Name)
	setString(&c.DBSQLitePath, fc.Database.SQLitePath)
	setString(&c.SessionStore, fc.Session.Store)
	setString(&c.SessionSecret, fc.Session.Secret)
	setString(&c.RedisHost, fc.Session.RedisHost)
	setString(&c.RedisPort, fc.Session.RedisPort)
	setString(&c.HTTPAddr, fc.Server.Addr)
	setString(&c.GinMode, fc.Server.GinMode)
	setString(&c.LogLevel, fc.Server.LogLevel)
	setString(&c.OpenAIAPIKey, fc.OpenAIAPIKey)
	setDuration(&c.WSWriteTimeout, fc.WebSocket.WriteTimeout)
	setDuration(&c.WSPongTimeout, fc.WebSocket.PongTimeout)
	if fc.WebSocket.MaxMessageBytes > 0 {
		c.WSMaxMessageBytes = fc.WebSocket.MaxMessageBytes
	}
	if len(fc.WebSocket.AllowedOrigins) > 0 {
		c.WSAllowedOrigins = fc.WebSocket.AllowedOrigins
	}
	if fc.ProductivityAlertThreshold != nil {
		c.ProductivityAlertThreshold = *fc.ProductivityAlertThreshold
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSQLitePath = getEnv("DB_SQLITE_PATH", c.DBSQLitePath)
	c.SessionStore = getEnv("SESSION_STORE", c.SessionStore)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)

	setDuration(&c.WSWriteTimeout, os.Getenv("WS_WRITE_TIMEOUT"))
	setDuration(&c.WSPongTimeout, os.Getenv("WS_PONG_TIMEOUT"))
	if v, err := strconv.ParseInt(os.Getenv("WS_MAX_MESSAGE_BYTES"), 10, 64); err == nil && v > 0 {
		c.WSMaxMessageBytes = v
	}
	if v := os.Getenv("WS_ALLOWED_ORIGINS"); v != "" {
		c.WSAllowedOrigins = splitList(v)
	}
	if v, err := strconv.ParseFloat(os.Getenv("PRODUCTIVITY_ALERT_THRESHOLD"), 64); err == nil && v >= 0 && v <= 1 {
		c.ProductivityAlertThreshold = v
	}
}

// RedisAddr returns the host:port pair of the session Redis.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
