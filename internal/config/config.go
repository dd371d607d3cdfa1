package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string
	Timezone      string
	DB            DBConfig
	Redis         RedisConfig
	Logger        LoggerConfig
	Monitor       MonitorConfig
	LLM           LLMConfig

	location *time.Location // resolved from Timezone by Validate
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig is optional; an empty Host disables Redis-backed state.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

type MonitorConfig struct {
	Interval      time.Duration
	WindowHours   int
	Workers       int
	FetchTimeout  time.Duration
	UserTimeout   time.Duration
	StopTimeout   time.Duration
	AlertCooldown time.Duration
}

type LLMConfig struct {
	Providers      []string // tried in order: "gemini", "openai"
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	Model          string
	Temperature    float32
	AlertMaxTokens int
	AdviceTokens   int
	Timeout        time.Duration
}

// Enabled reports whether the redis section is configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// DSN builds the postgres connection string
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// envParser accumulates parse errors so Load can report all of them at once.
type envParser struct {
	errs []error
}

func (p *envParser) duration(key, def string) time.Duration {
	raw := getEnvOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
	}
	return d
}

func (p *envParser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
	}
	return v
}

func (p *envParser) number(key string, def float32) float32 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
	}
	return float32(v)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() (*Config, error) {
	p := &envParser{}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		HTTPAddr:      getEnvOrDefault("HTTP_ADDR", ":8080"),
		Timezone:      getEnvOrDefault("TIMEZONE", "Local"),
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "glucose_monitor"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Monitor: MonitorConfig{
			Interval:      p.duration("MONITOR_INTERVAL", "15m"),
			WindowHours:   p.integer("MONITOR_WINDOW_HOURS", 6),
			Workers:       p.integer("MONITOR_WORKERS", 4),
			FetchTimeout:  p.duration("MONITOR_FETCH_TIMEOUT", "30s"),
			UserTimeout:   p.duration("MONITOR_USER_TIMEOUT", "2m"),
			StopTimeout:   p.duration("MONITOR_STOP_TIMEOUT", "5s"),
			AlertCooldown: p.duration("ALERT_COOLDOWN", "60m"),
		},
		LLM: LLMConfig{
			Providers:      splitList(getEnvOrDefault("LLM_PROVIDERS", "gemini,openai")),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
			OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
			Model:          getEnvOrDefault("LLM_MODEL", "deepseek-r1:1.5b"),
			Temperature:    p.number("LLM_TEMPERATURE", 0.7),
			AlertMaxTokens: p.integer("LLM_ALERT_MAX_TOKENS", 200),
			AdviceTokens:   p.integer("LLM_ADVICE_MAX_TOKENS", 800),
			Timeout:        p.duration("LLM_TIMEOUT", "20s"),
		},
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that parsing alone cannot catch
func (c *Config) Validate() error {
	var errs []error
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("MONITOR_INTERVAL must be positive"))
	}
	if c.Monitor.WindowHours <= 0 {
		errs = append(errs, errors.New("MONITOR_WINDOW_HOURS must be positive"))
	}
	if c.Monitor.Workers <= 0 {
		errs = append(errs, errors.New("MONITOR_WORKERS must be positive"))
	}
	if c.Monitor.StopTimeout <= 0 {
		errs = append(errs, errors.New("MONITOR_STOP_TIMEOUT must be positive"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, errors.New("LLM_TEMPERATURE must be within [0, 2]"))
	}
	for _, provider := range c.LLM.Providers {
		if provider != "gemini" && provider != "openai" {
			errs = append(errs, fmt.Errorf("LLM_PROVIDERS: unknown provider %q", provider))
		}
	}
	if loc, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	} else {
		c.location = loc
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone used for day and hour bucketing
func (c *Config) Location() (*time.Location, error) {
	if c.location != nil {
		return c.location, nil
	}
	return time.LoadLocation(c.Timezone)
}
