package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string  `mapstructure:"PORT"`
	Env             string  `mapstructure:"ENV"`
	DBDSN           string  `mapstructure:"DB_DSN"`
	DBMaxOpenConns  int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	LogLevel        string  `mapstructure:"LOG_LEVEL"`
	LogFormat       string  `mapstructure:"LOG_FORMAT"`
	AppName         string  `mapstructure:"APP_NAME"`
	AppTimezone     string  `mapstructure:"APP_TIMEZONE"`
	RedisURL        string  `mapstructure:"REDIS_URL"`
	OCRQueueKey     string  `mapstructure:"OCR_QUEUE_KEY"`
	OCRMaxAttempts  int     `mapstructure:"OCR_MAX_ATTEMPTS"`
	OCRTimeoutSecs  int     `mapstructure:"OCR_TIMEOUT_SECONDS"`
	OCRWorkers      int     `mapstructure:"OCR_WORKERS"`
	UploadDir       string  `mapstructure:"UPLOAD_DIR"`
	AITimeoutSecs   int     `mapstructure:"AI_TIMEOUT_SECONDS"`
	OpenAIKey       string  `mapstructure:"OPENAI_API_KEY"`
	OpenAIBase      string  `mapstructure:"OPENAI_API_BASE"`
	OpenAIModel     string  `mapstructure:"OPENAI_DEFAULT_MODEL"`
	OpenAITimeout   int     `mapstructure:"OPENAI_TIMEOUT"`
	OpenAIMaxTokens int     `mapstructure:"OPENAI_MAX_TOKENS"`
	OpenAITemp      float64 `mapstructure:"OPENAI_TEMPERATURE"`
	VisionKey       string  `mapstructure:"GOOGLE_VISION_API_KEY"`
	VisionEndpoint  string  `mapstructure:"GOOGLE_VISION_ENDPOINT"`
	VisionFeature   string  `mapstructure:"GOOGLE_VISION_FEATURE"`
	VisionTimeout   int     `mapstructure:"GOOGLE_VISION_TIMEOUT"`
	IdentityBaseURL string  `mapstructure:"IDENTITY_BASE_URL"`
	IdentityAPIKey  string  `mapstructure:"IDENTITY_API_KEY"`
}

var keys = []string{
	"PORT", "ENV", "DB_DSN", "DB_MAX_OPEN_CONNS",
	"LOG_LEVEL", "LOG_FORMAT", "APP_NAME", "APP_TIMEZONE",
	"REDIS_URL", "OCR_QUEUE_KEY", "OCR_MAX_ATTEMPTS", "OCR_TIMEOUT_SECONDS", "OCR_WORKERS",
	"UPLOAD_DIR", "AI_TIMEOUT_SECONDS",
	"OPENAI_API_KEY", "OPENAI_API_BASE", "OPENAI_DEFAULT_MODEL", "OPENAI_TIMEOUT",
	"OPENAI_MAX_TOKENS", "OPENAI_TEMPERATURE",
	"GOOGLE_VISION_API_KEY", "GOOGLE_VISION_ENDPOINT", "GOOGLE_VISION_FEATURE", "GOOGLE_VISION_TIMEOUT",
	"IDENTITY_BASE_URL", "IDENTITY_API_KEY",
}

// Load lee .env (si existe) y el entorno. Sin DB_DSN se usa storage en memoria.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("APP_NAME", "treatment-plans")
	v.SetDefault("APP_TIMEZONE", "UTC")
	v.SetDefault("OCR_QUEUE_KEY", "treatment-plans:ocr-jobs")
	v.SetDefault("OCR_MAX_ATTEMPTS", 2)
	v.SetDefault("OCR_TIMEOUT_SECONDS", 90)
	v.SetDefault("OCR_WORKERS", 1)
	v.SetDefault("UPLOAD_DIR", "./storage/uploads")
	v.SetDefault("AI_TIMEOUT_SECONDS", 30)
	v.SetDefault("OPENAI_API_BASE", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_DEFAULT_MODEL", "gpt-4.1")
	v.SetDefault("OPENAI_TIMEOUT", 30)
	v.SetDefault("OPENAI_MAX_TOKENS", 2048)
	v.SetDefault("OPENAI_TEMPERATURE", 0.2)
	v.SetDefault("GOOGLE_VISION_ENDPOINT", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("GOOGLE_VISION_FEATURE", "DOCUMENT_TEXT_DETECTION")
	v.SetDefault("GOOGLE_VISION_TIMEOUT", 30)

	// Unmarshal solo ve las env vars enlazadas
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env es opcional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	if c.OCRMaxAttempts < 1 {
		return fmt.Errorf("OCR_MAX_ATTEMPTS must be >= 1, got %d", c.OCRMaxAttempts)
	}
	if c.IsProduction() && c.IdentityBaseURL == "" {
		return fmt.Errorf("IDENTITY_BASE_URL is required in production")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Location es la zona usada para el día calendario de horarios fijos.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCRTimeoutSecs) * time.Second
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSecs) * time.Second
}
