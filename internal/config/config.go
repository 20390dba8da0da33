package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"neonote/internal/domain/job"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "NEONOTE"

const defaultEnvFile = ".env"

// Config holds runtime settings for the tracker.
type Config struct {
	APIBaseURL         string        `validate:"required,url"`
	ListenAddr         string        `validate:"required"`
	SessionFile        string
	RequestTimeout     time.Duration `validate:"gt=0"`
	UploadTimeout      time.Duration `validate:"gt=0"`
	PollInterval       time.Duration `validate:"gt=0"`
	PollMaxAttempts    int           `validate:"gte=1"`
	UploadMaxBytes     int64         `validate:"gte=1"`
	UploadConcurrency  int           `validate:"gte=1,lte=32"`
	AllowedOrigins     []string      `validate:"min=1,dive,required"`
	LogLevel           string        `validate:"oneof=trace debug info warn error"`
	LogFormat          string        `validate:"oneof=console json"`
	RollbarToken       string
	RollbarEnvironment string
}

// Load reads an optional env file, then the environment, and validates the
// result. An explicit envFile must exist; the default .env is optional.
func Load(envFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("upload_timeout", 5*time.Minute)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("poll_max_attempts", 30)
	v.SetDefault("upload_max_bytes", job.MaxUploadBytes)
	v.SetDefault("upload_concurrency", 4)
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("rollbar_environment", "development")

	// The web client's variable names are honoured as fallbacks.
	_ = v.BindEnv("api_base_url", EnvPrefix+"_API_BASE_URL", "VITE_API_BASE_URL", "VITE_API_URL")

	cfg := Config{
		APIBaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("api_base_url")), "/"),
		ListenAddr:         strings.TrimSpace(v.GetString("listen_addr")),
		SessionFile:        strings.TrimSpace(v.GetString("session_file")),
		RequestTimeout:     v.GetDuration("request_timeout"),
		UploadTimeout:      v.GetDuration("upload_timeout"),
		PollInterval:       v.GetDuration("poll_interval"),
		PollMaxAttempts:    v.GetInt("poll_max_attempts"),
		UploadMaxBytes:     v.GetInt64("upload_max_bytes"),
		UploadConcurrency:  v.GetInt("upload_concurrency"),
		AllowedOrigins:     splitList(v.GetString("allowed_origins")),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		RollbarToken:       strings.TrimSpace(v.GetString("rollbar_token")),
		RollbarEnvironment: strings.TrimSpace(v.GetString("rollbar_environment")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// UploadPolicy returns the default allow-list with the configured size limit.
func (c Config) UploadPolicy() job.UploadPolicy {
	policy := job.DefaultPolicy()
	policy.MaxBytes = c.UploadMaxBytes
	return policy
}

func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("config env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config env file %s: %w", path, err)
	}
	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".neonote", "session.json")
	}
	return filepath.Join(home, ".neonote", "session.json")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
