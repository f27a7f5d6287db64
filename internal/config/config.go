package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort    string `yaml:"http_port"`
	HTTPSPort   string `yaml:"https_port"`
	Domain      string `yaml:"domain"`
	HTTPOnly    bool   `yaml:"http_only"`
	FrontendURI string `yaml:"frontend_uri"`
	LogLevel    string `yaml:"log_level"`

	DBPath   string `yaml:"db_path"`
	RedisURL string `yaml:"redis_url"`
	KeysDir  string `yaml:"keys_dir"`
	CertsDir string `yaml:"certs_dir"`

	DefaultAvailable bool          `yaml:"default_available"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ConversationTTL  time.Duration `yaml:"conversation_ttl"`
	TokenTTL         time.Duration `yaml:"token_ttl"`

	// JWTSecret is never read from the config file.
	JWTSecret string `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:         "8080",
		HTTPSPort:        "8443",
		Domain:           "localhost",
		LogLevel:         "info",
		DBPath:           filepath.Join(executableDir(), "presence.db"),
		KeysDir:          filepath.Join(executableDir(), "keys"),
		CertsDir:         filepath.Join(executableDir(), "certs"),
		DefaultAvailable: true,
		WriteTimeout:     10 * time.Second,
		ConversationTTL:  2 * time.Hour,
		TokenTTL:         24 * time.Hour,
	}
}

// Load reads the YAML file at path (a missing file is not an error), then
// applies environment overrides and loads the JWT secret.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = filepath.Join(executableDir(), "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		slog.Info("configuration loaded", "path", path)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.HTTPSPort = getEnv("HTTPS_PORT", cfg.HTTPSPort)
	cfg.Domain = getEnv("DOMAIN", cfg.Domain)
	cfg.HTTPOnly = getEnvBool("HTTP_ONLY", cfg.HTTPOnly)
	cfg.FrontendURI = getEnv("FRONTEND_URI", cfg.FrontendURI)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DefaultAvailable = getEnvBool("DEFAULT_AVAILABLE", cfg.DefaultAvailable)
	cfg.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ConversationTTL = getEnvDuration("CONVERSATION_TTL", cfg.ConversationTTL)

	if cfg.WriteTimeout <= 0 {
		return nil, fmt.Errorf("write_timeout must be positive, got %s", cfg.WriteTimeout)
	}
	if cfg.ConversationTTL <= 0 {
		return nil, fmt.Errorf("conversation_ttl must be positive, got %s", cfg.ConversationTTL)
	}

	cfg.JWTSecret = loadOrGenerateJWTSecret(cfg.KeysDir)
	return cfg, nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return base64.URLEncoding.EncodeToString(bytes)
}

func loadOrGenerateJWTSecret(keysDir string) string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}

	secretFile := filepath.Join(keysDir, "jwt-secret.key")
	if secretData, err := os.ReadFile(secretFile); err == nil {
		secret := strings.TrimSpace(string(secretData))
		if secret != "" {
			slog.Info("JWT secret loaded", "path", secretFile)
			return secret
		}
	}

	secret := generateRandomSecret()

	if err := os.MkdirAll(keysDir, 0700); err == nil {
		if err := os.WriteFile(secretFile, []byte(secret), 0600); err == nil {
			slog.Info("JWT secret saved", "path", secretFile)
		} else {
			slog.Warn("failed to save JWT secret, tokens will not survive a restart unless JWT_SECRET is set",
				"path", secretFile, "error", err)
		}
	}

	return secret
}
