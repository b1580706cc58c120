package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBcryptCost is the bcrypt work factor used when none is configured.
const DefaultBcryptCost = 12

// SupabaseConfig holds remote backend connection settings.
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	AnonKey        string `yaml:"anon_key"`
}

// Configured reports whether the remote backend can be attempted.
func (s SupabaseConfig) Configured() bool {
	return strings.TrimSpace(s.URL) != "" && strings.TrimSpace(s.ServiceRoleKey) != ""
}

// AIConfig holds chat fallback chain settings.
type AIConfig struct {
	ServiceURL   string `yaml:"service_url"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config holds all runtime configuration for the hub.
type Config struct {
	Port        string         `yaml:"port"`
	DatabaseDSN string         `yaml:"database_dsn"`
	JWTSecret   string         `yaml:"jwt_secret"`
	BcryptCost  int            `yaml:"bcrypt_cost"`
	Supabase    SupabaseConfig `yaml:"supabase"`
	AI          AIConfig       `yaml:"ai"`
	Log         LogConfig      `yaml:"log"`
}

// Load builds the configuration from an optional .env file, an optional YAML
// config file (CONFIG_FILE), and environment variables. Environment values
// override file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        "3001",
		DatabaseDSN: "data/hub.sqlite",
		BcryptCost:  DefaultBcryptCost,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
		if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
		}
	}

	applyEnv(cfg)

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is not set")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("config: bcrypt cost %d out of range", cfg.BcryptCost)
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DatabaseDSN, "DATABASE_URL")
	// DB_PATH is the legacy sqlite shorthand.
	setString(&cfg.DatabaseDSN, "DB_PATH")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Supabase.ServiceRoleKey, "SUPABASE_SERVICE_ROLE_KEY")
	setString(&cfg.Supabase.AnonKey, "SUPABASE_ANON_KEY")
	setString(&cfg.AI.ServiceURL, "AI_SERVICE_URL")
	setString(&cfg.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")

	if raw := strings.TrimSpace(os.Getenv("BCRYPT_COST")); raw != "" {
		if cost, err := strconv.Atoi(raw); err == nil {
			cfg.BcryptCost = cost
		}
	}
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}
