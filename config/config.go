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

// Config holds every setting the server reads at startup.
// Values come from an optional YAML file and are then overridden by
// environment variables (a .env file is loaded by main before Load runs).
type Config struct {
	Port             string           `yaml:"port"`
	DatabaseURL      string           `yaml:"database_url"`
	JWTSecretKey     string           `yaml:"jwt_secret_key"`
	PersonaSecretKey string           `yaml:"persona_secret_key"` // hex, 32 bytes
	RedisURL         string           `yaml:"redis_url"`
	DevRoutes        bool             `yaml:"dev_routes"`
	UploadMaxBytes   int64            `yaml:"upload_max_bytes"`
	Log              LogConfig        `yaml:"log"`
	Auth             AuthConfig       `yaml:"auth"`
	VoiceAgent       VoiceAgentConfig `yaml:"voice_agent"`
	CORS             CORSConfig       `yaml:"cors"`
	Reconcile        ReconcileConfig  `yaml:"reconcile"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type AuthConfig struct {
	RequireEmailConfirmation bool          `yaml:"require_email_confirmation"`
	ConfirmationTTL          time.Duration `yaml:"confirmation_ttl"`
	TokenTTL                 time.Duration `yaml:"token_ttl"`
	// PublicBaseURL prefixes the confirmation links sent to new users.
	PublicBaseURL string `yaml:"public_base_url"`
}

type VoiceAgentConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ReconcileConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Port:           "8080",
		UploadMaxBytes: 10 << 20,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			ConfirmationTTL: 48 * time.Hour,
			TokenTTL:        24 * time.Hour,
			PublicBaseURL:   "http://localhost:8080",
		},
		VoiceAgent: VoiceAgentConfig{
			BaseURL: "https://api.elevenlabs.io",
			Timeout: 60 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Reconcile: ReconcileConfig{
			Interval: 10 * time.Minute,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("PORT", &c.Port)
	envString("DATABASE_URL", &c.DatabaseURL)
	envString("JWT_SECRET_KEY", &c.JWTSecretKey)
	envString("PERSONA_SECRET_KEY", &c.PersonaSecretKey)
	envString("REDIS_URL", &c.RedisURL)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	envString("PUBLIC_BASE_URL", &c.Auth.PublicBaseURL)
	envString("ELEVENLABS_BASE_URL", &c.VoiceAgent.BaseURL)

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}

	if err := envBool("REQUIRE_EMAIL_CONFIRMATION", &c.Auth.RequireEmailConfirmation); err != nil {
		return err
	}
	if err := envBool("DEV_ROUTES", &c.DevRoutes); err != nil {
		return err
	}
	if err := envBool("RECONCILE_ENABLED", &c.Reconcile.Enabled); err != nil {
		return err
	}
	if err := envDuration("VOICE_AGENT_TIMEOUT", &c.VoiceAgent.Timeout); err != nil {
		return err
	}
	if err := envDuration("RECONCILE_INTERVAL", &c.Reconcile.Interval); err != nil {
		return err
	}
	if err := envDuration("TOKEN_TTL", &c.Auth.TokenTTL); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: required settings not set: %s", strings.Join(missing, ", "))
	}
	if c.Reconcile.Enabled {
		if c.RedisURL == "" {
			return errors.New("config: reconcile.enabled requires REDIS_URL")
		}
		if c.Reconcile.Interval <= 0 {
			return errors.New("config: reconcile.interval must be positive")
		}
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("config: upload_max_bytes must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
