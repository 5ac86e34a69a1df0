package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Minio      MinioConfig      `yaml:"minio"`
	Storage    StorageConfig    `yaml:"storage"`
	Signing    SigningConfig    `yaml:"signing"`
	Onboarding OnboardingConfig `yaml:"onboarding"`
	Notify     NotifyConfig     `yaml:"notify"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Auth       AuthConfig       `yaml:"auth"`
	Users      []User           `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MinioConfig configures the primary (cloud) blob backend. An empty
// endpoint means the backend is unconfigured and all writes fall back
// to local storage.
type MinioConfig struct {
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	UseSSL      bool   `yaml:"use_ssl"`
	ExpireHours int    `yaml:"expire_hours"` // presigned link lifetime
}

// StorageConfig configures the local fallback backend and the timeout
// applied to every external storage call.
type StorageConfig struct {
	LocalRoot      string `yaml:"local_root"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type SigningConfig struct {
	KeysDir string `yaml:"keys_dir"`
}

// OnboardingConfig carries the tool URLs handed out with an access
// grant and the advisory grant lifetime.
type OnboardingConfig struct {
	CourseURL        string `yaml:"course_url"`
	DashboardURL     string `yaml:"dashboard_url"`
	AccessExpireDays int    `yaml:"access_expire_days"`
}

// NotifyConfig configures the best-effort webhook used for team-chat
// invites and nudge pings. An empty URL disables sending.
type NotifyConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AssistantConfig points at the external retrieval/chat service. The
// core only ships text out and back in.
type AssistantConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is a config-file account standing in for the external identity
// provider during development and tests.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"` // vendor, distributor
	VendorID string `yaml:"vendor_id,omitempty"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Environment overrides for secrets
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Minio.ExpireHours == 0 {
		cfg.Minio.ExpireHours = 24
	}
	if cfg.Storage.LocalRoot == "" {
		cfg.Storage.LocalRoot = "./data"
	}
	if cfg.Storage.TimeoutSeconds == 0 {
		cfg.Storage.TimeoutSeconds = 30
	}
	if cfg.Signing.KeysDir == "" {
		cfg.Signing.KeysDir = "./keys"
	}
	if cfg.Onboarding.AccessExpireDays == 0 {
		cfg.Onboarding.AccessExpireDays = 30
	}
	if cfg.Notify.TimeoutSeconds == 0 {
		cfg.Notify.TimeoutSeconds = 5
	}
	if cfg.Assistant.TimeoutSeconds == 0 {
		cfg.Assistant.TimeoutSeconds = 30
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}

	return &cfg, nil
}

// FindUser finds a user by email.
func (c *Config) FindUser(email string) *User {
	for i := range c.Users {
		if c.Users[i].Email == email {
			return &c.Users[i]
		}
	}
	return nil
}
