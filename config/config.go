package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/gorilla/securecookie"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"

	SchemeBcrypt    = "bcrypt"
	SchemePlaintext = "plaintext"

	placeholderKey = "CHANGE_ME_IN_PRODUCTION"
)

type Config struct {
	AppName        string   `json:"app_name"`
	ListenIP       string   `json:"listen_ip"`
	ListenPort     int      `json:"listen_port"`
	SessionKey     string   `json:"session_key"`
	SessionMaxAge  int      `json:"session_max_age"` // seconds
	SecureCookies  bool     `json:"secure_cookies"`
	TrustedOrigins []string `json:"trusted_origins"`

	DBDriver    string `json:"db_driver"`
	DBDSN       string `json:"db_dsn"`
	AutoMigrate bool   `json:"auto_migrate"`

	PasswordScheme string `json:"password_scheme"`
	BcryptCost     int    `json:"bcrypt_cost"`

	// InviteCode pins the registration invite code. Empty means a fresh
	// random code is generated on every start.
	InviteCode      string   `json:"invite_code"`
	RegisterCaptcha bool     `json:"register_captcha"`
	CORSOrigins     []string `json:"cors_origins"`

	LogLevel string `json:"log_level"`

	// GeneratedSessionKey is set when no key was configured and a random one
	// had to be created.
	GeneratedSessionKey bool `json:"-"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		AppName:        "User Admin",
		ListenIP:       "127.0.0.1",
		ListenPort:     8080,
		SessionMaxAge:  86400 * 7,
		DBDriver:       DriverSQLite,
		DBDSN:          filepath.Join(xdg.DataHome, "useradmin", "userinfo.db"),
		AutoMigrate:    true,
		PasswordScheme: SchemeBcrypt,
		BcryptCost:     12,
		LogLevel:       "info",
	}
}

// Addr is the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenIP, c.ListenPort)
}

// LoadConfig reads the JSON file at path on top of the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file entirely.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.SessionKey == "" || cfg.SessionKey == placeholderKey {
		key := securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("failed to generate session key")
		}
		cfg.SessionKey = hex.EncodeToString(key)
		cfg.GeneratedSessionKey = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("USERINFO_SESSION_KEY"); v != "" {
		c.SessionKey = v
	}
	if v := os.Getenv("USERINFO_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("USERINFO_DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv("USERINFO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("USERINFO_INVITE_CODE"); v != "" {
		c.InviteCode = v
	}
	if v := os.Getenv("USERINFO_LISTEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid USERINFO_LISTEN_PORT %q: %w", v, err)
		}
		c.ListenPort = port
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("db_dsn must be set")
	}
	switch c.PasswordScheme {
	case SchemeBcrypt, SchemePlaintext:
	default:
		return fmt.Errorf("unsupported password_scheme %q", c.PasswordScheme)
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	if c.SessionMaxAge < 0 {
		return fmt.Errorf("session_max_age must not be negative")
	}
	return nil
}
