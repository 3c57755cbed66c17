package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/illarion/cfgvault/pkg/crypto"
	"github.com/illarion/cfgvault/pkg/settings"
	"github.com/illarion/cfgvault/pkg/storage"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CFGVAULT"

// Key derivation names accepted by the kdf setting.
const (
	KDFLegacy = "legacy"
	KDFPBKDF2 = "pbkdf2"
	KDFArgon2 = "argon2"
)

// Config holds CLI configuration.
type Config struct {
	File        string        `yaml:"file" envconfig:"FILE"`
	Backend     string        `yaml:"backend" envconfig:"BACKEND"`
	Password    string        `yaml:"password" envconfig:"PASSWORD"`
	WaitTimeout time.Duration `yaml:"wait_timeout" envconfig:"WAIT_TIMEOUT"`
	MaxFileSize int64         `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
	KDF         string        `yaml:"kdf" envconfig:"KDF"`
	KDFSalt     string        `yaml:"kdf_salt" envconfig:"KDF_SALT"` // hex
	LogLevel    string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	Keyring     bool          `yaml:"keyring" envconfig:"KEYRING"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		File:        "settings.xml",
		Backend:     string(storage.KindFile),
		WaitTimeout: settings.DefaultWaitTimeout,
		MaxFileSize: crypto.DefaultMaxSize,
		KDF:         KDFLegacy,
		LogLevel:    "warn",
		Keyring:     true,
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, which override defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.File == "" {
		return errors.New("CFGVAULT_FILE is required")
	}
	if _, err := storage.ParseKind(c.Backend); err != nil {
		return fmt.Errorf("CFGVAULT_BACKEND: %w", err)
	}
	if c.WaitTimeout <= 0 {
		return errors.New("CFGVAULT_WAIT_TIMEOUT must be positive")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("CFGVAULT_MAX_FILE_SIZE must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("CFGVAULT_LOG_LEVEL: %w", err)
	}
	if _, err := c.Deriver(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}

// Deriver returns the key deriver selected by KDF.
func (c *Config) Deriver() (crypto.KeyDeriver, error) {
	switch c.KDF {
	case "", KDFLegacy:
		return crypto.LegacyDeriver{}, nil
	case KDFPBKDF2, KDFArgon2:
	default:
		return nil, fmt.Errorf("CFGVAULT_KDF: unknown key derivation %q", c.KDF)
	}

	if c.KDFSalt == "" {
		return nil, fmt.Errorf("CFGVAULT_KDF_SALT is required for %s", c.KDF)
	}
	salt, err := hex.DecodeString(c.KDFSalt)
	if err != nil {
		return nil, fmt.Errorf("CFGVAULT_KDF_SALT: %w", err)
	}

	if c.KDF == KDFPBKDF2 {
		return crypto.PBKDF2Deriver{Salt: salt}, nil
	}
	return crypto.Argon2Deriver{Salt: salt}, nil
}
