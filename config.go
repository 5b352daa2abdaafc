package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/lotus-sign/filsign/pkg/log"
	"github.com/lotus-sign/filsign/pkg/rpc"
)

const (
	configDirPathEnv     = "FILSIGN_CONFIG_DIR"
	defaultConfigDirPath = "."
)

// configFileNames are tried in order inside the config directory.
var configFileNames = []string{"config.yaml", "config.yml", "config.toml"}

// Config represents the overall application configuration
type Config struct {
	Lotus    rpc.Config     `yaml:"lotus" toml:"lotus"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Log      log.Config     `yaml:"log" toml:"log"`

	WalletPassword string `env:"FILSIGN_WALLET_PASSWORD" yaml:"wallet_password" toml:"wallet_password"`
	// LenientAddresses accepts user-typed addresses without verifying the
	// checksum.
	LenientAddresses bool `env:"FILSIGN_LENIENT_ADDRESSES" env-default:"false" yaml:"lenient_addresses" toml:"lenient_addresses"`
	// Confidence is the number of epochs StateWaitMsg waits on top of the
	// inclusion tipset.
	Confidence uint64 `env:"FILSIGN_CONFIDENCE" env-default:"5" yaml:"confidence" toml:"confidence"`

	MetricsPushgateway string `env:"FILSIGN_METRICS_PUSHGATEWAY" yaml:"metrics_pushgateway" toml:"metrics_pushgateway" validate:"omitempty,url"`
}

// LoadConfig reads .env and an optional config file from the config
// directory, then the environment, which overrides both.
func LoadConfig(lg log.Logger) (*Config, error) {
	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	if err := godotenv.Load(configDotEnvPath); err != nil {
		lg.Debug(".env file not found", "path", configDotEnvPath)
	}

	var cfg Config
	if path, ok := findConfigFile(configDirPath); ok {
		lg.Debug("loading config file", "path", path)
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if cfg.Database.URL != "" {
		dbConf, err := ParseConnectionString(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		dbConf.URL = cfg.Database.URL
		cfg.Database = dbConf
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(dir string) (string, bool) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
