// Package config assembles the mock collector configuration from defaults, an optional YAML file,
// MOCK_COLLECTOR_* environment variables and command line flags, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rdara/mock-collector/internal/collector"
	"github.com/rdara/mock-collector/internal/errortypes"
	"github.com/rdara/mock-collector/internal/keystore"
	"github.com/rdara/mock-collector/internal/logger"
)

const EnvPrefix = "MOCK_COLLECTOR_"

const defaultShutdownTimeout = 10 * time.Second

type Config struct {
	Host      string `yaml:"host" env:"HOST"`
	HTTPPort  uint16 `yaml:"httpPort" env:"HTTP_PORT"`
	HTTPSPort uint16 `yaml:"httpsPort" env:"HTTPS_PORT"`

	// Keystore is a PKCS#12 file. Empty selects the bundle embedded in the binary.
	Keystore         string `yaml:"keystore" env:"KEYSTORE"`
	KeystorePassword string `yaml:"keystorePassword" env:"KEYSTORE_PASSWORD"`
	AgentRunID       string `yaml:"agentRunID" env:"AGENT_RUN_ID"`

	LogLevel  string            `yaml:"logLevel" env:"LOG_LEVEL"`
	LogFormat string            `yaml:"logFormat" env:"LOG_FORMAT"`
	LogFields map[string]string `yaml:"logFields" env:"LOG_FIELDS"`

	// MetricsAddr enables the Prometheus endpoint when set.
	MetricsAddr string `yaml:"metricsAddr" env:"METRICS_ADDR"`
	// Overrides is a YAML file re-read on SIGHUP.
	Overrides       string        `yaml:"overrides" env:"OVERRIDES"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

func Default() Config {
	return Config{
		Host:             "localhost",
		HTTPPort:         collector.DefaultHTTPPort,
		HTTPSPort:        collector.DefaultHTTPSPort,
		KeystorePassword: keystore.DefaultPassword,
		AgentRunID:       collector.DefaultAgentRunID,
		LogLevel:         zapcore.InfoLevel.String(),
		LogFormat:        logger.FormatJSON,
		ShutdownTimeout:  defaultShutdownTimeout,
	}
}

// Load applies the YAML file at path (if any) and then the environment on top of the defaults.
// A nil environment means the process environment.
func Load(path string, environment map[string]string) (Config, error) {
	cfg := Default()

	if err := cfg.readFile(path); err != nil {
		return cfg, &errortypes.ConfigurationError{Err: err}
	}

	if err := ParseEnv(&cfg, environment); err != nil {
		return cfg, &errortypes.ConfigurationError{Err: err}
	}

	return cfg, nil
}

func ParseEnv(target *Config, environment map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{
		Prefix:      EnvPrefix,
		Environment: environment,
	}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

func (c *Config) readFile(path string) error {
	if path == "" {
		return nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", expanded, err)
	}

	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error

	if c.HTTPPort != 0 && c.HTTPPort == c.HTTPSPort {
		errs = multierr.Append(errs, fmt.Errorf("http and https port must differ, both are %d", c.HTTPPort))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("invalid log level: %w", err))
	}

	switch c.LogFormat {
	case logger.FormatJSON, logger.FormatConsole:
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}

	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}

	if errs != nil {
		return &errortypes.ConfigurationError{Err: errs}
	}

	return nil
}

// KeystorePath returns Keystore with a leading ~ expanded.
func (c Config) KeystorePath() (string, error) {
	if c.Keystore == "" {
		return "", nil
	}

	path, err := homedir.Expand(c.Keystore)
	if err != nil {
		return "", &errortypes.ConfigurationError{Err: fmt.Errorf("expand keystore path %q: %w", c.Keystore, err)}
	}

	return path, nil
}
