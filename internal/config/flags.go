package config

import (
	"io"

	"github.com/spf13/pflag"

	"github.com/rdara/mock-collector/internal/cliflags"
	"github.com/rdara/mock-collector/internal/errortypes"
)

const configFlag = "config"

// Parse resolves the full configuration for the given command line. The returned error is
// pflag.ErrHelp when help was requested; usage has then been written to output.
func Parse(name string, args []string, environment map[string]string, output io.Writer) (Config, error) {
	path, err := configPath(name, args)
	if err != nil {
		return Config{}, &errortypes.ConfigurationError{Err: err}
	}

	cfg, err := Load(path, environment)
	if err != nil {
		return cfg, err
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.String(configFlag, path, "YAML configuration file")
	cfg.bindFlags(fs)

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return cfg, err
		}

		return cfg, &errortypes.ConfigurationError{Err: err}
	}

	return cfg, cfg.Validate()
}

// configPath picks --config out of args before the other flags are bound, so that flags can
// take the file and environment values as their defaults.
func configPath(name string, args []string) (string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.ParseErrorsWhitelist.UnknownFlags = true

	path := fs.String(configFlag, "", "")

	if err := fs.Parse(args); err != nil && err != pflag.ErrHelp {
		return "", err
	}

	return *path, nil
}

func (c *Config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "interface both listeners bind to")
	fs.Uint16Var(&c.HTTPPort, "http-port", c.HTTPPort, "plaintext HTTP port, 0 picks a free port")
	fs.Uint16Var(&c.HTTPSPort, "https-port", c.HTTPSPort, "HTTPS port, 0 picks a free port")
	fs.StringVar(&c.Keystore, "keystore", c.Keystore, "PKCS#12 keystore, empty uses the embedded one")
	fs.StringVar(&c.KeystorePassword, "keystore-password", c.KeystorePassword, "keystore password")
	fs.StringVar(&c.AgentRunID, "agent-run-id", c.AgentRunID, "agent run id returned by connect")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "json or console")
	fs.Var((*cliflags.Map)(&c.LogFields), "log-field", "static key=value added to every log line, repeatable")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "address of the Prometheus endpoint, empty disables it")
	fs.StringVar(&c.Overrides, "overrides", c.Overrides, "runtime overrides file re-read on SIGHUP")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "grace period for in-flight requests on stop")
}
