package overrides

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type LogLevelReconfigurer struct {
	Atomic  zap.AtomicLevel
	Default string
}

// Handler reads the runtime overrides file. The file is optional: a missing file yields an
// empty Config, which resets the log level to the one configured at startup.
type Handler struct {
	logLevelChanger *LogLevelReconfigurer
	path            string
	log             logr.Logger
}

func New(path string, atomicLevel zap.AtomicLevel, log logr.Logger) *Handler {
	return &Handler{
		logLevelChanger: NewLogReconfigurer(atomicLevel),
		path:            path,
		log:             log,
	}
}

func (h *Handler) LoadOverrides() (Config, error) {
	var overrideConfig Config

	config, err := h.readFileOrEmpty()
	if err != nil {
		return overrideConfig, err
	}

	if len(config) == 0 {
		return overrideConfig, nil
	}

	if err := yaml.Unmarshal(config, &overrideConfig); err != nil {
		return overrideConfig, fmt.Errorf("failed to parse overrides file %s: %w", h.path, err)
	}

	h.log.V(1).Info(fmt.Sprintf("Using override Config is: %+v", overrideConfig))

	return overrideConfig, nil
}

// Reload loads the overrides file and applies it.
func (h *Handler) Reload() error {
	config, err := h.LoadOverrides()
	if err != nil {
		return err
	}

	return h.SyncLogLevel(config.Global)
}

func (h *Handler) SyncLogLevel(config GlobalConfig) error {
	if config.LogLevel == "" {
		return h.logLevelChanger.setDefaultLogLevel()
	}

	return h.logLevelChanger.changeLogLevel(config.LogLevel)
}

func NewLogReconfigurer(atomicLevel zap.AtomicLevel) *LogLevelReconfigurer {
	var l LogLevelReconfigurer
	l.Atomic = atomicLevel
	l.Default = l.Atomic.String()

	return &l
}

func (l *LogLevelReconfigurer) setDefaultLogLevel() error {
	return l.changeLogLevel(l.Default)
}

func (l *LogLevelReconfigurer) changeLogLevel(logLevel string) error {
	parsedLevel, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	l.Atomic.SetLevel(parsedLevel)

	return nil
}

func (h *Handler) readFileOrEmpty() ([]byte, error) {
	if h.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.log.V(1).Info(fmt.Sprintf("Could not read %s, looks like it's not present", h.path))
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read overrides file %s: %w", h.path, err)
	}

	return data, nil
}
