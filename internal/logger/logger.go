package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to stderr with the given format and a level that can be changed at runtime.
func New(format string, atomicLevel zap.AtomicLevel) (*zap.Logger, error) {
	return newWithWriter(format, atomicLevel, os.Stderr)
}

func newWithWriter(format string, atomicLevel zap.AtomicLevel, w io.Writer, additionalCores ...zapcore.Core) (*zap.Logger, error) {
	encoder, err := getZapEncoder(format)
	if err != nil {
		return nil, err
	}

	defaultCore := zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		atomicLevel,
	)
	cores := append(additionalCores, defaultCore)

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// NewLogr bridges a zap logger to logr, which is what the collector packages log through.
func NewLogr(zapLogger *zap.Logger) logr.Logger {
	return zapr.NewLogger(zapLogger)
}

// NewStdLog returns a standard library logger writing at error level, so that errors reported by
// net/http (TLS handshake failures and the like) end up in the structured log.
func NewStdLog(zapLogger *zap.Logger) *log.Logger {
	stdLog, err := zap.NewStdLogAt(zapLogger, zapcore.ErrorLevel)
	if err != nil {
		return zap.NewStdLog(zapLogger)
	}

	return stdLog
}

func getZapEncoder(format string) (zapcore.Encoder, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"

	switch format {
	case FormatJSON, "":
		return zapcore.NewJSONEncoder(encoderConfig), nil
	case FormatConsole:
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}
