package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"

	unknownFormatErrorFormat = "unknown log format %q"
	unknownLevelErrorFormat  = "unknown log level %q: %w"
)

// New builds a zap logger writing to stderr. Empty level and format mean info and console.
func New(level string, format string) (*zap.Logger, error) {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if trimmedLevel := strings.TrimSpace(level); trimmedLevel != "" {
		parsedLevel, parseErr := zapcore.ParseLevel(trimmedLevel)
		if parseErr != nil {
			return nil, fmt.Errorf(unknownLevelErrorFormat, trimmedLevel, parseErr)
		}
		atomicLevel.SetLevel(parsedLevel)
	}

	var loggerConfig zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		loggerConfig = zap.NewDevelopmentConfig()
		loggerConfig.Development = false
	case FormatJSON:
		loggerConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf(unknownFormatErrorFormat, format)
	}
	loggerConfig.Level = atomicLevel
	loggerConfig.OutputPaths = []string{"stderr"}
	loggerConfig.ErrorOutputPaths = []string{"stderr"}
	return loggerConfig.Build()
}
