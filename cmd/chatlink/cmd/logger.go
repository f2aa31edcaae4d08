package cmd

import (
	"strings"

	"go.uber.org/zap"
)

// resolveLogLevel picks the effective level: --debug wins, then --log-level,
// then the configured level, then info. --verbose raises info to debug.
func resolveLogLevel(flagLevel, configLevel string, debugFlag, verboseFlag bool) string {
	if debugFlag {
		return "debug"
	}

	level := flagLevel
	if level == "" {
		level = configLevel
	}
	if level == "" {
		level = "info"
	}

	if verboseFlag && level == "info" {
		level = "debug"
	}

	return strings.ToLower(level)
}

func setupLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.Development = GetDebug()
	// stdout carries chat output
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}
