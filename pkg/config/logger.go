package config

import (
	"strings"

	"ongoing/pkg/logger"
)

// ToLoggerConfig converts LoggerConfig to logger.Config.
func (lc *LoggerConfig) ToLoggerConfig() *logger.Config {
	level := logger.LevelInfo
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		level = logger.LevelDebug
	case "warn":
		level = logger.LevelWarn
	case "error":
		level = logger.LevelError
	case "fatal":
		level = logger.LevelFatal
	}

	return &logger.Config{
		Level:       level,
		OutputPath:  ExpandPath(lc.OutputPath),
		MaxSize:     lc.MaxSize,
		MaxBackups:  lc.MaxBackups,
		MaxAge:      lc.MaxAge,
		Compress:    lc.Compress,
		Development: lc.Development,
	}
}
