package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		if level == "DEBUG" {
			logger.SetLevel(logrus.DebugLevel)
		} else if level == "WARN" {
			logger.SetLevel(logrus.WarnLevel)
		} else if level == "INFO" {
			logger.SetLevel(logrus.InfoLevel)
		} else if level == "ERROR" {
			logger.SetLevel(logrus.ErrorLevel)
		}
	} else {
		// Silent by default, raised with repeated -v flags.
		logger.SetLevel(logrus.PanicLevel)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// SetVerbosity maps a -v flag count onto a log level: one -v shows errors,
// -vv warnings, -vvv informational messages and -vvvv everything.
func SetVerbosity(count int) {
	switch {
	case count <= 0:
		logger.SetLevel(logrus.PanicLevel)
	case count == 1:
		logger.SetLevel(logrus.ErrorLevel)
	case count == 2:
		logger.SetLevel(logrus.WarnLevel)
	case count == 3:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.DebugLevel)
	}
}
