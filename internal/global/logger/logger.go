// Package logger holds the process-wide logger used by the command line
package logger

import "gitlab.com/baseline-2025.net/internal/adapter/logging"

var Logger = logging.NewZapLogger()

// UseDevelopment switches to the console debug logger
func UseDevelopment() {
	Logger = logging.NewDevelopmentLogger()
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}
