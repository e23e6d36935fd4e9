package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

// New builds a logger writing to stderr. level is a logrus level name,
// format is "text" or "json".
func New(level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Logger: l}
}

// Component returns an entry tagged with the component name.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}

// Global logger instance
var GlobalLogger = New("info", "text")

// Configure replaces the level and format of the global logger.
func Configure(level, format string) *Logger {
	GlobalLogger = New(level, format)
	return GlobalLogger
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debugf(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatalf(format, v...)
}
