// Package logging configures the structured application log. The terminal
// belongs to the UI, so logs go to a rotated file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/taskpilot/internal/model"
)

// ServiceName is attached to every entry.
const ServiceName = "taskpilot"

// Logger is the configured logger plus the file it writes to.
type Logger struct {
	*logrus.Entry
	out io.Closer
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.out == nil {
		return nil
	}
	return l.out.Close()
}

// New builds a JSON logger writing to cfg.File. An empty file discards
// output. LOG_LEVEL overrides cfg.Level.
func New(cfg model.LogConfig) (*Logger, error) {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	base.SetLevel(parseLevel(cfg.Level))

	var closer io.Closer
	if cfg.File == "" {
		base.SetOutput(io.Discard)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		base.SetOutput(rotating)
		closer = rotating
	}

	return &Logger{
		Entry: base.WithField("service", ServiceName),
		out:   closer,
	}, nil
}

func parseLevel(configured string) logrus.Level {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = configured
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		return lvl
	}
	return logrus.InfoLevel
}
