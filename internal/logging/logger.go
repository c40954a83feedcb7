// Package logging builds the logrus loggers shared by services and entry points.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Output targets accepted by OutputFor.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// NewLogger creates a logger with the given level and format ("json" or
// "text"). Unknown levels fall back to info.
func NewLogger(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return logger
}

// OutputFor maps a configured output name to a writer. The MCP stdio
// transport owns stdout, so anything but "stdout" goes to stderr.
func OutputFor(name string) io.Writer {
	if strings.EqualFold(name, OutputStdout) {
		return os.Stdout
	}
	return os.Stderr
}
