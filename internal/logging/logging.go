// Package logging configures the process-wide structured logger. Diagnostic
// output always goes to stderr: stdout is reserved for the line-delimited
// JSON IPC channel (spec §4.4), and writing a log line there would corrupt
// the frame stream.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger for stderr output. debug
// raises the level to Debug; otherwise Info.
func Setup(debug bool) *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// TaskLogger returns an entry pre-populated with the task id, so every log
// line emitted during a handler invocation carries it without the caller
// repeating WithField everywhere.
func TaskLogger(taskID string) *logrus.Entry {
	return logrus.WithField("sandboxTaskId", taskID)
}
