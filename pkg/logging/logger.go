// Package logging builds the structured logger of a run.
//
// Every run logs to its own file, <run-id>-seotests.log, in the log
// directory. When the file cannot be created the logger falls back to
// stderr and the error is returned alongside it so callers can warn.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Logger is the logger of one run.
type Logger struct {
	*logrus.Logger

	runID     string
	file      afero.File
	logPath   string
	closeOnce sync.Once
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Level maps a verbosity (quiet, normal, verbose, debug) to a log level.
func Level(verbosity string) (logrus.Level, error) {
	switch verbosity {
	case "quiet":
		return logrus.WarnLevel, nil
	case "", "normal":
		return logrus.InfoLevel, nil
	case "verbose":
		return logrus.DebugLevel, nil
	case "debug":
		return logrus.TraceLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid verbosity %q", verbosity)
	}
}

// New creates the logger for runID writing to dir/<run-id>-seotests.log.
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
func New(fs afero.Fs, dir, runID, verbosity string) (*Logger, error) {
	level, err := Level(verbosity)
	if err != nil {
		return newLogger(os.Stderr, nil, "", runID, level), err
	}

	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return newFallback(runID, level, fmt.Errorf("failed to create log directory: %w", err))
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-seotests.log", runID))
	file, err := fs.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return newFallback(runID, level, fmt.Errorf("failed to open log file: %w", err))
	}

	return newLogger(file, file, logPath, runID, level), nil
}

func newFallback(runID string, level logrus.Level, err error) (*Logger, error) {
	l := newLogger(os.Stderr, nil, "", runID, level)
	l.WithError(err).Warn("Failed to initialize file logging, falling back to stderr")
	return l, err
}

func newLogger(w io.Writer, file afero.File, logPath, runID string, level logrus.Level) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	return &Logger{
		Logger:  base,
		runID:   runID,
		file:    file,
		logPath: logPath,
	}
}

// Run returns an entry carrying the run ID.
func (l *Logger) Run() *logrus.Entry {
	return l.WithField("run", l.runID)
}

// RunID returns the run identifier.
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, empty in fallback mode.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
