package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggerOptions selects where and how log lines are written.
type LoggerOptions struct {
	Level  string
	Format string // "json" or "text"
	Dir    string // optional; when set, logs are also written to a file below Dir
	Output io.Writer
}

// Logger is the process-wide logger. Scans get their own ScanLogger from it.
type Logger struct {
	*logrus.Logger
	file *os.File
}

func NewLogger(serviceName string, opts LoggerOptions) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(opts.Format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	l := &Logger{Logger: base}
	if opts.Dir != "" {
		// Sanitize service name for file system
		sanitized := strings.ReplaceAll(strings.ToLower(serviceName), " ", "_")
		serviceDir := filepath.Join(opts.Dir, sanitized)
		if err := os.MkdirAll(serviceDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logPath := filepath.Join(serviceDir, fmt.Sprintf("%s_%s.log", sanitized, timestamp))
		file, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		l.file = file
		output = io.MultiWriter(output, file)
	}
	base.SetOutput(output)

	if serviceName != "" {
		base.AddHook(serviceHook(serviceName))
	}
	return l, nil
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests
// and by callers that do not care about logs.
func NewDiscardLogger() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{Logger: base}
}

// ForScan returns a logger whose lines carry the scan id.
func (l *Logger) ForScan(scanID string) *ScanLogger {
	return &ScanLogger{entry: l.WithField("scan_id", scanID)}
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ScanLogger writes printf-style lines scoped to one scan.
type ScanLogger struct {
	entry *logrus.Entry
}

// With returns a copy of the logger with an extra field attached.
func (sl *ScanLogger) With(key string, value interface{}) *ScanLogger {
	if sl == nil {
		return nil
	}
	return &ScanLogger{entry: sl.entry.WithField(key, value)}
}

func (sl *ScanLogger) LogInfo(format string, v ...interface{}) {
	sl.log(logrus.InfoLevel, format, v...)
}

func (sl *ScanLogger) LogWarn(format string, v ...interface{}) {
	sl.log(logrus.WarnLevel, format, v...)
}

func (sl *ScanLogger) LogError(format string, v ...interface{}) {
	sl.log(logrus.ErrorLevel, format, v...)
}

func (sl *ScanLogger) LogDebug(format string, v ...interface{}) {
	sl.log(logrus.DebugLevel, format, v...)
}

// A nil ScanLogger is valid and silent.
func (sl *ScanLogger) log(level logrus.Level, format string, v ...interface{}) {
	if sl == nil || sl.entry == nil {
		return
	}
	sl.entry.Logf(level, format, v...)
}

type serviceHook string

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = string(h)
	}
	return nil
}
