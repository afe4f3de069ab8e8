package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelSilent:
		return "SILENT"
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error", "silent")
// to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info", "":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("logger: unknown level %q", s)
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// ParseFormat maps "text" or "json" to a LogFormat.
func ParseFormat(s string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(s))) {
	case LogFormatText, "":
		return LogFormatText, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	}
	return LogFormatText, fmt.Errorf("logger: unknown format %q", s)
}

// Logger is the interface for leveled, structured logging of queries and
// internal messages.
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	// SetLevelOutput mirrors entries of exactly this level to w, in addition
	// to the main output.
	SetLevelOutput(level LogLevel, w io.Writer)
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var levelColors = map[LogLevel]*color.Color{
	LogLevelError: color.New(color.FgRed, color.Bold),
	LogLevelWarn:  color.New(color.FgYellow),
	LogLevelInfo:  color.New(color.FgGreen),
	LogLevelDebug: color.New(color.FgCyan),
}

// baseLogger contains common logging functionality
type baseLogger struct {
	mu           *sync.Mutex
	level        LogLevel
	format       LogFormat
	writer       io.Writer
	levelWriters map[LogLevel]io.Writer
	fields       map[string]any
}

func (l *baseLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *baseLogger) SetFormat(format LogFormat) {
	l.format = format
}

// SetOutput sets the main output. A nil writer disables it; per-level
// outputs keep working.
func (l *baseLogger) SetOutput(w io.Writer) {
	l.writer = w
}

func (l *baseLogger) SetLevelOutput(level LogLevel, w io.Writer) {
	if w == nil {
		delete(l.levelWriters, level)
		return
	}
	l.levelWriters[level] = w
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	newWriters := make(map[LogLevel]io.Writer, len(l.levelWriters))
	for k, v := range l.levelWriters {
		newWriters[k] = v
	}
	return &baseLogger{
		mu:           l.mu,
		level:        l.level,
		format:       l.format,
		writer:       l.writer,
		levelWriters: newWriters,
		fields:       newFields,
	}
}

// stdLogger is the default implementation of Logger
type stdLogger struct {
	baseLogger
}

// NewStdLogger creates a new standard logger writing text at info level to
// standard output.
func NewStdLogger() Logger {
	return &stdLogger{
		baseLogger: baseLogger{
			mu:           &sync.Mutex{},
			level:        LogLevelInfo,
			format:       LogFormatText,
			writer:       os.Stdout,
			levelWriters: make(map[LogLevel]io.Writer),
			fields:       make(map[string]any),
		},
	}
}

// NewNopLogger returns a logger that drops everything.
func NewNopLogger() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	newLogger := &stdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *stdLogger) Debug(format string, args ...any) {
	l.logAt(LogLevelDebug, format, args...)
}

func (l *stdLogger) Info(format string, args ...any) {
	l.logAt(LogLevelInfo, format, args...)
}

func (l *stdLogger) Warn(format string, args ...any) {
	l.logAt(LogLevelWarn, format, args...)
}

func (l *stdLogger) Error(format string, args ...any) {
	l.logAt(LogLevelError, format, args...)
}

func (l *stdLogger) logAt(level LogLevel, format string, args ...any) {
	if l.level < level {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	var line []byte
	if l.format == LogFormatJSON {
		line = l.jsonLine(level, msg)
	} else {
		line = l.textLine(level, msg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		l.writer.Write(line)
	}
	if w, ok := l.levelWriters[level]; ok && w != l.writer {
		w.Write(line)
	}
}

func (l *stdLogger) jsonLine(level LogLevel, msg string) []byte {
	data := make(map[string]any, len(l.fields)+3)
	for k, v := range l.fields {
		data[k] = v
	}
	data["time"] = time.Now().Format(time.RFC3339)
	data["level"] = level.String()
	data["msg"] = msg

	b, err := json.Marshal(data)
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"time":  data["time"],
			"level": data["level"],
			"msg":   msg,
			"error": err.Error(),
		})
	}
	return append(b, '\n')
}

func (l *stdLogger) textLine(level LogLevel, msg string) []byte {
	tag := level.String()
	if c, ok := levelColors[level]; ok {
		tag = c.Sprint(tag)
	}

	fieldStr := ""
	if len(l.fields) > 0 {
		fieldStr = fmt.Sprintf(" fields: %v", l.fields)
	}
	return []byte(fmt.Sprintf("[SIMPLEMYSQL] %s %s: %s%s\n", time.Now().Format("2006-01-02 15:04:05"), tag, msg, fieldStr))
}
