package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level, defaulting to LevelInfo.
func ParseLevel(name string) Level {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return LevelWarn
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i)
		}
	}
	return LevelInfo
}

// LogEntry is one JSON line written by a Logger.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// sink is shared by a logger and every child derived from it, so level and
// output changes on the root apply to component loggers as well.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	now   func() time.Time
}

func (s *sink) enabled(level Level) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return level >= s.level
}

func (s *sink) write(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp == "" {
		entry.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = io.WriteString(s.out, entry.Timestamp+" "+entry.Level+" "+entry.Message+"\n")
		return
	}
	_, _ = s.out.Write(append(data, '\n'))
}

// Logger writes structured JSON lines. Fields attached with WithField are
// immutable per logger; derived loggers copy them.
type Logger struct {
	sink   *sink
	fields map[string]interface{}
}

// New returns an Info-level logger writing to stdout.
func New() *Logger {
	return &Logger{sink: &sink{out: os.Stdout, level: LevelInfo, now: time.Now}}
}

// SetOutput redirects the logger and all loggers derived from it.
func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.sink.mu.Lock()
	l.sink.out = w
	l.sink.mu.Unlock()
	return l
}

// SetLevel sets the minimum level for the logger and its children.
func (l *Logger) SetLevel(level Level) *Logger {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
	return l
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l.sink.enabled(level)
}

// WithField returns a child logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{sink: l.sink, fields: merge(l.fields, fields)}
}

// Named returns a logger tagged with the component that owns it.
func (l *Logger) Named(component string) *Logger {
	return l.WithField("component", component)
}

// WithError returns a logger carrying err under the "error" key.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields)
}

func (l *Logger) log(level Level, msg string, extra []map[string]interface{}) {
	if !l.sink.enabled(level) {
		return
	}
	entry := LogEntry{Level: level.String(), Message: msg}
	if fields := merge(l.fields, extra...); len(fields) > 0 {
		entry.Fields = fields
	}
	l.sink.write(entry)
}

func merge(base map[string]interface{}, layers ...map[string]interface{}) map[string]interface{} {
	size := len(base)
	for _, layer := range layers {
		size += len(layer)
	}
	if size == 0 {
		return nil
	}
	out := make(map[string]interface{}, size)
	for k, v := range base {
		out[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Default is the package-level logger used by the helper functions below.
var Default = New()

// SetDefaultLevel sets the level for the default logger.
func SetDefaultLevel(level Level) {
	Default.SetLevel(level)
}

func Debug(msg string, fields ...map[string]interface{}) { Default.Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { Default.Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { Default.Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { Default.Error(msg, fields...) }
