// Package logging writes component-prefixed key/value log lines to the
// standard logger, filtered by a process-wide level.
package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level orders log lines by importance.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// EnvVar names the environment variable that overrides the configured level.
const EnvVar = "PKGGUARD_LOG"

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelError: "error",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int32(l))
}

// ParseLevel maps "debug", "info" or "error" to a Level. An empty name is
// LevelInfo.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return LevelInfo, nil
	}
	for l, s := range levelNames {
		if s == name {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

var threshold atomic.Int32

func init() {
	threshold.Store(int32(LevelInfo))
}

// SetLevel drops every line below l.
func SetLevel(l Level) {
	threshold.Store(int32(l))
}

// CurrentLevel reports the level set by SetLevel.
func CurrentLevel() Level {
	return Level(threshold.Load())
}

// Enabled reports whether a line at l would be written.
func Enabled(l Level) bool {
	return l >= CurrentLevel()
}

// Debug logs per-run detail that is only useful when tracing a problem.
func Debug(component, msg string, kv ...any) {
	write(LevelDebug, component, msg, kv)
}

// Info logs a message with key/value fields using a consistent prefix.
func Info(component, msg string, kv ...any) {
	write(LevelInfo, component, msg, kv)
}

// Error logs an error message with key/value fields using a consistent prefix.
func Error(component, msg string, kv ...any) {
	write(LevelError, component, msg, kv)
}

func write(l Level, component, msg string, kv []any) {
	if !Enabled(l) {
		return
	}
	var tag string
	switch l {
	case LevelDebug:
		tag = "DEBUG "
	case LevelError:
		tag = "ERROR "
	}
	log.Printf("[%s] %s%s%s", strings.ToUpper(component), tag, msg, formatFields(kv...))
}

func formatFields(kv ...any) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(toString(kv[i])))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

// toString flattens a value onto a single line so one event is one log line.
func toString(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
	if strings.ContainsRune(s, ' ') || s == "" {
		return fmt.Sprintf("%q", s)
	}
	return s
}
