package zerologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to the glog contracts used across the
// module. Trailing args are read as key/value pairs; a dangling key is kept
// under "extra".
type Logger struct {
	zl zerolog.Logger
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Logger)(nil)
)

func New(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// NewConsole builds a logger for the daemon. JSON output is used unless
// pretty is set.
func NewConsole(w io.Writer, level string, pretty bool) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return nil, fmt.Errorf("zerologger: %w", err)
		}
		lvl = parsed
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return New(zerolog.New(w).Level(lvl).With().Timestamp().Logger()), nil
}

func (l *Logger) Trace(msg string, args ...any) { l.emit(l.zl.Trace(), msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.emit(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(l.zl.Error(), msg, args) }

// Fatal logs at fatal level without exiting; process lifetime stays with
// the caller.
func (l *Logger) Fatal(msg string, args ...any) { l.emit(l.zl.WithLevel(zerolog.FatalLevel), msg, args) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Ctx(ctx).Logger()}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// GetLogger returns a child tagged with the component name.
func (l *Logger) GetLogger(name string) glog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &Logger{zl: l.zl.With().Str("logger", name).Logger()}
}

func (l *Logger) emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			event = event.Interface("extra", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch value := args[i+1].(type) {
		case error:
			event = event.AnErr(key, value)
		default:
			event = event.Interface(key, value)
		}
	}
	event.Msg(msg)
}
