// Package zerologger backs the go-logger contracts with zerolog so the
// launcher can emit structured JSON or console logs.
package zerologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

type Options struct {
	Level  zerolog.Level
	Pretty bool
	Output io.Writer
}

// Logger implements glog.Logger and glog.FieldsLogger. Variadic args are read
// as key/value pairs; a trailing key without a value is logged under "extra".
type Logger struct {
	logger zerolog.Logger
}

func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return &Logger{
		logger: zerolog.New(out).Level(opts.Level).With().Timestamp().Logger(),
	}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Trace(msg string, args ...any) { l.emit(l.logger.Trace(), msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.emit(l.logger.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(l.logger.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(l.logger.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(l.logger.Error(), msg, args) }

// Fatal logs at fatal level without exiting the process.
func (l *Logger) Fatal(msg string, args ...any) {
	l.emit(l.logger.WithLevel(zerolog.FatalLevel), msg, args)
}

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &Logger{logger: l.logger.With().Ctx(ctx).Logger()}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With().Fields(fields).Logger()}
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
		key := fmt.Sprint(args[i])
		if err, ok := args[i+1].(error); ok {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}

// Provider hands out named children of a root logger.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	if root == nil {
		root = New(Options{Level: zerolog.InfoLevel})
	}
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if name == "" {
		return p.root
	}
	return &Logger{logger: p.root.logger.With().Str("logger", name).Logger()}
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
