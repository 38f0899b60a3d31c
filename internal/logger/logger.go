package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging facade used across the agent. Key-value pairs
// follow the message.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
}

type Options struct {
	Level   string
	Writers []string
	File    string
}

type zl struct {
	l zerolog.Logger
}

// New builds a zerolog-backed Logger writing to the configured sinks.
// Unknown levels fall back to info.
func New(opts Options) Logger {
	var sinks []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr})
		case "file":
			file := opts.File
			if file == "" {
				file = "pageguard.log"
			}
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    20,
				MaxBackups: 3,
				MaxAge:     14,
			})
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	base := zerolog.New(zerolog.MultiLevelWriter(sinks...)).Level(lvl).With().Timestamp().Logger()
	return &zl{l: base}
}

func (z *zl) Debug(msg string, kv ...any) { emit(z.l.Debug(), msg, kv) }
func (z *zl) Info(msg string, kv ...any)  { emit(z.l.Info(), msg, kv) }
func (z *zl) Warn(msg string, kv ...any)  { emit(z.l.Warn(), msg, kv) }

func (z *zl) Err(err error, msg string, kv ...any) {
	emit(z.l.Error().Err(err), msg, kv)
}

func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(k, kv[i+1])
	}
	ev.Msg(msg)
}
