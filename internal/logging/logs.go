package logging

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.Nop()
	current.Store(&l)
}

func setLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Logger returns the configured logger for structured call sites.
func Logger() *zerolog.Logger {
	return current.Load()
}

func Tracef(format string, args ...any) { Logger().Trace().Msgf(format, args...) }
func Debugf(format string, args ...any) { Logger().Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { Logger().Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { Logger().Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { Logger().Error().Msgf(format, args...) }

// Logf writes an unleveled line; used by tests to narrate shapes.
func Logf(format string, args ...any) { Logger().Log().Msgf(format, args...) }

// Writer returns an io.Writer that emits one log event per written line.
// Partial lines are buffered until a newline arrives.
func Writer(level zerolog.Level, prefix string) io.Writer {
	return &lineWriter{level: level, prefix: prefix}
}

type lineWriter struct {
	mu     sync.Mutex
	level  zerolog.Level
	prefix string
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Reset()
			w.buf.Write(line)
			return len(p), nil
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		Logger().WithLevel(w.level).Str("src", w.prefix).Msg(string(line))
	}
}
