package zaplogger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ zapcore.WriteSyncer = (*datedWriter)(nil)

// datedWriter appends to the file named by its PathFunc, reopening whenever
// the name changes (a new day for dated patterns).
type datedWriter struct {
	level zapcore.Level
	path  PathFunc
	clock clockwork.Clock

	mu      sync.Mutex
	current string
	file    *os.File
}

func newDatedWriter(level zapcore.Level, path PathFunc, clock clockwork.Clock) *datedWriter {
	return &datedWriter{level: level, path: path, clock: clock}
}

func (w *datedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateLocked(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *datedWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *datedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := multierr.Append(w.file.Sync(), w.file.Close())
	w.file = nil
	w.current = ""
	return err
}

func (w *datedWriter) rotateLocked() error {
	name := w.path(w.level, w.clock.Now())
	if w.file != nil && name == w.current {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	var closeErr error
	if w.file != nil {
		closeErr = w.file.Close()
	}

	w.file = f
	w.current = name
	return closeErr
}

// routedLevels are the levels that get a core of their own. Anything above
// error shares the error file.
var routedLevels = []zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
}

// FileSink is a tee of one core per level, each writing to its own file.
type FileSink struct {
	zapcore.Core
	writers []*datedWriter
}

func NewFileSink(enc zapcore.Encoder, min zapcore.LevelEnabler, path PathFunc, clock clockwork.Clock) *FileSink {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cores := make([]zapcore.Core, 0, len(routedLevels))
	writers := make([]*datedWriter, 0, len(routedLevels))

	for _, lvl := range routedLevels {
		lvl := lvl
		w := newDatedWriter(lvl, path, clock)
		enabler := zap.LevelEnablerFunc(
			func(l zapcore.Level) bool {
				if !min.Enabled(l) {
					return false
				}
				if lvl == zapcore.ErrorLevel {
					return l >= zapcore.ErrorLevel
				}
				return l == lvl
			},
		)

		cores = append(cores, zapcore.NewCore(enc.Clone(), w, enabler))
		writers = append(writers, w)
	}

	return &FileSink{
		Core:    zapcore.NewTee(cores...),
		writers: writers,
	}
}

// Close syncs and closes every open file.
func (s *FileSink) Close() error {
	var err error
	for _, w := range s.writers {
		err = multierr.Append(err, w.Close())
	}
	return err
}
