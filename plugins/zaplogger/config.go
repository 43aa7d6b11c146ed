package zaplogger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hugolhafner/go-groupworker/config"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	clock clockwork.Clock
	path  PathFunc
}

type Option func(*options)

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithPathFunc replaces the default level routing of the file output.
func WithPathFunc(p PathFunc) Option {
	return func(o *options) {
		o.path = p
	}
}

// NewFromConfig builds a logger from a LogConfig. The returned func flushes
// and closes any files the logger opened.
func NewFromConfig(cfg config.LogConfig, opts ...Option) (logger.Logger, func() error, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, nil, config.NewConfigurationError("log.level", err.Error())
		}
	}

	enc, err := encoder(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	var (
		core    zapcore.Core
		closeFn = func() error { return nil }
	)

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		core = zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	case "stderr":
		core = zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	case "file":
		path := o.path
		if path == nil {
			if cfg.BasePath == "" || cfg.DataLogFile == "" {
				return nil, nil, config.NewConfigurationError("log.base_path", "file output needs base_path and data_log_file")
			}
			path = LevelPaths(cfg.BasePath, cfg.DataLogFile)
		}
		sink := NewFileSink(enc, level, path, o.clock)
		core = sink
		closeFn = sink.Close
	default:
		return nil, nil, config.NewConfigurationError("log.output", fmt.Sprintf("unknown output %q", cfg.Output))
	}

	zl := zap.New(core, zap.WithClock(zapClock{o.clock}))
	return New(zl), func() error {
		_ = zl.Sync()
		return closeFn()
	}, nil
}

func encoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), nil
	default:
		return nil, config.NewConfigurationError("log.format", fmt.Sprintf("unknown format %q", format))
	}
}

// zapClock stamps entries with the injected clock. Tickers stay on real time;
// zap only uses them for buffered writers.
type zapClock struct {
	c clockwork.Clock
}

func (z zapClock) Now() time.Time {
	return z.c.Now()
}

func (z zapClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}
