package kafka

import (
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	_ kgo.Logger       = (*kgoLogger)(nil)
	_ sarama.StdLogger = (*saramaLogger)(nil)
)

type kgoLogger struct {
	l logger.Logger
}

func newKgoLogger(l logger.Logger) *kgoLogger {
	return &kgoLogger{l: l}
}

func (kl *kgoLogger) Level() kgo.LogLevel {
	return mapToKgoLevel(kl.l.Level())
}

func (kl *kgoLogger) Log(level kgo.LogLevel, msg string, args ...interface{}) {
	if level == kgo.LogLevelNone {
		return
	}
	kl.l.Log(mapFromKgoLevel(level), msg, args...)
}

func mapToKgoLevel(level logger.LogLevel) kgo.LogLevel {
	switch level {
	case logger.DebugLevel:
		return kgo.LogLevelDebug
	case logger.InfoLevel:
		return kgo.LogLevelInfo
	case logger.WarnLevel:
		return kgo.LogLevelWarn
	case logger.ErrorLevel:
		return kgo.LogLevelError
	default:
		return kgo.LogLevelWarn
	}
}

func mapFromKgoLevel(level kgo.LogLevel) logger.LogLevel {
	switch level {
	case kgo.LogLevelDebug:
		return logger.DebugLevel
	case kgo.LogLevelInfo:
		return logger.InfoLevel
	case kgo.LogLevelWarn:
		return logger.WarnLevel
	case kgo.LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.WarnLevel
	}
}

// saramaLogger routes sarama's package logger to a Logger at debug level.
type saramaLogger struct {
	l logger.Logger
}

// NewSaramaLogger adapts l for assignment to sarama.Logger.
func NewSaramaLogger(l logger.Logger) sarama.StdLogger {
	return &saramaLogger{l: l.With("client", "sarama")}
}

func (s *saramaLogger) Print(v ...interface{}) {
	s.l.Debug(strings.TrimSpace(fmt.Sprint(v...)))
}

func (s *saramaLogger) Printf(format string, v ...interface{}) {
	s.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (s *saramaLogger) Println(v ...interface{}) {
	s.l.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}
