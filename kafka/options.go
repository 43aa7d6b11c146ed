package kafka

import (
	"fmt"
	"time"

	"github.com/hugolhafner/go-groupworker/config"
	"github.com/hugolhafner/go-groupworker/logger"
)

// ClientConfig is shared by the franz-go and sarama transports.
type ClientConfig struct {
	BootstrapServers   []string
	GroupID            string
	ClientID           string
	SessionTimeout     time.Duration
	HeartbeatInterval  time.Duration
	AutoCommit         bool
	AutoCommitInterval time.Duration
	OffsetReset        config.OffsetReset
	PartitionEOF       bool
	MaxPollRecords     int

	SASL config.SASLConfig
	TLS  config.TLSConfig

	Logger logger.Logger
}

func defaultConfig() ClientConfig {
	return ClientConfig{
		BootstrapServers:   []string{"localhost:9092"},
		GroupID:            "default-group",
		SessionTimeout:     45 * time.Second,
		HeartbeatInterval:  3 * time.Second,
		AutoCommit:         true,
		AutoCommitInterval: 100 * time.Millisecond,
		OffsetReset:        config.OffsetResetEarliest,
		MaxPollRecords:     100,
		Logger:             logger.NewNoopLogger(),
	}
}

type Option func(*ClientConfig)

func WithBootstrapServers(servers []string) Option {
	return func(cfg *ClientConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithGroupID(id string) Option {
	return func(cfg *ClientConfig) {
		cfg.GroupID = id
	}
}

func WithClientID(id string) Option {
	return func(cfg *ClientConfig) {
		cfg.ClientID = id
	}
}

func WithSessionTimeout(session, heartbeat time.Duration) Option {
	return func(cfg *ClientConfig) {
		cfg.SessionTimeout = session
		cfg.HeartbeatInterval = heartbeat
	}
}

// WithAutoCommit enables background commits of delivered records. The
// interval only applies when enabled.
func WithAutoCommit(enabled bool, interval time.Duration) Option {
	return func(cfg *ClientConfig) {
		cfg.AutoCommit = enabled
		if interval > 0 {
			cfg.AutoCommitInterval = interval
		}
	}
}

func WithOffsetReset(r config.OffsetReset) Option {
	return func(cfg *ClientConfig) {
		cfg.OffsetReset = r
	}
}

// WithPartitionEOF makes Poll report ErrPartitionEOF when a partition is
// consumed up to its high watermark.
func WithPartitionEOF(enabled bool) Option {
	return func(cfg *ClientConfig) {
		cfg.PartitionEOF = enabled
	}
}

func WithMaxPollRecords(n int) Option {
	return func(cfg *ClientConfig) {
		if n > 0 {
			cfg.MaxPollRecords = n
		}
	}
}

func WithSASL(s config.SASLConfig) Option {
	return func(cfg *ClientConfig) {
		cfg.SASL = s
	}
}

func WithTLS(t config.TLSConfig) Option {
	return func(cfg *ClientConfig) {
		cfg.TLS = t
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cfg *ClientConfig) {
		cfg.Logger = l
	}
}

// OptionsFromConfig translates a worker configuration into transport
// options. Brokers are resolved here, so a BrokerSource runs once per client.
func OptionsFromConfig(cfg config.Config) ([]Option, error) {
	brokers, err := cfg.ResolveBrokers()
	if err != nil {
		return nil, err
	}

	return []Option{
		WithBootstrapServers(brokers),
		WithGroupID(cfg.GroupID),
		WithClientID(cfg.ClientID),
		WithSessionTimeout(cfg.SessionTimeout, cfg.HeartbeatInterval),
		WithAutoCommit(cfg.EnableAutoCommit, cfg.AutoCommitInterval),
		WithOffsetReset(cfg.AutoOffsetReset),
		WithPartitionEOF(cfg.EnablePartitionEOF),
		WithSASL(cfg.SASL),
		WithTLS(cfg.TLS),
	}, nil
}

// NewClient builds the transport selected by cfg.Transport.
func NewClient(cfg config.Config, l logger.Logger) (Client, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithLogger(l))

	switch cfg.Transport {
	case config.TransportSarama:
		return NewSaramaClient(opts...)
	case config.TransportFranz, "":
		return NewKgoClient(opts...)
	default:
		return nil, config.NewConfigurationError("transport", fmt.Sprintf("unknown transport %q", cfg.Transport))
	}
}
