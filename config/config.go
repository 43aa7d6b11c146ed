package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type OffsetReset string

const (
	OffsetResetNone     OffsetReset = "none"
	OffsetResetLatest   OffsetReset = "latest"
	OffsetResetEarliest OffsetReset = "earliest"
)

// ParseOffsetReset accepts the librdkafka aliases smallest and largest.
func ParseOffsetReset(s string) (OffsetReset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return OffsetResetNone, nil
	case "latest", "largest", "end":
		return OffsetResetLatest, nil
	case "earliest", "smallest", "beginning", "":
		return OffsetResetEarliest, nil
	default:
		return "", NewConfigurationError("auto_offset_reset", fmt.Sprintf("unknown policy %q", s))
	}
}

type Transport string

const (
	TransportFranz  Transport = "franz"
	TransportSarama Transport = "sarama"
)

// BrokerSource resolves the broker list lazily, at client construction.
type BrokerSource func() ([]string, error)

// Config is built once before the worker starts and never mutated afterwards.
type Config struct {
	GroupID  string
	ClientID string
	Topics   []string

	Brokers      []string
	BrokerSource BrokerSource

	AutoOffsetReset    OffsetReset
	ConsumeTimeout     time.Duration
	EnableAutoCommit   bool
	AutoCommitInterval time.Duration
	// RequestRequiredAcks is validated and carried for completeness; a
	// consumer never produces, so nothing enforces it.
	RequestRequiredAcks int
	EnablePartitionEOF  bool

	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration

	CommitRetries      int
	CommitRetryBackoff time.Duration

	Transport     Transport
	PayloadFormat string

	SASL SASLConfig
	TLS  TLSConfig
	Log  LogConfig
}

type Option func(*Config)

func WithGroupID(id string) Option {
	return func(c *Config) {
		c.GroupID = id
	}
}

func WithClientID(id string) Option {
	return func(c *Config) {
		c.ClientID = id
	}
}

func WithTopics(topics ...string) Option {
	return func(c *Config) {
		c.Topics = topics
	}
}

func WithBrokers(brokers ...string) Option {
	return func(c *Config) {
		c.Brokers = brokers
	}
}

func WithBrokerSource(src BrokerSource) Option {
	return func(c *Config) {
		c.BrokerSource = src
	}
}

func WithAutoOffsetReset(r OffsetReset) Option {
	return func(c *Config) {
		c.AutoOffsetReset = r
	}
}

func WithConsumeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConsumeTimeout = d
	}
}

func WithAutoCommit(enabled bool, interval time.Duration) Option {
	return func(c *Config) {
		c.EnableAutoCommit = enabled
		if interval > 0 {
			c.AutoCommitInterval = interval
		}
	}
}

func WithPartitionEOF(enabled bool) Option {
	return func(c *Config) {
		c.EnablePartitionEOF = enabled
	}
}

func WithCommitRetries(retries int, backoff time.Duration) Option {
	return func(c *Config) {
		c.CommitRetries = retries
		c.CommitRetryBackoff = backoff
	}
}

func WithTransport(t Transport) Option {
	return func(c *Config) {
		c.Transport = t
	}
}

// DefaultClientID is the current process id.
func DefaultClientID() string {
	return strconv.Itoa(os.Getpid())
}

func Default() Config {
	return Config{
		ClientID:            DefaultClientID(),
		Brokers:             []string{"localhost:9092"},
		AutoOffsetReset:     OffsetResetEarliest,
		ConsumeTimeout:      120 * time.Second,
		EnableAutoCommit:    true,
		AutoCommitInterval:  100 * time.Millisecond,
		RequestRequiredAcks: -1,
		SessionTimeout:      45 * time.Second,
		HeartbeatInterval:   3 * time.Second,
		CommitRetries:       3,
		CommitRetryBackoff:  500 * time.Millisecond,
		Transport:           TransportFranz,
		PayloadFormat:       "json",
		Log:                 defaultLogConfig(),
	}
}

func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate reports the first problem as a *ConfigurationError. It never
// touches the network.
func (c Config) Validate() error {
	if c.GroupID == "" {
		return NewConfigurationError("group_id", "consumer group id is empty")
	}
	if c.ClientID == "" {
		return NewConfigurationError("client_id", "client id is empty")
	}
	if len(c.Topics) == 0 {
		return NewConfigurationError("topics", "no topics configured")
	}
	for _, t := range c.Topics {
		if strings.TrimSpace(t) == "" {
			return NewConfigurationError("topics", "topic name is empty")
		}
	}
	reset, err := ParseOffsetReset(string(c.AutoOffsetReset))
	if err != nil {
		return err
	}
	if c.ConsumeTimeout <= 0 {
		return NewConfigurationError("consume_timeout_ms", "must be positive")
	}
	switch c.RequestRequiredAcks {
	case -1, 0, 1:
	default:
		return NewConfigurationError("request_required_acks", fmt.Sprintf("must be -1, 0 or 1, got %d", c.RequestRequiredAcks))
	}
	if c.EnableAutoCommit && c.AutoCommitInterval <= 0 {
		return NewConfigurationError("auto_commit_interval_ms", "must be positive when auto commit is enabled")
	}
	if c.CommitRetries < 0 {
		return NewConfigurationError("commit_retries", "must not be negative")
	}
	switch c.Transport {
	case TransportFranz, TransportSarama:
	default:
		return NewConfigurationError("transport", fmt.Sprintf("unknown transport %q", c.Transport))
	}
	// sarama always falls back to an initial offset; it cannot refuse to start.
	if c.Transport == TransportSarama && reset == OffsetResetNone {
		return NewConfigurationError("auto_offset_reset", "none is not supported by the sarama transport")
	}
	return c.SASL.validate()
}

// ResolveBrokers prefers BrokerSource over the static list.
func (c Config) ResolveBrokers() ([]string, error) {
	brokers := c.Brokers
	if c.BrokerSource != nil {
		var err error
		brokers, err = c.BrokerSource()
		if err != nil {
			return nil, fmt.Errorf("resolve brokers: %w", err)
		}
	}

	if len(brokers) == 0 {
		return nil, NewConfigurationError("brokers", "no brokers configured")
	}

	return brokers, nil
}
