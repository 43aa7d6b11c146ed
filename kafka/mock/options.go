package mockkafka

import (
	"time"
)

// Option configures a mock Client.
type Option func(*Client)

// WithoutAutoAssign stops Subscribe from queueing the initial assignment.
// Tests then drive assignments with InjectRebalance.
func WithoutAutoAssign() Option {
	return func(c *Client) {
		c.autoAssign = false
	}
}

// WithPartitionEOF reports ErrPartitionEOF once each time a partition is drained.
func WithPartitionEOF() Option {
	return func(c *Client) {
		c.partitionEOF = true
	}
}

// WithIdleDelay sets how long an empty Poll waits before returning
// ErrTimedOut. Default is 1ms; the poll timeout caps it.
func WithIdleDelay(d time.Duration) Option {
	return func(c *Client) {
		c.idleDelay = d
	}
}

// WithPollError configures an error to be returned by all Poll calls.
func WithPollError(err error) Option {
	return func(c *Client) {
		c.pollErr = func() error { return err }
	}
}

// WithCommitError configures an error to be returned by all Commit calls.
func WithCommitError(err error) Option {
	return func(c *Client) {
		c.commitErr = func(int) error { return err }
	}
}

// WithPingError configures an error to be returned by Ping.
func WithPingError(err error) Option {
	return func(c *Client) {
		c.pingErr = err
	}
}
