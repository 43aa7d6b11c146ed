package mockkafka

import (
	"testing"

	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/stretchr/testify/require"
)

// AssertCommitted verifies that an offset was committed for the topic-partition.
func (c *Client) AssertCommitted(tb testing.TB, tp kafka.TopicPartition) {
	tb.Helper()

	_, ok := c.CommittedOffset(tp)
	require.True(tb, ok, "expected offset to be committed for %s", tp)
}

func (c *Client) AssertNotCommitted(tb testing.TB, tp kafka.TopicPartition) {
	tb.Helper()

	offset, ok := c.CommittedOffset(tp)
	require.False(tb, ok, "expected no commit for %s, got offset %d", tp, offset)
}

// AssertCommittedOffset verifies the committed next-offset for a topic-partition.
func (c *Client) AssertCommittedOffset(tb testing.TB, tp kafka.TopicPartition, expectedOffset int64) {
	tb.Helper()

	offset, ok := c.CommittedOffset(tp)
	if !ok {
		tb.Errorf("expected offset %d to be committed for %s, but no commit found", expectedOffset, tp)
		return
	}

	require.Equal(
		tb, expectedOffset, offset,
		"expected committed offset %d for %s, got %d", expectedOffset, tp, offset,
	)
}

func (c *Client) AssertCommitCount(tb testing.TB, expected int) {
	tb.Helper()

	actual := len(c.Commits())
	require.Equal(tb, expected, actual, "expected %d commits, got %d", expected, actual)
}

// AssertNeverCommittedPast verifies no commit snapshot ever covered offset on tp.
func (c *Client) AssertNeverCommittedPast(tb testing.TB, tp kafka.TopicPartition, offset int64) {
	tb.Helper()

	for i, snap := range c.Commits() {
		if off, ok := snap[tp]; ok && off > offset {
			tb.Errorf("commit %d covered %s up to %d, past offset %d", i, tp, off, offset)
		}
	}
}

func (c *Client) AssertSubscribed(tb testing.TB, topics ...string) {
	tb.Helper()

	require.ElementsMatch(tb, topics, c.Subscriptions(), "unexpected subscriptions")
}

func (c *Client) AssertAssigned(tb testing.TB, partitions ...kafka.TopicPartition) {
	tb.Helper()

	require.ElementsMatch(tb, partitions, c.AssignedPartitions(), "unexpected assignment")
}

// AssertRebalanceDelivered verifies an event with the code reached the callback.
func (c *Client) AssertRebalanceDelivered(tb testing.TB, code kafka.ErrorCode) {
	tb.Helper()

	for _, ev := range c.RebalanceEvents() {
		if ev.Code == code {
			return
		}
	}
	tb.Errorf("expected rebalance event %s to be delivered", code)
}

func (c *Client) AssertClosed(tb testing.TB) {
	tb.Helper()

	require.True(tb, c.IsClosed(), "expected client to be closed")
}

func (c *Client) AssertNotClosed(tb testing.TB) {
	tb.Helper()

	require.False(tb, c.IsClosed(), "expected client to not be closed")
}
