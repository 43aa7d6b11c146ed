//go:build unit

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugolhafner/go-groupworker/config"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
group_id: g1
client_id: c1
topics:
  - orders
  - payments
brokers:
  - kafka-1:9092
auto_offset_reset: smallest
consume_timeout_ms: 5000
enable_auto_commit: 0
auto_commit_interval_ms: 250
request_required_acks: 1
transport: sarama
sasl:
  mechanism: scram-sha-256
  username: worker
log:
  output: file
  base_path: /tmp/logs
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, "g1", cfg.GroupID)
	require.Equal(t, "c1", cfg.ClientID)
	require.Equal(t, []string{"orders", "payments"}, cfg.Topics)
	require.Equal(t, []string{"kafka-1:9092"}, cfg.Brokers)
	require.Equal(t, config.OffsetResetEarliest, cfg.AutoOffsetReset)
	require.Equal(t, 5*time.Second, cfg.ConsumeTimeout)
	require.False(t, cfg.EnableAutoCommit)
	require.Equal(t, 250*time.Millisecond, cfg.AutoCommitInterval)
	require.Equal(t, 1, cfg.RequestRequiredAcks)
	require.Equal(t, config.TransportSarama, cfg.Transport)
	require.Equal(t, config.SASLMechanismScramSHA256, cfg.SASL.Mechanism)
	require.Equal(t, "worker", cfg.SASL.Username)
	require.Equal(t, "file", cfg.Log.Output)
	require.Equal(t, "/tmp/logs", cfg.Log.BasePath)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "group_id: g1\ntopics: [t]\n"))
	require.NoError(t, err)

	require.NotEmpty(t, cfg.ClientID)
	require.Equal(t, 120*time.Second, cfg.ConsumeTimeout)
	require.True(t, cfg.EnableAutoCommit)
	require.Equal(t, -1, cfg.RequestRequiredAcks)
	require.Equal(t, config.TransportFranz, cfg.Transport)
	require.Equal(t, "json", cfg.PayloadFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GROUPWORKER_GROUP_ID", "from-env")
	t.Setenv("GROUPWORKER_TOPICS", "a,b")
	t.Setenv("GROUPWORKER_SASL_PASSWORD", "s3cret")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.GroupID)
	require.Equal(t, []string{"a", "b"}, cfg.Topics)
	require.Equal(t, "s3cret", cfg.SASL.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BadOffsetReset(t *testing.T) {
	_, err := config.Load(writeConfig(t, "group_id: g1\nauto_offset_reset: sideways\n"))

	_, ok := config.AsConfigurationError(err)
	require.True(t, ok)
}
