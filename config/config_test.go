//go:build unit

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/hugolhafner/go-groupworker/config"
	"github.com/stretchr/testify/require"
)

func validConfig() config.Config {
	return config.New(
		config.WithGroupID("g1"),
		config.WithClientID("c1"),
		config.WithTopics("t"),
	)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.Equal(t, strconv.Itoa(os.Getpid()), cfg.ClientID)
	require.Equal(t, config.OffsetResetEarliest, cfg.AutoOffsetReset)
	require.Equal(t, 120*time.Second, cfg.ConsumeTimeout)
	require.True(t, cfg.EnableAutoCommit)
	require.Equal(t, -1, cfg.RequestRequiredAcks)
	require.Equal(t, config.TransportFranz, cfg.Transport)
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"missing group id", func(c *config.Config) { c.GroupID = "" }, "group_id"},
		{"missing client id", func(c *config.Config) { c.ClientID = "" }, "client_id"},
		{"no topics", func(c *config.Config) { c.Topics = nil }, "topics"},
		{"blank topic", func(c *config.Config) { c.Topics = []string{" "} }, "topics"},
		{"bad offset reset", func(c *config.Config) { c.AutoOffsetReset = "sideways" }, "auto_offset_reset"},
		{"zero timeout", func(c *config.Config) { c.ConsumeTimeout = 0 }, "consume_timeout_ms"},
		{"bad acks", func(c *config.Config) { c.RequestRequiredAcks = 2 }, "request_required_acks"},
		{
			"none on sarama", func(c *config.Config) {
				c.Transport = config.TransportSarama
				c.AutoOffsetReset = config.OffsetResetNone
			}, "auto_offset_reset",
		},
		{"bad transport", func(c *config.Config) { c.Transport = "carrier-pigeon" }, "transport"},
		{"negative retries", func(c *config.Config) { c.CommitRetries = -1 }, "commit_retries"},
		{"scram without user", func(c *config.Config) { c.SASL.Mechanism = config.SASLMechanismScramSHA512 }, "sasl.username"},
		{"msk without region", func(c *config.Config) { c.SASL.Mechanism = config.SASLMechanismAWSMSKIAM }, "sasl.aws_region"},
		{"unknown sasl", func(c *config.Config) { c.SASL.Mechanism = "GSSAPI" }, "sasl.mechanism"},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				cfg := validConfig()
				tt.mutate(&cfg)

				err := cfg.Validate()
				require.Error(t, err)

				ce, ok := config.AsConfigurationError(err)
				require.True(t, ok)
				require.Equal(t, tt.field, ce.Field)
			},
		)
	}
}

func TestParseOffsetReset_Aliases(t *testing.T) {
	for in, want := range map[string]config.OffsetReset{
		"smallest": config.OffsetResetEarliest,
		"earliest": config.OffsetResetEarliest,
		"":         config.OffsetResetEarliest,
		"largest":  config.OffsetResetLatest,
		"LATEST":   config.OffsetResetLatest,
		"none":     config.OffsetResetNone,
	} {
		got, err := config.ParseOffsetReset(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestResolveBrokers(t *testing.T) {
	cfg := validConfig()
	brokers, err := cfg.ResolveBrokers()
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:9092"}, brokers)

	cfg = config.New(
		config.WithBrokerSource(
			func() ([]string, error) {
				return []string{"b1:9092", "b2:9092"}, nil
			},
		),
	)
	brokers, err = cfg.ResolveBrokers()
	require.NoError(t, err)
	require.Equal(t, []string{"b1:9092", "b2:9092"}, brokers)

	cfg = config.New(
		config.WithBrokerSource(
			func() ([]string, error) {
				return nil, errors.New("discovery down")
			},
		),
	)
	_, err = cfg.ResolveBrokers()
	require.ErrorContains(t, err, "discovery down")

	cfg = config.New(config.WithBrokers())
	_, err = cfg.ResolveBrokers()
	_, ok := config.AsConfigurationError(err)
	require.True(t, ok)
}

func TestLogConfig_WithDefaultPaths(t *testing.T) {
	l := config.LogConfig{}.WithDefaultPaths("g1", "c1")

	require.Equal(t, filepath.Join("runtime", "kafka", "consumer", "g1"), l.BasePath)
	require.Equal(t, filepath.Join("[date]", "c1.log"), l.DataLogFile)

	custom := config.LogConfig{BasePath: "/var/log/w", DataLogFile: "x.log"}.WithDefaultPaths("g1", "c1")
	require.Equal(t, "/var/log/w", custom.BasePath)
	require.Equal(t, "x.log", custom.DataLogFile)
}
