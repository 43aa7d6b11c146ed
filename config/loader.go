package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "GROUPWORKER"

// fileConfig mirrors the recognised configuration keys.
type fileConfig struct {
	GroupID              string   `mapstructure:"group_id"`
	ClientID             string   `mapstructure:"client_id"`
	Topics               []string `mapstructure:"topics"`
	Brokers              []string `mapstructure:"brokers"`
	AutoOffsetReset      string   `mapstructure:"auto_offset_reset"`
	ConsumeTimeoutMs     int      `mapstructure:"consume_timeout_ms"`
	EnableAutoCommit     bool     `mapstructure:"enable_auto_commit"`
	AutoCommitIntervalMs int      `mapstructure:"auto_commit_interval_ms"`
	RequestRequiredAcks  int      `mapstructure:"request_required_acks"`
	EnablePartitionEOF   bool     `mapstructure:"enable_partition_eof"`
	SessionTimeoutMs     int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMs  int      `mapstructure:"heartbeat_interval_ms"`
	CommitRetries        int      `mapstructure:"commit_retries"`
	CommitRetryBackoffMs int      `mapstructure:"commit_retry_backoff_ms"`
	Transport            string   `mapstructure:"transport"`
	PayloadFormat        string   `mapstructure:"payload_format"`

	SASL struct {
		Mechanism string `mapstructure:"mechanism"`
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
		AWSRegion string `mapstructure:"aws_region"`
	} `mapstructure:"sasl"`

	TLS struct {
		Enabled            bool   `mapstructure:"enabled"`
		CACertFile         string `mapstructure:"ca_cert_file"`
		ClientCertFile     string `mapstructure:"client_cert_file"`
		ClientKeyFile      string `mapstructure:"client_key_file"`
		InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	} `mapstructure:"tls"`

	Log struct {
		Level       string `mapstructure:"level"`
		Output      string `mapstructure:"output"`
		Format      string `mapstructure:"format"`
		BasePath    string `mapstructure:"base_path"`
		DataLogFile string `mapstructure:"data_log_file"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("group_id", "")
	v.SetDefault("client_id", d.ClientID)
	v.SetDefault("topics", []string{})
	v.SetDefault("brokers", d.Brokers)
	v.SetDefault("auto_offset_reset", string(d.AutoOffsetReset))
	v.SetDefault("consume_timeout_ms", d.ConsumeTimeout.Milliseconds())
	v.SetDefault("enable_auto_commit", d.EnableAutoCommit)
	v.SetDefault("auto_commit_interval_ms", d.AutoCommitInterval.Milliseconds())
	v.SetDefault("request_required_acks", d.RequestRequiredAcks)
	v.SetDefault("enable_partition_eof", d.EnablePartitionEOF)
	v.SetDefault("session_timeout_ms", d.SessionTimeout.Milliseconds())
	v.SetDefault("heartbeat_interval_ms", d.HeartbeatInterval.Milliseconds())
	v.SetDefault("commit_retries", d.CommitRetries)
	v.SetDefault("commit_retry_backoff_ms", d.CommitRetryBackoff.Milliseconds())
	v.SetDefault("transport", string(d.Transport))
	v.SetDefault("payload_format", d.PayloadFormat)

	v.SetDefault("sasl.mechanism", "")
	v.SetDefault("sasl.username", "")
	v.SetDefault("sasl.aws_region", "")
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.ca_cert_file", "")
	v.SetDefault("tls.client_cert_file", "")
	v.SetDefault("tls.client_key_file", "")
	v.SetDefault("tls.insecure_skip_verify", false)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.base_path", "")
	v.SetDefault("log.data_log_file", "")
}

// Load reads configFile (yaml, json or toml; optional) and overlays
// GROUPWORKER_* environment variables, e.g. GROUPWORKER_GROUP_ID or
// GROUPWORKER_SASL_PASSWORD.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind secrets explicitly so they never need to live in the file
	if err := v.BindEnv("sasl.password", EnvPrefix+"_SASL_PASSWORD", "KAFKA_SASL_PASSWORD"); err != nil {
		return Config{}, fmt.Errorf("bind sasl password: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return fc.toConfig()
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (fc fileConfig) toConfig() (Config, error) {
	reset, err := ParseOffsetReset(fc.AutoOffsetReset)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		GroupID:             fc.GroupID,
		ClientID:            fc.ClientID,
		Topics:              fc.Topics,
		Brokers:             fc.Brokers,
		AutoOffsetReset:     reset,
		ConsumeTimeout:      ms(fc.ConsumeTimeoutMs),
		EnableAutoCommit:    fc.EnableAutoCommit,
		AutoCommitInterval:  ms(fc.AutoCommitIntervalMs),
		RequestRequiredAcks: fc.RequestRequiredAcks,
		EnablePartitionEOF:  fc.EnablePartitionEOF,
		SessionTimeout:      ms(fc.SessionTimeoutMs),
		HeartbeatInterval:   ms(fc.HeartbeatIntervalMs),
		CommitRetries:       fc.CommitRetries,
		CommitRetryBackoff:  ms(fc.CommitRetryBackoffMs),
		Transport:           Transport(strings.ToLower(fc.Transport)),
		PayloadFormat:       strings.ToLower(fc.PayloadFormat),
		SASL: SASLConfig{
			Mechanism: strings.ToUpper(fc.SASL.Mechanism),
			Username:  fc.SASL.Username,
			Password:  fc.SASL.Password,
			AWSRegion: fc.SASL.AWSRegion,
		},
		TLS: TLSConfig{
			Enabled:            fc.TLS.Enabled,
			CACertFile:         fc.TLS.CACertFile,
			ClientCertFile:     fc.TLS.ClientCertFile,
			ClientKeyFile:      fc.TLS.ClientKeyFile,
			InsecureSkipVerify: fc.TLS.InsecureSkipVerify,
		},
		Log: LogConfig{
			Level:       fc.Log.Level,
			Output:      fc.Log.Output,
			Format:      fc.Log.Format,
			BasePath:    fc.Log.BasePath,
			DataLogFile: fc.Log.DataLogFile,
		},
	}

	return cfg, nil
}
