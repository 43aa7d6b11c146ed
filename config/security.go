package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	SASLMechanismPlain       = "PLAIN"
	SASLMechanismScramSHA256 = "SCRAM-SHA-256"
	SASLMechanismScramSHA512 = "SCRAM-SHA-512"
	SASLMechanismAWSMSKIAM   = "AWS_MSK_IAM"
)

// SASLConfig is disabled when Mechanism is empty.
type SASLConfig struct {
	Mechanism string
	Username  string
	Password  string
	AWSRegion string
}

func (s SASLConfig) Enabled() bool {
	return s.Mechanism != ""
}

func (s SASLConfig) validate() error {
	switch strings.ToUpper(s.Mechanism) {
	case "":
		return nil
	case SASLMechanismPlain, SASLMechanismScramSHA256, SASLMechanismScramSHA512:
		if s.Username == "" {
			return NewConfigurationError("sasl.username", "required for "+s.Mechanism)
		}
		return nil
	case SASLMechanismAWSMSKIAM:
		if s.AWSRegion == "" {
			return NewConfigurationError("sasl.aws_region", "required for "+SASLMechanismAWSMSKIAM)
		}
		return nil
	default:
		return NewConfigurationError("sasl.mechanism", fmt.Sprintf("unsupported mechanism %q", s.Mechanism))
	}
}

type TLSConfig struct {
	Enabled            bool
	CACertFile         string
	ClientCertFile     string
	ClientKeyFile      string
	InsecureSkipVerify bool
}

// LogConfig describes where the file logger writes. DataLogFile may contain
// the [date] placeholder.
type LogConfig struct {
	Level       string
	Output      string // file | stdout | stderr
	Format      string // json | console
	BasePath    string
	DataLogFile string
}

func defaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Output: "stdout",
		Format: "json",
	}
}

// WithDefaultPaths fills BasePath and DataLogFile with the per-group layout
// runtime/kafka/consumer/<group>/[date]/<client>.log.
func (l LogConfig) WithDefaultPaths(groupID, clientID string) LogConfig {
	if l.BasePath == "" {
		l.BasePath = filepath.Join("runtime", "kafka", "consumer", groupID)
	}
	if l.DataLogFile == "" {
		l.DataLogFile = filepath.Join("[date]", clientID+".log")
	}
	return l
}
