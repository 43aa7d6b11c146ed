package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/hugolhafner/go-groupworker/config"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/oauth"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	kscram "github.com/twmb/franz-go/pkg/sasl/scram"
)

// kgoSASL returns the franz-go mechanism for cfg, or nil when SASL is off.
// MSK IAM authenticates over OAUTHBEARER with a token from the AWS signer.
func kgoSASL(cfg config.SASLConfig) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.Mechanism) {
	case "":
		return nil, nil
	case config.SASLMechanismPlain:
		return plain.Auth{User: cfg.Username, Pass: cfg.Password}.AsMechanism(), nil
	case config.SASLMechanismScramSHA256:
		return kscram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha256Mechanism(), nil
	case config.SASLMechanismScramSHA512:
		return kscram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha512Mechanism(), nil
	case config.SASLMechanismAWSMSKIAM:
		region := cfg.AWSRegion
		return oauth.Oauth(
			func(ctx context.Context) (oauth.Auth, error) {
				token, _, err := signer.GenerateAuthToken(ctx, region)
				if err != nil {
					return oauth.Auth{}, fmt.Errorf("generate msk auth token: %w", err)
				}
				return oauth.Auth{Token: token}, nil
			},
		), nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}

// configureSaramaSASL fills sc.Net.SASL from cfg.
func configureSaramaSASL(sc *sarama.Config, cfg config.SASLConfig) error {
	mechanism := strings.ToUpper(cfg.Mechanism)
	if mechanism == "" {
		return nil
	}

	sc.Net.SASL.Enable = true

	switch mechanism {
	case config.SASLMechanismPlain:
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = cfg.Username
		sc.Net.SASL.Password = cfg.Password

	case config.SASLMechanismScramSHA256:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.User = cfg.Username
		sc.Net.SASL.Password = cfg.Password
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: SHA256}
		}

	case config.SASLMechanismScramSHA512:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.User = cfg.Username
		sc.Net.SASL.Password = cfg.Password
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: SHA512}
		}

	case config.SASLMechanismAWSMSKIAM:
		sc.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		sc.Net.SASL.TokenProvider = &mskTokenProvider{region: cfg.AWSRegion}

	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}

	return nil
}

type mskTokenProvider struct {
	region string
}

func (m *mskTokenProvider) Token() (*sarama.AccessToken, error) {
	token, _, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("generate msk auth token: %w", err)
	}
	return &sarama.AccessToken{Token: token}, nil
}
