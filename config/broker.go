package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Supported broker drivers.
const (
	DriverKafka  = "kafka"  // watermill-kafka (sarama sync producer)
	DriverFranz  = "franz"  // franz-go client
	DriverMemory = "memory" // in-process gochannel, local runs only
)

// BrokerConfig defines how the bridge reaches the message broker.
type BrokerConfig struct {
	Driver           string   `mapstructure:"driver"`
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	// BootstrapParam names an SSM parameter holding a comma separated broker list.
	// It is only consulted when the environment is "prod".
	BootstrapParam string `mapstructure:"bootstrap_param"`
	Topic          string `mapstructure:"topic"`
	ClientID       string `mapstructure:"client_id"`

	BufferSize      int           `mapstructure:"buffer_size"`
	BatchSize       int           `mapstructure:"batch_size"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RetryDelay spaces attempts to create the kafka producer while the cluster is unreachable.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ParameterLookup fetches a value from the parameter store. Tests may replace it.
var ParameterLookup = getParameterStoreValue

// Addresses returns the bootstrap servers for the given environment. In prod the
// SSM parameter wins when it is set and non-empty.
func (cfg *BrokerConfig) Addresses(ctx context.Context, env string) []string {
	if env == "prod" && cfg.BootstrapParam != "" {
		if raw := ParameterLookup(ctx, cfg.BootstrapParam, true); raw != "" {
			return splitAddresses(raw)
		}
	}
	return cfg.BootstrapServers
}

func (cfg *BrokerConfig) validate() []error {
	var errs []error

	switch cfg.Driver {
	case DriverKafka, DriverFranz:
		if len(cfg.BootstrapServers) == 0 && cfg.BootstrapParam == "" {
			errs = append(errs, errors.New("broker.bootstrap_servers or broker.bootstrap_param is required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown broker.driver %q", cfg.Driver))
	}

	if cfg.Topic == "" {
		errs = append(errs, errors.New("broker.topic is required"))
	}
	if cfg.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("broker.buffer_size must be positive, got %d", cfg.BufferSize))
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("broker.batch_size must be positive, got %d", cfg.BatchSize))
	}
	if cfg.FlushInterval <= 0 {
		errs = append(errs, errors.New("broker.flush_interval must be positive"))
	}
	return errs
}

func splitAddresses(raw string) []string {
	var out []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func getParameterStoreValue(ctx context.Context, parameterName string, decrypt bool) string {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
