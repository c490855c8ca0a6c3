package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Binance     BinanceConfig    `mapstructure:"binance"`
	Broker      BrokerConfig     `mapstructure:"broker"`
	Throughput  ThroughputConfig `mapstructure:"throughput"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Log         LogConfig        `mapstructure:"log"`
}

type BinanceConfig struct {
	REST    RESTConfig `mapstructure:"rest"`
	WS      WSConfig   `mapstructure:"ws"`
	Symbols []string   `mapstructure:"symbols"`
}

type RESTConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ValidateSymbols bool          `mapstructure:"validate_symbols"`
}

type WSConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"` // 0 disables the read deadline
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
}

type ThroughputConfig struct {
	ReportEvery int `mapstructure:"report_every"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"` // empty disables the /metrics listener
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("binance.ws.base_url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("binance.ws.handshake_timeout", 10*time.Second)
	v.SetDefault("binance.ws.read_timeout", 0)
	v.SetDefault("binance.ws.reconnect_delay", 5*time.Second)
	v.SetDefault("binance.rest.base_url", "https://api.binance.com")
	v.SetDefault("binance.rest.timeout", 10*time.Second)
	v.SetDefault("binance.rest.validate_symbols", false)
	v.SetDefault("binance.symbols", []string{
		"btcusdt", "ethusdt", "bnbusdt", "solusdt", "xrpusdt",
		"adausdt", "dogeusdt", "avaxusdt", "trxusdt", "linkusdt",
	})

	v.SetDefault("broker.driver", DriverKafka)
	v.SetDefault("broker.bootstrap_servers", []string{"localhost:9092"})
	v.SetDefault("broker.bootstrap_param", "")
	v.SetDefault("broker.topic", "binance")
	v.SetDefault("broker.client_id", "binance-bridge")
	v.SetDefault("broker.buffer_size", 100000)
	v.SetDefault("broker.batch_size", 500)
	v.SetDefault("broker.flush_interval", 100*time.Millisecond)
	v.SetDefault("broker.shutdown_timeout", 10*time.Second)
	v.SetDefault("broker.retry_delay", 5*time.Second)

	v.SetDefault("throughput.report_every", 5000)

	v.SetDefault("metrics.listen_addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "")
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = defaultConfigPath()
	}

	cfg, err := LoadFile(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// defaultConfigPath resolves config/config.yaml next to the binary, or relative to the
// package directory when running under go run / go test.
func defaultConfigPath() string {
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		return filepath.Join(pwd, "../../config/config.yaml")
	}
	return filepath.Join(filepath.Dir(ex), "../config/config.yaml")
}

// LoadFile reads the given YAML file, applies defaults and environment overrides
// (e.g. BROKER_TOPIC) and validates the result. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Support environment variables with dot notation (e.g., BINANCE_WS_BASE_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem found in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Binance.Symbols) == 0 {
		errs = append(errs, errors.New("binance.symbols must not be empty"))
	}
	if c.Binance.WS.BaseURL == "" {
		errs = append(errs, errors.New("binance.ws.base_url is required"))
	}
	if c.Binance.WS.ReconnectDelay < 0 {
		errs = append(errs, errors.New("binance.ws.reconnect_delay must not be negative"))
	}
	if c.Binance.REST.ValidateSymbols && c.Binance.REST.BaseURL == "" {
		errs = append(errs, errors.New("binance.rest.base_url is required when validate_symbols is set"))
	}
	if c.Throughput.ReportEvery <= 0 {
		errs = append(errs, fmt.Errorf("throughput.report_every must be positive, got %d", c.Throughput.ReportEvery))
	}

	errs = append(errs, c.Broker.validate()...)

	return errors.Join(errs...)
}
