package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Futuresflow FuturesflowConfig `yaml:"futuresflow"`
	Logging     LoggingConfig     `yaml:"logging"`
	Feed        FeedConfig        `yaml:"feed"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

type FuturesflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// FeedConfig holds the market-data session settings. Credentials arrive
// already decrypted, usually through the environment.
type FeedConfig struct {
	BrokerName     string        `yaml:"broker_name"`
	BrokerID       string        `yaml:"broker_id"`
	UserID         string        `yaml:"user_id"`
	Password       string        `yaml:"password"`
	AppID          string        `yaml:"app_id"`
	AuthCode       string        `yaml:"auth_code"`
	MdFrontAddr    string        `yaml:"md_front_addr"`
	TradeFrontAddr string        `yaml:"trade_front_addr"`
	GatewayURL     string        `yaml:"gateway_url"`
	LoginTimeout   time.Duration `yaml:"login_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	Instruments    []string      `yaml:"instruments"`
	ProductsFile   string        `yaml:"products_file"`
}

type ChannelsConfig struct {
	RawBuffer  int `yaml:"raw_buffer"`
	TickBuffer int `yaml:"tick_buffer"`
}

type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type SupervisorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type StorageConfig struct {
	Root  string      `yaml:"root"`
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	Compression     string `yaml:"compression"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// MetadataDir enables Iceberg-style table metadata for uploaded parts.
	MetadataDir string `yaml:"metadata_dir"`
	Table       string `yaml:"table"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type MetricsConfig struct {
	ReportInterval time.Duration    `yaml:"report_interval"`
	ChannelStats   time.Duration    `yaml:"channel_stats"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// DashboardConfig controls the HTTP status server.
type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
	ResourceHistory int           `yaml:"resource_history"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used for any key the file leaves out.
func Default() Config {
	return Config{
		Futuresflow: FuturesflowConfig{Name: "futuresflow", Version: "dev"},
		Logging:     LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Feed: FeedConfig{
			LoginTimeout: 30 * time.Second,
			PingInterval: 15 * time.Second,
		},
		Channels:   ChannelsConfig{RawBuffer: 10000, TickBuffer: 10000},
		Scheduler:  SchedulerConfig{Interval: time.Second},
		Supervisor: SupervisorConfig{Interval: 3 * time.Minute},
		Storage: StorageConfig{
			Root: "data",
			S3:   S3Config{Prefix: "ticks", Compression: "snappy", Table: "futures_ticks"},
		},
		Metrics: MetricsConfig{
			ReportInterval: time.Minute,
			ChannelStats:   30 * time.Second,
			CloudWatch:     CloudWatchConfig{Namespace: "FuturesFlow", Dashboard: "FuturesFlow"},
		},
		Dashboard: DashboardConfig{Address: ":8080", RefreshInterval: 5 * time.Second},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if config.Feed.BrokerName != "" {
		if err := applyBroker(&config.Feed); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	override := func(dst *string, env string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}

	override(&config.Feed.BrokerID, "CTP_BROKER_ID")
	override(&config.Feed.UserID, "CTP_USER_ID")
	override(&config.Feed.Password, "CTP_PASSWORD")
	override(&config.Feed.AppID, "CTP_APP_ID")
	override(&config.Feed.AuthCode, "CTP_AUTH_CODE")
	override(&config.Feed.MdFrontAddr, "CTP_MD_FRONT")
	override(&config.Feed.GatewayURL, "CTP_GATEWAY_URL")
	override(&config.Storage.Root, "DATA_ROOT")
	override(&config.Dashboard.Address, "DASHBOARD_ADDR")

	if config.Storage.S3.Enabled {
		override(&config.Storage.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
		override(&config.Storage.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
		override(&config.Storage.S3.Region, "AWS_REGION")
		override(&config.Storage.S3.Bucket, "S3_BUCKET")
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
}

// applyBroker fills broker id and front addresses from the known broker
// table when they are not set explicitly.
func applyBroker(feed *FeedConfig) error {
	b, ok := LookupBroker(feed.BrokerName)
	if !ok {
		return fmt.Errorf("unknown broker %q", feed.BrokerName)
	}
	if feed.BrokerID == "" {
		feed.BrokerID = b.BrokerID
	}
	if feed.MdFrontAddr == "" {
		feed.MdFrontAddr = b.MdFront
	}
	if feed.TradeFrontAddr == "" {
		feed.TradeFrontAddr = b.TradeFront
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Futuresflow.Name == "" {
		return fmt.Errorf("futuresflow.name is required")
	}
	if cfg.Futuresflow.Version == "" {
		return fmt.Errorf("futuresflow.version is required")
	}

	if cfg.Feed.BrokerID == "" {
		return fmt.Errorf("feed.broker_id is required")
	}
	if cfg.Feed.UserID == "" {
		return fmt.Errorf("feed.user_id is required")
	}
	if cfg.Feed.MdFrontAddr == "" && cfg.Feed.GatewayURL == "" {
		return fmt.Errorf("feed.md_front_addr or feed.gateway_url is required")
	}
	if cfg.Feed.LoginTimeout <= 0 {
		return fmt.Errorf("feed.login_timeout must be greater than 0")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if cfg.Channels.TickBuffer < 0 {
		return fmt.Errorf("channels.tick_buffer must not be negative")
	}
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than 0")
	}
	if cfg.Supervisor.Interval <= 0 {
		return fmt.Errorf("supervisor.interval must be greater than 0")
	}
	if strings.TrimSpace(cfg.Storage.Root) == "" {
		return fmt.Errorf("storage.root is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
		switch cfg.Storage.S3.Compression {
		case "", "snappy", "gzip", "none":
		default:
			return fmt.Errorf("storage.s3.compression '%s' is not supported", cfg.Storage.S3.Compression)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when Kafka is enabled")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
