package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Supplier  SupplierConfig  `yaml:"supplier"`
	Search    SearchConfig    `yaml:"search"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Booking   BookingConfig   `yaml:"booking"`
	Payment   PaymentConfig   `yaml:"payment"`
	Worker    WorkerConfig    `yaml:"worker"`
}

type HTTPConfig struct {
	Address      string   `yaml:"address"`
	SwaggerDir   string   `yaml:"swagger_dir"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Path  string `yaml:"path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	// Driver selects the booking store: "postgres" or "memory".
	Driver string `yaml:"driver"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type SupplierConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	RateLimitMillis int    `yaml:"rate_limit_ms"`
	// Per-operation timeouts in seconds.
	SearchTimeout int `yaml:"search_timeout_seconds"`
	FareTimeout   int `yaml:"fare_timeout_seconds"`
	OrderTimeout  int `yaml:"order_timeout_seconds"`
	TicketTimeout int `yaml:"ticket_timeout_seconds"`
	LookupTimeout int `yaml:"lookup_timeout_seconds"`
}

type SearchConfig struct {
	PollIntervalMillis int `yaml:"poll_interval_ms"`
	MaxAttempts        int `yaml:"max_attempts"`
	StallPolls         int `yaml:"stall_polls"`
	StallThreshold     int `yaml:"stall_threshold"`
	InitiateRetries    int `yaml:"initiate_retries"`
	MaxSegmentRetries  int `yaml:"max_segment_retries"`
	SnapshotTTLMinutes int `yaml:"snapshot_ttl_minutes"`
}

type NormalizeConfig struct {
	ChildRatio  float64 `yaml:"child_ratio"`
	InfantRatio float64 `yaml:"infant_ratio"`
}

type BookingConfig struct {
	HoldTTLMinutes   int `yaml:"hold_ttl_minutes"`
	LockTTLSeconds   int `yaml:"lock_ttl_seconds"`
	LockWaitMillis   int `yaml:"lock_wait_ms"`
	MaxIssueAttempts int `yaml:"max_issue_attempts"`
}

type PaymentConfig struct {
	Secret string `yaml:"secret"`
}

type WorkerConfig struct {
	MonitorIntervalSeconds int `yaml:"monitor_interval_seconds"`
	MonitorBatch           int `yaml:"monitor_batch"`
	MonitorParallelism     int `yaml:"monitor_parallelism"`
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the reference values; yaml keys override them.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Address: ":8080"},
		GRPC: GRPCConfig{Address: ":9090"},
		Log:  LogConfig{Path: "logs/"},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Port:    5432,
			SSLMode: "disable",
		},
		Kafka: KafkaConfig{
			NotificationsTopic: "notifications",
			GroupID:            "flightdesk-worker",
		},
		Supplier: SupplierConfig{
			Enabled:         true,
			RateLimitMillis: 100,
			SearchTimeout:   10,
			FareTimeout:     15,
			OrderTimeout:    30,
			TicketTimeout:   20,
			LookupTimeout:   10,
		},
		Search: SearchConfig{
			PollIntervalMillis: 2000,
			MaxAttempts:        15,
			StallPolls:         3,
			StallThreshold:     50,
			InitiateRetries:    2,
			MaxSegmentRetries:  2,
			SnapshotTTLMinutes: 30,
		},
		Normalize: NormalizeConfig{ChildRatio: 0.75, InfantRatio: 0.10},
		Booking: BookingConfig{
			HoldTTLMinutes:   60,
			LockTTLSeconds:   60,
			LockWaitMillis:   2000,
			MaxIssueAttempts: 5,
		},
		Worker: WorkerConfig{
			MonitorIntervalSeconds: 30,
			MonitorBatch:           10,
			MonitorParallelism:     4,
			ExpirationSweepMinutes: 5,
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SUPPLIER_TOKEN"); v != "" {
		c.Supplier.Token = v
	}
	if v := os.Getenv("PAYMENT_SECRET"); v != "" {
		c.Payment.Secret = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// IntegrationEnabled returns the supplier toggle. SUPPLIER_ENABLED, when set,
// wins over the file value and is re-read on every call.
func (c *Config) IntegrationEnabled() func() bool {
	fallback := c.Supplier.Enabled
	return func() bool {
		if v, err := strconv.ParseBool(os.Getenv("SUPPLIER_ENABLED")); err == nil {
			return v
		}
		return fallback
	}
}

func (c *Config) Validate() error {
	if c.Supplier.Enabled && c.Supplier.BaseURL == "" {
		return fmt.Errorf("supplier.base_url is required when the integration is enabled")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Normalize.ChildRatio <= 0 || c.Normalize.InfantRatio < 0 {
		return fmt.Errorf("normalize ratios must be positive")
	}
	return nil
}
