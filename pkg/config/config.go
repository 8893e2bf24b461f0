package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"FinFactor/internal/domain/models"
)

// EnvPrefix prefixes every environment override, e.g. FINFACTOR_PROVIDER.
const EnvPrefix = "FINFACTOR"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		// RateLimit is requests per second per client IP; 0 disables the limiter.
		RateLimit        float64       `yaml:"rate_limit" default:"20" validate:"gte=0"`
		RateBurst        int           `yaml:"rate_burst" default:"40" validate:"gte=0"`
		ResponseCacheTTL time.Duration `yaml:"response_cache_ttl" default:"1m"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout" validate:"required"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Provider struct {
		Type string `yaml:"type" default:"memory" validate:"oneof=memory csv clickhouse postgres"`
		// Company optionally serves fundamentals and market cap from another source.
		Company string        `yaml:"company" validate:"omitempty,oneof=csv clickhouse postgres"`
		CSVDir  string        `yaml:"csv_dir" default:"./data"`
		Timeout time.Duration `yaml:"timeout" default:"30s"`
		Cache   struct {
			Enabled bool          `yaml:"enabled"`
			TTL     time.Duration `yaml:"ttl" default:"10m"`
		} `yaml:"cache"`
		Breaker struct {
			Enabled             bool          `yaml:"enabled" default:"true"`
			ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"5"`
			OpenTimeout         time.Duration `yaml:"open_timeout" default:"30s"`
			Retries             int           `yaml:"retries" default:"2" validate:"gte=0"`
			Backoff             time.Duration `yaml:"backoff" default:"200ms"`
		} `yaml:"breaker"`
	} `yaml:"provider"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finfactor"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns" default:"10"`
		InitSchema   bool   `yaml:"init_schema"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled    bool          `yaml:"enabled"`
		Addr       string        `yaml:"addr" default:"localhost:6379"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		Prefix     string        `yaml:"prefix" default:"finfactor"`
		MemorySize int           `yaml:"memory_size" default:"1000"`
		MemoryTTL  time.Duration `yaml:"memory_ttl" default:"1m"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers"`
		Topic       string   `yaml:"topic" default:"factor.reports"`
		Compression string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Requests    struct {
			Enabled  bool   `yaml:"enabled"`
			Topic    string `yaml:"topic" default:"factor.analysis.requests"`
			GroupID  string `yaml:"group_id" default:"finfactor-analysis"`
			Workers  int    `yaml:"workers" default:"2" validate:"gte=1"`
			RetryMax int    `yaml:"retry_max" default:"2" validate:"gte=0"`
			DLQTopic string `yaml:"dlq_topic" default:"factor.analysis.requests.dlq"`
		} `yaml:"requests"`
	} `yaml:"kafka"`
	ResultStore struct {
		Enabled    bool `yaml:"enabled"`
		InitSchema bool `yaml:"init_schema" default:"true"`
	} `yaml:"result_store"`
	Analysis struct {
		Periods        []int  `yaml:"periods" validate:"dive,gte=1,lte=252"`
		Method         string `yaml:"method" default:"spearman" validate:"oneof=spearman pearson"`
		MinInstruments int    `yaml:"min_instruments" default:"5" validate:"gte=2"`
		NQuantiles     int    `yaml:"n_quantiles" default:"5" validate:"gte=2,lte=20"`
		Parallelism    int    `yaml:"parallelism" default:"1" validate:"gte=1"`
	} `yaml:"analysis"`
	Factors []models.FactorSpec `yaml:"factors" validate:"dive"`
}

// envOverrides are the settings commonly changed per deployment.
type envOverrides struct {
	Environment    string   `envconfig:"ENVIRONMENT"`
	Provider       string   `envconfig:"PROVIDER"`
	CSVDir         string   `envconfig:"CSV_DIR"`
	ClickHouseHost string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHouseUser string   `envconfig:"CLICKHOUSE_USER"`
	ClickHousePass string   `envconfig:"CLICKHOUSE_PASSWORD"`
	PostgresDSN    string   `envconfig:"POSTGRES_DSN"`
	RedisAddr      string   `envconfig:"REDIS_ADDR"`
	RedisPassword  string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	Port           int      `envconfig:"PORT"`
}

// Default returns a config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if len(c.Analysis.Periods) == 0 {
		c.Analysis.Periods = []int{1, 5, 10}
	}
	return &c, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads a .env file when present, reads the YAML file and applies
// FINFACTOR_* environment overrides before validating again.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from FINFACTOR_* variables. Unset variables keep the file values.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Environment, env.Environment)
	set(&c.Provider.Type, env.Provider)
	set(&c.Provider.CSVDir, env.CSVDir)
	set(&c.ClickHouse.Host, env.ClickHouseHost)
	set(&c.ClickHouse.User, env.ClickHouseUser)
	set(&c.ClickHouse.Password, env.ClickHousePass)
	set(&c.Postgres.DSN, env.PostgresDSN)
	set(&c.Redis.Addr, env.RedisAddr)
	set(&c.Redis.Password, env.RedisPassword)
	set(&c.Kafka.Topic, env.KafkaTopic)
	set(&c.Log.Level, env.LogLevel)
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.Port > 0 {
		c.Server.Port = env.Port
	}
	return nil
}

var validate = validator.New()

// Validate checks struct tags, then the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	needsCH := c.Provider.Type == "clickhouse" || c.Provider.Company == "clickhouse" || c.ResultStore.Enabled
	if needsCH && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse provider or result store")
	}
	if (c.Provider.Type == "postgres" || c.Provider.Company == "postgres") && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for the postgres provider")
	}
	if (c.Kafka.Enabled || c.Kafka.Requests.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Provider.Cache.Enabled && c.Provider.Cache.TTL <= 0 {
		return fmt.Errorf("provider.cache.ttl must be positive")
	}
	for i, f := range c.Factors {
		for j := 0; j < i; j++ {
			if c.Factors[j].DisplayName() == f.DisplayName() {
				return fmt.Errorf("factors[%d]: duplicate factor name %q", i, f.DisplayName())
			}
		}
	}
	return nil
}
