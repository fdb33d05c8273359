package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort     string `env:"SERVER_PORT" envDefault:"1234"`
	ServerHost     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName    string `env:"SERVICE_NAME" envDefault:"otel-demo"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"0.1"`

	// OpenTelemetry 配置
	OTelEnabled          bool          `env:"OTEL_ENABLED" envDefault:"true"`
	OTLPEndpoint         string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	MetricExportInterval time.Duration `env:"OTEL_METRIC_EXPORT_INTERVAL" envDefault:"5s"`
	TraceSampleRatio     float64       `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 下游依赖（/ 路由的外呼）
	DownstreamURL     string        `env:"DOWNSTREAM_URL" envDefault:"http://localhost:6000/"`
	DownstreamDelay   time.Duration `env:"DOWNSTREAM_DELAY" envDefault:"100ms"`
	DownstreamTimeout time.Duration `env:"DOWNSTREAM_TIMEOUT" envDefault:"5s"` // 0 表示不设超时

	// 数据源配置
	DemoUserID int64  `env:"DEMO_USER_ID" envDefault:"123"`
	DataSource string `env:"DATA_SOURCE" envDefault:"fake"` // fake, postgres

	// 混沌注入配置
	ChaosNotFoundRate float64       `env:"CHAOS_NOT_FOUND_RATE" envDefault:"0.2"`
	ChaosErrorRate    float64       `env:"CHAOS_ERROR_RATE" envDefault:"0.05"`
	ChaosMaxLatency   time.Duration `env:"CHAOS_MAX_LATENCY" envDefault:"200ms"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"oteldemo"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"10"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"50"`

	// Redis 配置
	RedisEnabled  bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string        `env:"REDIS_PREFIX" envDefault:"oteldemo"`
	RedisCacheTTL time.Duration `env:"REDIS_CACHE_TTL" envDefault:"5m"`

	// Snowflake ID 生成器配置，用于请求 ID
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
	Cfg = cfg

	validateConfig(&Cfg)
}

// Load 从环境变量解析配置，不读取 .env
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(c *Config) {
	if c.DataSource != "fake" && c.DataSource != "postgres" {
		log.Printf("WARN: DATA_SOURCE %q is not supported, falling back to fake", c.DataSource)
		c.DataSource = "fake"
	}

	if c.ChaosNotFoundRate+c.ChaosErrorRate > 1 {
		log.Printf("WARN: CHAOS_NOT_FOUND_RATE + CHAOS_ERROR_RATE exceeds 1, chaos disabled")
		c.ChaosNotFoundRate = 0
		c.ChaosErrorRate = 0
	}

	// 0 表示不采样
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		log.Printf("WARN: OTEL_TRACE_SAMPLE_RATIO %v out of range, using 1", c.TraceSampleRatio)
		c.TraceSampleRatio = 1
	}
	if c.IsDevelopment() && c.TraceSampleRatio != 1 {
		log.Printf("WARN: OTEL_TRACE_SAMPLE_RATIO %v overridden to 1 in development", c.TraceSampleRatio)
		c.TraceSampleRatio = 1
	}

	if c.DownstreamTimeout == 0 {
		log.Printf("WARN: DOWNSTREAM_TIMEOUT is 0, outbound calls may hang indefinitely")
	}

	if c.MetricExportInterval <= 0 {
		c.MetricExportInterval = 5 * time.Second
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) UsePostgres() bool {
	return c.DataSource == "postgres"
}
