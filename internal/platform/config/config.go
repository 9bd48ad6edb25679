package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Tokens    TokensConfig    `mapstructure:"tokens"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// BootstrapKey guards organization creation. Empty leaves the route open.
	BootstrapKey string `mapstructure:"bootstrap_key"`
}

type DatabaseConfig struct {
	Global GlobalDBConfig `mapstructure:"global"`
	Tenant TenantDBConfig `mapstructure:"tenant"`
}

type GlobalDBConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type TenantDBConfig struct {
	BasePath             string `mapstructure:"base_path"`
	MaxConnectionsPerOrg int    `mapstructure:"max_connections_per_org"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type TokensConfig struct {
	// Pepper keys the token hash; rotating it invalidates every issued token.
	Pepper       string        `mapstructure:"pepper"`
	TouchTimeout time.Duration `mapstructure:"touch_timeout"`
}

type RateLimitConfig struct {
	ExternalPerSecond float64 `mapstructure:"external_per_second"`
	ExternalBurst     int     `mapstructure:"external_burst"`
	AdminPerSecond    float64 `mapstructure:"admin_per_second"`
	AdminBurst        int     `mapstructure:"admin_burst"`
}

type WebhooksConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

type FiltersConfig struct {
	ClassifierURL     string        `mapstructure:"classifier_url"`
	ClassifierToken   string        `mapstructure:"classifier_token"`
	ClassifierTimeout time.Duration `mapstructure:"classifier_timeout"`
	WorkflowTimeout   time.Duration `mapstructure:"workflow_timeout"`
}

type KafkaConfig struct {
	Brokers        string `mapstructure:"brokers"`
	GroupID        string `mapstructure:"group_id"`
	MutationsTopic string `mapstructure:"mutations_topic"`
	MessagesTopic  string `mapstructure:"messages_topic"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type WorkersConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	Concurrency   int           `mapstructure:"concurrency"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.global.url", "file:./data/global.db")
	v.SetDefault("database.global.max_connections", 10)
	v.SetDefault("database.tenant.base_path", "./data/tenants")
	v.SetDefault("database.tenant.max_connections_per_org", 4)

	v.SetDefault("jwt.access_token_ttl", time.Hour)
	v.SetDefault("tokens.touch_timeout", 2*time.Second)

	v.SetDefault("rate_limit.external_per_second", 20.0)
	v.SetDefault("rate_limit.external_burst", 40)
	v.SetDefault("rate_limit.admin_per_second", 5.0)
	v.SetDefault("rate_limit.admin_burst", 20)

	v.SetDefault("webhooks.max_attempts", 3)
	v.SetDefault("webhooks.initial_backoff", time.Second)
	v.SetDefault("webhooks.max_backoff", 30*time.Second)
	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.dispatch_timeout", 5*time.Minute)

	v.SetDefault("filters.classifier_timeout", 5*time.Second)
	v.SetDefault("filters.workflow_timeout", 10*time.Second)

	v.SetDefault("kafka.group_id", "relaydesk-worker")
	v.SetDefault("kafka.mutations_topic", "entity.mutations")
	v.SetDefault("kafka.messages_topic", "messages.inbound")

	v.SetDefault("redis.channel", "relaydesk:webhooks:cancel")

	v.SetDefault("workers.sweep_interval", 5*time.Minute)
	v.SetDefault("workers.stale_after", 30*time.Minute)
	v.SetDefault("workers.concurrency", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
