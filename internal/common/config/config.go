// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	RabbitMQ      RabbitMQConfig          `mapstructure:"rabbitmq"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Channels      ChannelsConfig          `mapstructure:"channels"`
	Scheduler     SchedulerConfig         `mapstructure:"scheduler"`
	Rules         RulesConfig             `mapstructure:"rules"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig backs the delivery audit index. Disabled means audit is a no-op.
type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RabbitMQConfig carries the bot-channel publisher settings.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Producer string `mapstructure:"producer"`
}

// IntegrationConfig holds settings for AWS email/SMS delivery.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// ChannelsConfig toggles the outbound channel adapters.
type ChannelsConfig struct {
	Telegram BotChannelConfig `mapstructure:"telegram"`
	Viber    BotChannelConfig `mapstructure:"viber"`
	Email    struct {
		Enabled bool   `mapstructure:"enabled"`
		Subject string `mapstructure:"subject"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
}

type BotChannelConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	RoutingKey string `mapstructure:"routing_key"`
}

type SchedulerConfig struct {
	PoolSize int    `mapstructure:"pool_size"`
	Location string `mapstructure:"location"`
}

// RuleConfig is shared by every scheduled dispatch rule.
type RuleConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	MinOrderAge time.Duration `mapstructure:"min_order_age"`
}

// InactiveUserRuleConfig bounds the "last order" window: [now-InactiveFrom, now-InactiveTo].
type InactiveUserRuleConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
	InactiveFrom time.Duration `mapstructure:"inactive_from"`
	InactiveTo   time.Duration `mapstructure:"inactive_to"`
}

type RulesConfig struct {
	UnpaidOrder      RuleConfig             `mapstructure:"unpaid_order"`
	InactiveUser     InactiveUserRuleConfig `mapstructure:"inactive_user"`
	HalfPaidPackage  RuleConfig             `mapstructure:"half_paid_package"`
	BroughtByHimself RuleConfig             `mapstructure:"brought_by_himself"`
	CourierItinerary RuleConfig             `mapstructure:"courier_itinerary"`
	DoneOrCanceled   RuleConfig             `mapstructure:"done_or_canceled"`
}

// NotificationConfig holds settings shared by the catalog, rules and inbox.
type NotificationConfig struct {
	DefaultLanguage  string        `mapstructure:"default_language"`
	CourierPhones    []string      `mapstructure:"courier_phones"`
	TemplateCacheTTL time.Duration `mapstructure:"template_cache_ttl"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
}
