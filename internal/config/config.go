// Package config loads the control plane's process configuration from
// the environment, using an envconfig-with-defaults idiom.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full set of process-level settings, parsed once in
// cmd/dataflow-ctl/main.go and threaded through component constructors.
type Config struct {
	LogFormat    string     `default:"json" split_words:"true"`
	LogLevel     slog.Level `default:"info" split_words:"true"`
	LogAddSource bool       `default:"false" split_words:"true"`
	LogFilePath  string     `split_words:"true"`

	ServerAddr            string        `default:":8080" split_words:"true"`
	ServerReadTimeout     time.Duration `default:"15s" split_words:"true"`
	ServerWriteTimeout    time.Duration `default:"15s" split_words:"true"`
	ServerIdleTimeout     time.Duration `default:"5m" split_words:"true"`
	ServerShutdownTimeout time.Duration `default:"30s" split_words:"true"`

	// PostgresDSN points at the control plane's own metadata store
	// (pipelines, credentials, tracked resources, ...).
	PostgresDSN         string        `split_words:"true" required:"true"`
	PostgresMaxConns    int32         `default:"10" split_words:"true"`
	PostgresConnTimeout time.Duration `default:"10s" split_words:"true"`

	// VaultEncryptionKey is a base64-encoded 32-byte AES-256 key used by
	// the Credential Vault to seal source-database secrets.
	VaultEncryptionKey string `split_words:"true" required:"true"`

	KafkaBrokers         []string      `split_words:"true"`
	KafkaConnectURL      string        `split_words:"true"`
	KsqlDBURL            string        `split_words:"true"`
	SchemaRegistryURL    string        `split_words:"true"`
	SchemaRegistryKey    string        `split_words:"true"`
	SchemaRegistrySecret string        `split_words:"true"`
	BrokerAdminTimeout   time.Duration `default:"10s" split_words:"true"`

	// KafkaAuth selects the broker admin client's auth mechanism: none,
	// sasl_plain, or kerberos.
	KafkaAuth       string `default:"none" split_words:"true"`
	KafkaSASLUser   string `split_words:"true"`
	KafkaSASLPass   string `split_words:"true"`
	KafkaTLS        bool   `default:"false" split_words:"true"`
	KafkaKrbConf    string `split_words:"true"`
	KafkaKeytab     string `split_words:"true"`
	KafkaKrbRealm   string `split_words:"true"`
	KafkaKrbUser    string `split_words:"true"`
	KafkaKrbService string `split_words:"true"`

	ClickHouseDSN string `split_words:"true"`

	// ConversationCursorPath is the on-disk path for the embedded badger
	// store backing each conversation's per-session workflow cursor.
	ConversationCursorPath string `default:"./data/conversation-cursor" split_words:"true"`

	// ConfigDir holds the module registry's YAML definitions: sources/,
	// sinks/, and transforms/ subdirectories.
	ConfigDir string `default:"./config" split_words:"true"`

	MonitorInterval    time.Duration `default:"60s" split_words:"true"`
	ReadinessTimeout   time.Duration `default:"10s" split_words:"true"`
	ProbeRetryAttempts uint          `default:"3" split_words:"true"`

	SMTPHost string `split_words:"true"`
	SMTPPort int    `default:"587" split_words:"true"`
	SMTPUser string `split_words:"true"`
	SMTPPass string `split_words:"true"`
	SMTPFrom string `split_words:"true"`

	OTELMetricsEnabled bool `default:"false" split_words:"true"`
}

// Load parses Config from environment variables prefixed DATAFLOW_, e.g.
// DATAFLOW_POSTGRES_DSN, DATAFLOW_SERVER_ADDR.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("dataflow", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
