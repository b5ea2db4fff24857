package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/funnelworks/movement-engine/internal/rules"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadHost        string        `mapstructure:"read_host"`
	ReadPort        int           `mapstructure:"read_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// WorkerPoolConfig holds worker pool sizing
type WorkerPoolConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// OrchestratorConfig holds the movement orchestrator tuning knobs
type OrchestratorConfig struct {
	Shards             int           `mapstructure:"shards"`
	AccumulationWindow time.Duration `mapstructure:"accumulation_window"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	PromotionLock      time.Duration `mapstructure:"promotion_lock"`
	DemotionLock       time.Duration `mapstructure:"demotion_lock"`
	RequeueDelay       time.Duration `mapstructure:"requeue_delay"`
	MaxRequeues        int           `mapstructure:"max_requeues"`
	PersistMaxElapsed  time.Duration `mapstructure:"persist_max_elapsed"`
}

// WebhookConfig holds the signed-webhook notification sink configuration
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// NotifyConfig holds the notification fan-out configuration
type NotifyConfig struct {
	Webhook     WebhookConfig `mapstructure:"webhook"`
	NATSEnabled bool          `mapstructure:"nats_enabled"`
}

// MovementSweeperConfig holds configuration for the movement sweeper
type MovementSweeperConfig struct {
	BatchSize int              `mapstructure:"batch_size"`
	Worker    WorkerPoolConfig `mapstructure:"worker"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Rules      rules.Config   `mapstructure:"rules"`
	Notify     NotifyConfig   `mapstructure:"notify"`
}

// MovementWorkerConfig holds configuration for the movement worker
type MovementWorkerConfig struct {
	BaseConfig   `mapstructure:",squash"`
	Database     DatabaseConfig     `mapstructure:"database"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Rules        rules.Config       `mapstructure:"rules"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Notify       NotifyConfig       `mapstructure:"notify"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig      `mapstructure:",squash"`
	Database        DatabaseConfig        `mapstructure:"database"`
	NATS            NATSConfig            `mapstructure:"nats"`
	Rules           rules.Config          `mapstructure:"rules"`
	MovementSweeper MovementSweeperConfig `mapstructure:"movement_sweeper"`
}

// setRuleDefaults applies the production movement thresholds
func setRuleDefaults(v *viper.Viper) {
	defaults := rules.DefaultConfig()
	v.SetDefault("rules.opens_threshold", defaults.OpensThreshold)
	v.SetDefault("rules.clicks_threshold", defaults.ClicksThreshold)
	v.SetDefault("rules.bit_warm_threshold", defaults.BITWarmThreshold)
	v.SetDefault("rules.bit_hot_threshold", defaults.BITHotThreshold)
	v.SetDefault("rules.bit_priority_threshold", defaults.BITPriorityThreshold)
	v.SetDefault("rules.inactivity_days", defaults.InactivityDays)
	v.SetDefault("rules.max_reengagement_cycles", defaults.MaxReengagementCycles)
	v.SetDefault("rules.reengagement_interval_days", defaults.ReengagementIntervalDays)
	v.SetDefault("rules.cooldown", defaults.Cooldown.String())
	v.SetDefault("rules.talentflow_freshness_days", defaults.TalentFlowFreshnessDays)
	v.SetDefault("rules.accumulation_window", defaults.AccumulationWindow.String())
	v.SetDefault("rules.promotion_lock", defaults.PromotionLock.String())
	v.SetDefault("rules.demotion_lock", defaults.DemotionLock.String())
}

// setDatabaseDefaults applies shared database defaults
func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
}

// setNATSDefaults applies shared NATS defaults
func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "MOVEMENT_EVENTS")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 3)
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setRuleDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadMovementWorkerConfig loads configuration for the movement worker
func LoadMovementWorkerConfig(configFile string, envPath string) (*MovementWorkerConfig, error) {
	v := configureViper("movement-worker", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setRuleDefaults(v)
	v.SetDefault("nats.consumer_name", "movement-worker")
	v.SetDefault("orchestrator.shards", 16)
	v.SetDefault("orchestrator.accumulation_window", "4h")
	v.SetDefault("orchestrator.cooldown", "24h")
	v.SetDefault("orchestrator.promotion_lock", "168h")
	v.SetDefault("orchestrator.demotion_lock", "72h")
	v.SetDefault("orchestrator.requeue_delay", "5m")
	v.SetDefault("orchestrator.max_requeues", 3)
	v.SetDefault("orchestrator.persist_max_elapsed", "2m")
	v.SetDefault("notify.nats_enabled", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config MovementWorkerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setRuleDefaults(v)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("movement_sweeper.batch_size", 500)
	v.SetDefault("movement_sweeper.worker.pool_size", 20)
	v.SetDefault("movement_sweeper.worker.queue_size", 500)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}

	return &cfg, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/sweeper/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("MOVEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.read_host",
		"database.read_port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Rules
		"rules.opens_threshold",
		"rules.clicks_threshold",
		"rules.bit_warm_threshold",
		"rules.bit_hot_threshold",
		"rules.bit_priority_threshold",
		"rules.inactivity_days",
		"rules.max_reengagement_cycles",
		"rules.reengagement_interval_days",
		"rules.cooldown",
		"rules.talentflow_freshness_days",
		"rules.accumulation_window",
		"rules.promotion_lock",
		"rules.demotion_lock",
		// Orchestrator
		"orchestrator.shards",
		"orchestrator.accumulation_window",
		"orchestrator.cooldown",
		"orchestrator.promotion_lock",
		"orchestrator.demotion_lock",
		"orchestrator.requeue_delay",
		"orchestrator.max_requeues",
		"orchestrator.persist_max_elapsed",
		// Notify
		"notify.webhook.url",
		"notify.webhook.secret",
		"notify.nats_enabled",
		// Movement sweeper
		"movement_sweeper.batch_size",
		"movement_sweeper.worker.pool_size",
		"movement_sweeper.worker.queue_size",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ReadDSN returns the read-replica database connection string.
// If ReadPort is not configured, it falls back to Port.
func (c *DatabaseConfig) ReadDSN() string {
	port := c.ReadPort
	if port == 0 {
		port = c.Port
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.ReadHost, port, c.User, c.Password, c.DBName, c.SSLMode)
}
