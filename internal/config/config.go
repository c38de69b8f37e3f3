package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo = "mongo"
	StoreMySQL = "mysql"

	JoinPassive = "passive"
	JoinActive  = "active"

	// NetworkLocal is the in-process network. Its groups and messages live
	// only as long as the process.
	NetworkLocal = "local"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// MySQL Configuration, used when Store.Backend is "mysql"
	Database DatabaseConfig `json:"database"`

	// MongoDB Configuration, the default durable store
	MongoDB MongoDBConfig `json:"mongodb"`

	// Redis Configuration, fast cache for room -> group ids
	Redis RedisConfig `json:"redis"`

	Store StoreConfig `json:"store"`

	// Messaging network configuration
	Network NetworkConfig `json:"network"`

	Chat ChatConfig `json:"chat"`

	Auth AuthConfig `json:"auth"`

	// System identity, the admin-capable actor used for provisioning groups
	System SystemConfig `json:"system"`

	Roster RosterConfig `json:"roster"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host         string `json:"host"`
	HTTPPort     string `json:"http_port"`
	GRPCPort     string `json:"grpc_port"`
	ReadTimeout  int    `json:"read_timeout"`  // seconds
	WriteTimeout int    `json:"write_timeout"` // seconds
	Environment  string `json:"environment"`   // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

type MongoDBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type StoreConfig struct {
	Backend string `json:"backend"` // mongo or mysql
}

type NetworkConfig struct {
	Env              string        `json:"env"` // only local is supported
	PropagationDelay time.Duration `json:"propagation_delay"`
}

// ChatConfig holds the session, group and join tunables.
type ChatConfig struct {
	SessionTTL      time.Duration `json:"session_ttl"`
	SweepInterval   time.Duration `json:"sweep_interval"`
	GroupCacheTTL   time.Duration `json:"group_cache_ttl"`
	PropagationWait time.Duration `json:"propagation_wait"`
	JoinPolicy      string        `json:"join_policy"` // passive or active
	JoinRetries     int           `json:"join_retries"`
	JoinRetryDelay  time.Duration `json:"join_retry_delay"`
	JoinBackoffCap  time.Duration `json:"join_backoff_cap"`
	JoinExponential bool          `json:"join_exponential"`
	RequestDelay    time.Duration `json:"request_delay"`
	HistoryLimit    int           `json:"history_limit"`
}

type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

type SystemConfig struct {
	WalletAddress string `json:"wallet_address"`
	SigningSeed   string `json:"-"` // hex, 32 bytes
	WalletSecret  string `json:"-"` // master secret for in-app user wallets
}

type RosterConfig struct {
	Workers           int `json:"workers"`
	ChannelBufferSize int `json:"channel_buffer_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, console
	OutputPath string `json:"output_path"` // stdout, stderr, or file path
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			HTTPPort:     getEnvOrDefault("HTTP_PORT", "8080"),
			GRPCPort:     getEnvOrDefault("GRPC_PORT", "7003"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:  getEnvOrDefault("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnvOrDefault("MYSQL_HOST", "localhost"),
			Port:         getEnvOrDefault("MYSQL_PORT", "3306"),
			Username:     getEnvOrDefault("MYSQL_USERNAME", "roomchat"),
			Password:     getEnvOrDefault("MYSQL_PASSWORD", "roomchat123"),
			DatabaseName: getEnvOrDefault("MYSQL_DATABASE", "roomchat"),
			MaxOpenConns: getEnvInt("MYSQL_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("MYSQL_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Username: getEnvOrDefault("MONGO_USERNAME", ""),
			Password: getEnvOrDefault("MONGO_PASSWORD", ""),
			Database: getEnvOrDefault("MONGO_DATABASE", "roomchat"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Store: StoreConfig{
			Backend: getEnvOrDefault("STORE_BACKEND", StoreMongo),
		},
		Network: NetworkConfig{
			Env:              getEnvOrDefault("XMTP_ENV", NetworkLocal),
			PropagationDelay: getEnvDuration("XMTP_PROPAGATION_DELAY", 0),
		},
		Chat: ChatConfig{
			SessionTTL:      getEnvDuration("CHAT_SESSION_TTL", time.Hour),
			SweepInterval:   getEnvDuration("CHAT_SWEEP_INTERVAL", 10*time.Minute),
			GroupCacheTTL:   getEnvDuration("CHAT_GROUP_CACHE_TTL", 24*time.Hour),
			PropagationWait: getEnvDuration("CHAT_PROPAGATION_WAIT", 2*time.Second),
			JoinPolicy:      getEnvOrDefault("CHAT_JOIN_POLICY", JoinActive),
			JoinRetries:     getEnvInt("CHAT_JOIN_RETRIES", 3),
			JoinRetryDelay:  getEnvDuration("CHAT_JOIN_RETRY_DELAY", 3*time.Second),
			JoinBackoffCap:  getEnvDuration("CHAT_JOIN_BACKOFF_CAP", 5*time.Second),
			JoinExponential: getEnvOrDefault("CHAT_JOIN_EXPONENTIAL", "false") == "true",
			RequestDelay:    getEnvDuration("CHAT_REQUEST_DELAY", time.Second),
			HistoryLimit:    getEnvInt("CHAT_HISTORY_LIMIT", 100),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		System: SystemConfig{
			WalletAddress: getEnvOrDefault("SYSTEM_WALLET_ADDRESS", ""),
			SigningSeed:   getEnvOrDefault("SYSTEM_SIGNING_SEED", ""),
			WalletSecret:  getEnvOrDefault("WALLET_MASTER_SECRET", ""),
		},
		Roster: RosterConfig{
			Workers:           getEnvInt("ROSTER_WORKERS", 4),
			ChannelBufferSize: getEnvInt("ROSTER_BUFFER", 256),
		},
		Logging: LoggingConfig{
			Level:      getEnvOrDefault("LOG_LEVEL", "info"),
			Format:     getEnvOrDefault("LOG_FORMAT", "console"),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
		},
	}
}

// Validate rejects settings the chat components cannot run with.
func (cfg *Config) Validate() error {
	switch cfg.Store.Backend {
	case StoreMongo, StoreMySQL:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.Network.Env != NetworkLocal {
		return fmt.Errorf("network env %q is not supported; only %q is available", cfg.Network.Env, NetworkLocal)
	}
	switch cfg.Chat.JoinPolicy {
	case JoinPassive, JoinActive:
	default:
		return fmt.Errorf("unknown join policy %q", cfg.Chat.JoinPolicy)
	}
	if cfg.Chat.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if cfg.Chat.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if cfg.Chat.JoinRetries < 0 {
		return fmt.Errorf("join retries cannot be negative")
	}
	if cfg.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	m := cfg.MongoDB
	if m.Username == "" {
		return fmt.Sprintf("mongodb://%s:%s/%s", m.Host, m.Port, m.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
