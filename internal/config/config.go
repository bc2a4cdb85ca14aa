package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIServerConfig holds the HTTP API server settings.
type APIServerConfig struct {
	Host string     `mapstructure:"HOST"`
	Port string     `mapstructure:"PORT"`
	CORS CORSConfig `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string          `mapstructure:"APP_NAME"`
	AppVersion string          `mapstructure:"APP_VERSION"`
	Env        string          `mapstructure:"ENV"`
	LogLevel   string          `mapstructure:"LOG_LEVEL"`
	APIServer  APIServerConfig `mapstructure:"API_SERVER"`
	Kafka      KafkaConfig     `mapstructure:"KAFKA"`
	Database   DatabaseConfig  `mapstructure:"DATABASE"`
	Redis      RedisConfig     `mapstructure:"REDIS"`
	Realtime   RealtimeConfig  `mapstructure:"REALTIME"`
	Functions  FunctionsConfig `mapstructure:"FUNCTIONS"`
	Auth       AuthConfig      `mapstructure:"AUTH"`
	WebSocket  WebSocketConfig `mapstructure:"WEBSOCKET"`
	Community  CommunityConfig `mapstructure:"COMMUNITY"`
	Session    SessionConfig   `mapstructure:"SESSION"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"BROKERS"`
	ClientID         string   `mapstructure:"CLIENT_ID"`
	Protocol         string   `mapstructure:"PROTOCOL"`
	ChangesTopic     string   `mapstructure:"CHANGES_TOPIC"`      // gateway change events, fanned out to every API instance
	SideEffectsTopic string   `mapstructure:"SIDE_EFFECTS_TOPIC"` // email and other fire-and-forget functions
	ConsumerGroup    string   `mapstructure:"CONSUMER_GROUP"`     // prefix; each instance appends a unique suffix
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
	// Path is only used by the sqlite type.
	Path string `mapstructure:"PATH"`
}

// RealtimeConfig selects how gateway change events reach subscribers.
type RealtimeConfig struct {
	Driver        string `mapstructure:"DRIVER"` // "memory", "redis", "kafka"
	BufferSize    int    `mapstructure:"BUFFER_SIZE"`
	ChannelPrefix string `mapstructure:"CHANNEL_PREFIX"`
}

// FunctionsConfig configures side-effect invocation (email delivery, AI completion).
type FunctionsConfig struct {
	Driver  string        `mapstructure:"DRIVER"` // "http" or "kafka"
	BaseURL string        `mapstructure:"BASE_URL"`
	APIKey  string        `mapstructure:"API_KEY"`
	Timeout time.Duration `mapstructure:"TIMEOUT"`
}

// AuthConfig holds configuration for authentication (e.g., JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// CommunityConfig holds the community gate settings.
type CommunityConfig struct {
	InviteTTL time.Duration `mapstructure:"INVITE_TTL"`
}

// SessionConfig controls how long per-user sessions stay loaded.
type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"IDLE_TIMEOUT"`
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if present, is loaded into the process
// environment first so that it takes part in the env overrides.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("APP_NAME", "Devotion")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8081")
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300) // 5 minutes

	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "devotion-client")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")
	v.SetDefault("KAFKA.CHANGES_TOPIC", "devotion-changes")
	v.SetDefault("KAFKA.SIDE_EFFECTS_TOPIC", "devotion-side-effects")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "devotion-api")

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "devotion_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.PATH", "devotion.db")

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("REALTIME.DRIVER", "memory")
	v.SetDefault("REALTIME.BUFFER_SIZE", 256)
	v.SetDefault("REALTIME.CHANNEL_PREFIX", "devotion:changes:")

	v.SetDefault("FUNCTIONS.DRIVER", "http")
	v.SetDefault("FUNCTIONS.BASE_URL", "http://localhost:54321/functions/v1")
	v.SetDefault("FUNCTIONS.API_KEY", "")
	v.SetDefault("FUNCTIONS.TIMEOUT", 15*time.Second)

	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 15*time.Minute)

	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 512)

	v.SetDefault("COMMUNITY.INVITE_TTL", 7*24*time.Hour)

	v.SetDefault("SESSION.IDLE_TIMEOUT", 15*time.Minute)
	v.SetDefault("SESSION.SWEEP_INTERVAL", time.Minute)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// API_SERVER_PORT overrides API_SERVER.PORT.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// Defaults are enough to boot without a file.
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
