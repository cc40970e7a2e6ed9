package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port           string          `mapstructure:"port"`
	GRPCHealthPort string          `mapstructure:"grpc_health_port"`
	MongoSQL       DatabaseConfig  `mapstructure:"mongo"`
	Redis          RedisConfig     `mapstructure:"redis"`
	PostgreSQL     DatabaseConfig  `mapstructure:"pg"`
	RabbitMQ       RabbitMQConfig  `mapstructure:"rabbitmq"`
	KafKa          KafkaConfig     `mapstructure:"kafka"`
	MinIO          MinIOConfig     `mapstructure:"minio"`
	Files          FileConfig      `mapstructure:"files"`
	Auth           AuthConfig      `mapstructure:"auth"`
	WebSocket      WebSocketConfig `mapstructure:"websocket"`
}

// PresenceWorker definition presence_worker YAML structure
type PresenceWorker struct {
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
}

// BrokerMode how topics fan out
type BrokerMode string

const (
	// BrokerLocal in process fan-out only
	BrokerLocal BrokerMode = "local"
	// BrokerRedis fan-out through redis pub/sub
	BrokerRedis BrokerMode = "redis"
)

// RedisConfig definition redis setting
type RedisConfig struct {
	Broker  BrokerMode `mapstructure:"broker"`
	Addr    string     `mapstructure:"addr"`
	RedisDB int        `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RabbitMQConfig definition rabbitmq setting
type RabbitMQConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	IP            string `mapstructure:"ip"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Queue         string `mapstructure:"queue"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryInterval int    `mapstructure:"retry_interval"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryCount    int      `mapstructure:"retry_count"`
	RetryInterval int      `mapstructure:"retry_interval"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	BucketName    string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval int           `mapstructure:"retry_interval"`
}

// FileConfig attachment limits
type FileConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// AuthConfig websocket auth
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WebSocketConfig connection tuning
type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}
