package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 集合服務設定 from .env
type EnvInfo struct {
	// service name, also the YAML file name
	ChatService    string
	PresenceWorker string

	ChatServicePort string

	// service yaml path
	ChatServiceYAMLPath    string
	PresenceWorkerYAMLPath string

	// service log path
	ChatServiceLogPath    string
	PresenceWorkerLogPath string
}

// EnvConfig 集合服務設定
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		}

		if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			ChatService:    getEnv("CHAT_SERVICE", "chat_service"),
			PresenceWorker: getEnv("PRESENCE_WORKER", "presence_worker"),

			ChatServicePort: os.Getenv("CHAT_SERVICE_PORT"),

			ChatServiceYAMLPath:    getEnv("CHAT_SERVICE_YAML", "./config"),
			PresenceWorkerYAMLPath: getEnv("PRESENCE_WORKER_YAML", "./config"),

			ChatServiceLogPath:    getEnv("CHAT_SERVICE_LOG", "./log/chat_service"),
			PresenceWorkerLogPath: getEnv("PRESENCE_WORKER_LOG", "./log/presence_worker"),
		}
	})

	return envConfig
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// IsLocal check run env
func IsLocal() bool {
	return env == "local"
}

// ChatDefaults default values for chat_service
func ChatDefaults(v *viper.Viper) {
	v.SetDefault("port", "8082")
	v.SetDefault("grpc_health_port", "9082")
	v.SetDefault("redis.broker", string(BrokerLocal))
	v.SetDefault("files.max_bytes", 50*1024*1024)
	v.SetDefault("kafka.topic", "chat.messages")
	v.SetDefault("rabbitmq.queue", "presence.last_seen")
	v.SetDefault("minio.url_expiry", 24*time.Hour)
	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.send_buffer", 256)
}

// PresenceWorkerDefaults default values for presence_worker
func PresenceWorkerDefaults(v *viper.Viper) {
	v.SetDefault("rabbitmq.enabled", true)
	v.SetDefault("rabbitmq.queue", "presence.last_seen")
}

// LoadConfig 加載配置, fatal on error
func LoadConfig[T any](serviceName string, configPath string, defaults ...func(*viper.Viper)) T {
	cfg, err := ReadConfig[T](serviceName, configPath, defaults...)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// ReadConfig read {configPath}/{serviceName}.yaml, expand ${ENV} placeholders and unmarshal into T
func ReadConfig[T any](serviceName string, configPath string, defaults ...func(*viper.Viper)) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, d := range defaults {
		d(v)
	}

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}

	// 替換 ${} 占位符為環境變數的值
	expandedConfig := os.ExpandEnv(string(rawConfig))
	if err := v.ReadConfig(bytes.NewBufferString(expandedConfig)); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// GetRedisSetting get redis sentinel setting from .env
func GetRedisSetting() (string, []string) {
	var (
		masterName    string
		sentinelAddrs []string
	)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		// REDIS_SENTINEL*_IP + REDIS_SENTINEL*_PORT
		if strings.HasPrefix(key, "REDIS_SENTINEL") && strings.HasSuffix(key, "_IP") {
			portKey := strings.Replace(key, "_IP", "_PORT", 1)
			port := os.Getenv(portKey)
			if port != "" {
				sentinelAddrs = append(sentinelAddrs, fmt.Sprintf("%s:%s", value, port))
			}
		}
	}

	masterName = os.Getenv("REDIS_MASTER_NAME")
	if masterName == "" {
		masterName = "mymaster"
	}

	return masterName, sentinelAddrs
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
