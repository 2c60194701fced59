package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Store    StoreConfig    `yaml:"store"`
	GTL      GTLConfig      `yaml:"gtl"`
	Admin    AdminConfig    `yaml:"admin"`
	Inquiry  InquiryConfig  `yaml:"inquiry"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentChangedTopicName string `yaml:"shipment_changed_topic_name"`
	InquiryTopicName         string `yaml:"inquiry_topic_name"`
	// false: no change events are published and no eviction consumer runs.
	Enabled bool `yaml:"enabled"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StoreConfig struct {
	Backend        string `yaml:"backend"` // "redis" | "postgres" | "memory"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GTLConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	CurrentShipmentTTLSeconds int `yaml:"current_shipment_ttl_seconds"`

	TrackRateLimitPerMinute   int `yaml:"track_rate_limit_per_minute"`
	InquiryRateLimitPerMinute int `yaml:"inquiry_rate_limit_per_minute"`

	// Только за доверенным прокси: иначе клиент сам выбирает себе X-Forwarded-For.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type AdminConfig struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"` // argon2id PHC string, see cmd/gtl-passwd
	// 0 keeps sessions until logout.
	SessionTTLSeconds int `yaml:"session_ttl_seconds"`
}

type InquiryConfig struct {
	WhatsAppNumber    string `yaml:"whatsapp_number"`
	ResetAfterSeconds int    `yaml:"reset_after_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}
