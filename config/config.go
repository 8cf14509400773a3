package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	TrackDesk TrackDeskConfig `yaml:"trackdesk"`
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
	AuthEventsTopicName      string `yaml:"auth_events_topic_name"`
	TrackingChangedTopicName string `yaml:"tracking_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TrackDeskConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	GRPCAddr           string `yaml:"grpc_addr"`
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"` // "json" | "text"
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`

	JWTSecret              string `yaml:"jwt_secret"`
	AccessTokenTTLSeconds  int    `yaml:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int    `yaml:"refresh_token_ttl_seconds"`
	BcryptCost             int    `yaml:"bcrypt_cost"`

	// Empty disables the privileged-id admin bypass.
	PrivilegedUserID string `yaml:"privileged_user_id"`

	SessionCookieName       string `yaml:"session_cookie_name"`
	SessionIdleSeconds      int    `yaml:"session_idle_seconds"`
	SecureCookies           bool   `yaml:"secure_cookies"`
	LoginRateLimitPerMinute int    `yaml:"login_rate_limit_per_minute"`

	JanitorIntervalSeconds  int `yaml:"janitor_interval_seconds"`
	SessionRetentionSeconds int `yaml:"session_retention_seconds"`
}

// LoadConfig reads an optional .env next to the process, then the YAML file,
// expanding ${VAR} references from the environment.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal YAML")
	}

	return &config, nil
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

func (k KafkaConfig) AuthEventsTopic() string {
	if k.AuthEventsTopicName == "" {
		return "auth.events"
	}
	return k.AuthEventsTopicName
}

func (k KafkaConfig) TrackingChangedTopic() string {
	if k.TrackingChangedTopicName == "" {
		return "tracking.changed"
	}
	return k.TrackingChangedTopicName
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
