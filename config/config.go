package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int `env:"SERVER_PORT" envDefault:"8080"`
	Database   DatabaseConfig
	Auth       AuthConfig
	Log        LogConfig
	Redis      RedisConfig
	MQ         MQConfig
	Storage    StorageConfig
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	Host     string `env:"DB_HOST,required"`
	Port     int    `env:"DB_PORT,required"`
	User     string `env:"DB_USER,required"`
	Password string `env:"DB_PASSWORD,required"`
	DBName   string `env:"DB_NAME,required"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
}

// AuthConfig carries the token signing settings. TokenTTLMinutes defaults
// to 30 when unset; an explicit zero is passed through untouched.
type AuthConfig struct {
	JWTSecret       string `env:"JWT_SECRET,required"`
	JWTAlgorithm    string `env:"JWT_ALGORITHM,required"`
	TokenTTLMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// RedisConfig enables the post view cache when Addr is set.
type RedisConfig struct {
	Addr       string `env:"REDIS_ADDR"`
	Password   string `env:"REDIS_PASSWORD"`
	DB         int    `env:"REDIS_DB" envDefault:"0"`
	TTLSeconds int    `env:"REDIS_POST_TTL_SECONDS" envDefault:"30"`
}

// MQConfig selects the activity event broker. An empty Backend disables events.
type MQConfig struct {
	Backend  string `env:"MQ_BACKEND"`
	Channel  string `env:"MQ_CHANNEL" envDefault:"postboard.activity"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

// StorageConfig selects the object storage used by the activity archiver.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"minio"`
	Minio   MinioConfig
	GCS     GCSConfig
	S3      S3Config
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
	Bucket          string `env:"GCS_BUCKET"`
}

type S3Config struct {
	Region          string `env:"S3_REGION"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	Bucket          string `env:"S3_BUCKET"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
}

// LoadConfig reads the optional dotenv file and then the process environment.
// An empty envFile falls back to ".env" when ENV=dev.
func LoadConfig(envFile string) (Config, error) {
	if envFile == "" && os.Getenv("ENV") == "dev" {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "postgres", "pgx":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return Config{}, errors.New("JWT_SECRET must not be blank")
	}
	cfg.MQ.Backend = strings.ToLower(strings.TrimSpace(cfg.MQ.Backend))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	return cfg, nil
}
