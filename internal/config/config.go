package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Upload   UploadConfig   `yaml:"upload"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	Host            string        `yaml:"host" env:"HOST"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver         string        `yaml:"driver" env:"DB_DRIVER"`
	Host           string        `yaml:"host" env:"DB_HOST"`
	Port           int           `yaml:"port" env:"DB_PORT"`
	User           string        `yaml:"user" env:"DB_USER"`
	Password       string        `yaml:"password" env:"DB_PASSWORD"`
	DBName         string        `yaml:"dbname" env:"DB_NAME"`
	SSLMode        string        `yaml:"sslmode" env:"DB_SSLMODE"`
	MongoURI       string        `yaml:"mongo_uri" env:"MONGODB_URI"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT"`
}

// StorageConfig holds image storage configuration
type StorageConfig struct {
	Driver       string `yaml:"driver" env:"STORAGE_DRIVER"`
	LocalDir     string `yaml:"local_dir" env:"STORAGE_LOCAL_DIR"`
	PublicPrefix string `yaml:"public_prefix" env:"STORAGE_PUBLIC_PREFIX"`
	Region       string `yaml:"region" env:"STORAGE_REGION"`
	Bucket       string `yaml:"bucket" env:"STORAGE_BUCKET"`
	AccessKey    string `yaml:"access_key" env:"STORAGE_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"STORAGE_SECRET_KEY"`
	// Endpoint overrides the S3 endpoint for compatible providers
	Endpoint   string `yaml:"endpoint" env:"STORAGE_ENDPOINT"`
	DisableSSL bool   `yaml:"disable_ssl" env:"STORAGE_DISABLE_SSL"`
}

// GeocoderConfig holds geocoding configuration
type GeocoderConfig struct {
	Driver   string        `yaml:"driver" env:"GEOCODER_DRIVER"`
	APIKey   string        `yaml:"api_key" env:"GOOGLE_API_KEY"`
	BaseURL  string        `yaml:"base_url" env:"GEOCODER_BASE_URL"`
	Timeout  time.Duration `yaml:"timeout" env:"GEOCODER_TIMEOUT"`
	RPS      float64       `yaml:"rps" env:"GEOCODER_RPS"`
	Burst    int           `yaml:"burst" env:"GEOCODER_BURST"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"GEOCODER_CACHE_TTL"`
	// StaticLat and StaticLng are returned by the static driver
	StaticLat float64 `yaml:"static_lat" env:"GEOCODER_STATIC_LAT"`
	StaticLng float64 `yaml:"static_lng" env:"GEOCODER_STATIC_LNG"`
}

// RedisConfig holds redis configuration. An empty address disables the
// geocode cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"JWT_KEY"`
	Issuer string        `yaml:"issuer" env:"JWT_ISSUER"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL"`
}

// UploadConfig holds image upload limits
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			DBName:         "places",
			SSLMode:        "disable",
			MongoURI:       "mongodb://localhost:27017/places?replicaSet=rs0",
			ConnectTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       "local",
			LocalDir:     "uploads/images",
			PublicPrefix: "/uploads/images",
			Region:       "us-east-1",
		},
		Geocoder: GeocoderConfig{
			Driver:    "google",
			Timeout:   5 * time.Second,
			RPS:       10,
			Burst:     10,
			CacheTTL:  24 * time.Hour,
			StaticLat: 40.7484474,
			StaticLng: -73.9871516,
		},
		JWT: JWTConfig{
			Issuer: "places-backend",
			TTL:    time.Hour,
		},
		Upload: UploadConfig{
			MaxBytes: 500_000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file, then a .env file next to the
// working directory, then environment variables. Later sources win. A
// missing YAML or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to start the server
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	switch c.Database.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage local_dir is required for the local driver")
		}
	case "s3", "minio":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Geocoder.Driver {
	case "google":
		if c.Geocoder.APIKey == "" {
			return errors.New("geocoder api_key is required for the google driver")
		}
	case "static":
	default:
		return fmt.Errorf("unknown geocoder driver %q", c.Geocoder.Driver)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload max_bytes must be positive")
	}
	return nil
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
