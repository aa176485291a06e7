package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"   validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"       validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"    validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"      validate:"required"`
	Kafka     KafkaConfig     `mapstructure:"kafka"      validate:"required"`
	Paging    PagingConfig    `mapstructure:"paging"     validate:"required"`
	Task      TaskConfig      `mapstructure:"task"       validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server and logging settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format"       validate:"omitempty,oneof=json text"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains token signing and password hashing settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0,lt=44640"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0,gtfield=TokenLifetimeMinutes"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"gte=4,lte=31"`
}

// StorageConfig contains object storage and image upload settings.
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"            validate:"required"`
	Region          string `mapstructure:"region"            validate:"required"`
	Endpoint        string `mapstructure:"endpoint"          validate:"omitempty,url"`
	PublicBaseURL   string `mapstructure:"public_base_url"   validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`

	// UploadWorkers caps the per-request upload pool.
	UploadWorkers int `mapstructure:"upload_workers" validate:"gt=0,lte=32"`
	// UploadGracePeriod bounds one attach batch.
	UploadGracePeriod time.Duration `mapstructure:"upload_grace_period" validate:"gt=0"`
	MaxImageBytes     int64         `mapstructure:"max_image_bytes"     validate:"gt=0"`
	MaxImages         int           `mapstructure:"max_images"          validate:"gt=0,lte=30"`
	Thumbnails        bool          `mapstructure:"thumbnails"`
	ThumbnailWidth    int           `mapstructure:"thumbnail_width"     validate:"gt=0"`
	// ThumbnailMaxPixels skips thumbnails for sources larger than this.
	ThumbnailMaxPixels int `mapstructure:"thumbnail_max_pixels" validate:"gt=0"`

	// Circuit breaker around the object store.
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures" validate:"gt=0"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"      validate:"gt=0"`
}

// RedisConfig contains the ranking cache connection.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"           validate:"required,hostname_port"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"             validate:"gte=0"`
	RankingPrefix string `mapstructure:"ranking_prefix" validate:"required"`
}

// KafkaConfig contains the notification publisher settings.
type KafkaConfig struct {
	Brokers           []string      `mapstructure:"brokers"            validate:"required,min=1,dive,hostname_port"`
	NotificationTopic string        `mapstructure:"notification_topic" validate:"required"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"      validate:"gt=0"`
}

// PagingConfig bounds list endpoints.
type PagingConfig struct {
	DefaultSize int `mapstructure:"default_size" validate:"gt=0,ltefield=MaxSize"`
	MaxSize     int `mapstructure:"max_size"     validate:"gt=0,lte=200"`
}

// TaskConfig controls the background task runner.
type TaskConfig struct {
	WorkerCount  int           `mapstructure:"worker_count"   validate:"gt=0"`
	QueueSize    int           `mapstructure:"queue_size"     validate:"gt=0"`
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"gt=0"`
}

// RateLimitConfig controls per-user limits on write endpoints. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int `mapstructure:"burst"               validate:"gte=0"`
}

// TokenLifetime returns the access token lifetime.
func (a AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(a.TokenLifetimeMinutes) * time.Minute
}

// RefreshTokenLifetime returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenLifetime() time.Duration {
	return time.Duration(a.RefreshTokenLifetimeMinutes) * time.Minute
}
