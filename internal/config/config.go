package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Learning   LearningConfig   `mapstructure:"learning"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Hot  RedisInstanceConfig `mapstructure:"hot"`
	Warm RedisInstanceConfig `mapstructure:"warm"`
}

type RedisInstanceConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		FeedbackEvents string `mapstructure:"feedback_events"`
	} `mapstructure:"topics"`
}

type AuthConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration   `mapstructure:"token_ttl"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Default int           `mapstructure:"default"`
	Premium int           `mapstructure:"premium"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LearningConfig carries every tunable of the preference-learning engine.
type LearningConfig struct {
	UserWindowDays         int           `mapstructure:"user_window_days"`
	GlobalWindowDays       int           `mapstructure:"global_window_days"`
	MinFeedbackCount       int           `mapstructure:"min_feedback_count"`
	MaxWeight              float64       `mapstructure:"max_weight"`
	DiversityFloor         float64       `mapstructure:"diversity_floor"`
	QualityFloor           float64       `mapstructure:"quality_floor"`
	SmoothingAlpha         float64       `mapstructure:"smoothing_alpha"`
	DecayFactor            float64       `mapstructure:"decay_factor"`
	FreshnessHalfLifeDays  float64       `mapstructure:"freshness_half_life_days"`
	BiasThreshold          float64       `mapstructure:"bias_threshold"`
	GlobalRefreshInterval  time.Duration `mapstructure:"global_refresh_interval"`
	RetentionDays          int           `mapstructure:"retention_days"`
	DeprecationThreshold   float64       `mapstructure:"deprecation_threshold"`
	DeprecationMinFeedback int           `mapstructure:"deprecation_min_feedback"`
	UserRecommendations    int           `mapstructure:"user_recommendations"`
	GlobalRecommendations  int           `mapstructure:"global_recommendations"`
	SnapshotCacheTTL       time.Duration `mapstructure:"snapshot_cache_ttl"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        string `mapstructure:"port"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultLearningConfig is used by tests and by callers that construct the
// engine without going through viper.
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		UserWindowDays:         30,
		GlobalWindowDays:       7,
		MinFeedbackCount:       10,
		MaxWeight:              1.5,
		DiversityFloor:         0.3,
		QualityFloor:           0.3,
		SmoothingAlpha:         0.1,
		DecayFactor:            0.95,
		FreshnessHalfLifeDays:  30,
		BiasThreshold:          1.2,
		GlobalRefreshInterval:  24 * time.Hour,
		RetentionDays:          90,
		DeprecationThreshold:   -0.5,
		DeprecationMinFeedback: 5,
		UserRecommendations:    3,
		GlobalRecommendations:  2,
		SnapshotCacheTTL:       time.Hour,
	}
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.hot.max_retries", 3)
	viper.SetDefault("redis.hot.pool_size", 10)
	viper.SetDefault("redis.hot.timeout", "5s")
	viper.SetDefault("redis.warm.max_retries", 3)
	viper.SetDefault("redis.warm.pool_size", 5)
	viper.SetDefault("redis.warm.timeout", "10s")

	// Kafka defaults
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.feedback_events", "feedback-events")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.rate_limit.default", 1000)
	viper.SetDefault("auth.rate_limit.premium", 10000)
	viper.SetDefault("auth.rate_limit.window", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Learning defaults
	viper.SetDefault("learning.user_window_days", 30)
	viper.SetDefault("learning.global_window_days", 7)
	viper.SetDefault("learning.min_feedback_count", 10)
	viper.SetDefault("learning.max_weight", 1.5)
	viper.SetDefault("learning.diversity_floor", 0.3)
	viper.SetDefault("learning.quality_floor", 0.3)
	viper.SetDefault("learning.smoothing_alpha", 0.1)
	viper.SetDefault("learning.decay_factor", 0.95)
	viper.SetDefault("learning.freshness_half_life_days", 30)
	viper.SetDefault("learning.bias_threshold", 1.2)
	viper.SetDefault("learning.global_refresh_interval", "24h")
	viper.SetDefault("learning.retention_days", 90)
	viper.SetDefault("learning.deprecation_threshold", -0.5)
	viper.SetDefault("learning.deprecation_min_feedback", 5)
	viper.SetDefault("learning.user_recommendations", 3)
	viper.SetDefault("learning.global_recommendations", 2)
	viper.SetDefault("learning.snapshot_cache_ttl", "1h")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.port", "9090")
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
