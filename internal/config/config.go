package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Optimizer
	MaxIterations      int     `mapstructure:"MAX_ITERATIONS"`
	InitialTemperature float64 `mapstructure:"INITIAL_TEMPERATURE"`
	CoolingRate        float64 `mapstructure:"COOLING_RATE"`
	ParallelChains     int     `mapstructure:"PARALLEL_CHAINS"`
	AdaptiveCooling    bool    `mapstructure:"ADAPTIVE_COOLING"`
	EnableCache        bool    `mapstructure:"ENABLE_CACHE"`
	CacheSize          int     `mapstructure:"CACHE_SIZE"`
	PerChainTimeoutMs  int     `mapstructure:"PER_CHAIN_TIMEOUT_MS"`
	RefinementPasses   int     `mapstructure:"REFINEMENT_PASSES"`

	// Result cache
	ResultCacheTTLSeconds int `mapstructure:"RESULT_CACHE_TTL_SECONDS"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_ITERATIONS", 15000)
	viper.SetDefault("INITIAL_TEMPERATURE", 100.0)
	viper.SetDefault("COOLING_RATE", 0.95)
	viper.SetDefault("PARALLEL_CHAINS", 0) // 0 = min(8, logical cores)
	viper.SetDefault("ADAPTIVE_COOLING", true)
	viper.SetDefault("ENABLE_CACHE", true)
	viper.SetDefault("CACHE_SIZE", 10000)
	viper.SetDefault("PER_CHAIN_TIMEOUT_MS", 300000)
	viper.SetDefault("REFINEMENT_PASSES", 3)
	viper.SetDefault("RESULT_CACHE_TTL_SECONDS", 3600)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
