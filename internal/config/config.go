package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	DatabaseURL     string      `yaml:"database_url"`
	Redis           RedisConfig `yaml:"redis"`
	HTTPAddr        string      `yaml:"http_addr"`
	LogLevel        string      `yaml:"log_level"`
	ReservationTTL  string      `yaml:"reservation_ttl"`
	SweepInterval   string      `yaml:"sweep_interval"`
	CleanupInterval string      `yaml:"cleanup_interval"`
	EventBuffer     int         `yaml:"event_buffer"`

	ParsedTTL     time.Duration `yaml:"-"`
	ParsedSweep   time.Duration `yaml:"-"`
	ParsedCleanup time.Duration `yaml:"-"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`

	ParsedTTL time.Duration `yaml:"-"`
}

func Load(filename string) (*Config, error) {
	// .env overlay from the config file's directory, secrets stay out of yaml
	envPath := filepath.Join(filepath.Dir(filename), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: error loading .env file: %v\n", err)
	}

	cfg := &Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		ReservationTTL:  "5m",
		SweepInterval:   "30s",
		CleanupInterval: "1m",
		EventBuffer:     1024,
		Redis:           RedisConfig{TTL: "5m"},
	}

	if file, err := os.Open(filename); err == nil {
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open config file: %v", err)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	var err error
	if cfg.ParsedTTL, err = time.ParseDuration(cfg.ReservationTTL); err != nil {
		return nil, fmt.Errorf("bad reservation_ttl: %v", err)
	}
	if cfg.ParsedSweep, err = time.ParseDuration(cfg.SweepInterval); err != nil {
		return nil, fmt.Errorf("bad sweep_interval: %v", err)
	}
	if cfg.ParsedCleanup, err = time.ParseDuration(cfg.CleanupInterval); err != nil {
		return nil, fmt.Errorf("bad cleanup_interval: %v", err)
	}
	if cfg.Redis.ParsedTTL, err = time.ParseDuration(cfg.Redis.TTL); err != nil {
		return nil, fmt.Errorf("bad redis ttl: %v", err)
	}
	return cfg, nil
}
