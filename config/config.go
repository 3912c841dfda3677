package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	TerminWatch TerminWatchConfig `yaml:"terminwatch"`
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
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	SlotFoundTopicName     string `yaml:"slot_found_topic_name"`
	TrackerEventsTopicName string `yaml:"tracker_events_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TerminWatchConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	CronSecret         string `yaml:"cron_secret"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int `yaml:"worker_lease_seconds"`

	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	FetchUserAgent      string `yaml:"fetch_user_agent"`
	ErrorThreshold      int    `yaml:"error_threshold"`

	// "http" | "fake". The fake renders deterministic booking pages for demos.
	FetcherMode string `yaml:"fetcher_mode"`

	MaxTrackersPerUser      int `yaml:"max_trackers_per_user"`
	MinCheckIntervalMinutes int `yaml:"min_check_interval_minutes"`
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
