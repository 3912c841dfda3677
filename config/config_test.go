package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  slot_found_topic_name: "slot.found"
  tracker_events_topic_name: "tracker.events"
redis:
  host: "localhost"
  port: 6379
terminwatch:
  http_addr: ":8082"
  cron_secret: "s3cret"
  kafka_consumer_group: "watch-worker"
  worker_poll_interval_seconds: 30
  error_threshold: 10
  fetcher_mode: "fake"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "slot.found", cfg.Kafka.SlotFoundTopicName)
	require.Equal(t, "tracker.events", cfg.Kafka.TrackerEventsTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8082", cfg.TerminWatch.HTTPAddr)
	require.Equal(t, "s3cret", cfg.TerminWatch.CronSecret)
	require.Equal(t, 10, cfg.TerminWatch.ErrorThreshold)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	require.Error(t, err)
}
