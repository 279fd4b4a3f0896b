package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Source: SourceConfig{
			Kafka: KafkaSourceConfig{
				Enabled:       true,
				Brokers:       []string{"localhost:9092"},
				FetchMaxBytes: 52428800,
				FrameFormat:   "openbmp",
				Consumer:      ConsumerConfig{GroupID: "g1", Topics: []string{"t1"}},
			},
		},
		Output: OutputConfig{
			Postgres: PostgresConfig{
				Enabled:  true,
				DSN:      "postgres://localhost/test",
				MaxConns: 10,
				MinConns: 2,
			},
		},
		Ingest: IngestConfig{
			BatchSize:         1000,
			FlushIntervalMs:   200,
			ChannelBufferSize: 16,
			MaxPayloadBytes:   1024,
		},
		Retention: RetentionConfig{
			Days:     30,
			Timezone: "UTC",
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoSourceEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kafka.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no source is enabled")
	}
}

func TestValidate_RisLiveAloneIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kafka.Enabled = false
	cfg.Source.RisLive = RisLiveSourceConfig{Enabled: true, URL: "wss://ris-live.ripe.net/v1/ws/"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config with ris_live-only source: %v", err)
	}
}

func TestValidate_NoBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kafka.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty brokers")
	}
}

func TestValidate_NoOutputEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Postgres.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no output is enabled")
	}
}

func TestValidate_NoDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Postgres.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestValidate_NoGroupID(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kafka.Consumer.GroupID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty group_id")
	}
}

func TestValidate_NoTopics(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kafka.Consumer.Topics = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty topics")
	}
}

func TestValidate_BadFrameFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kafka.FrameFormat = "weird"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unrecognized frame_format")
	}
}

func TestValidate_FlushIntervalZero(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.FlushIntervalMs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for flush_interval_ms = 0")
	}
}

func TestValidate_BatchSizeZero(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for batch_size = 0")
	}
}

func TestValidate_ChannelBufferSizeZero(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.ChannelBufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for channel_buffer_size = 0")
	}
}

func TestValidate_RetentionDaysZero(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Days = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for retention.days = 0")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func TestValidate_InvalidTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Timezone = "Not/A/Real/Zone"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestValidate_ValidTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Timezone = "America/New_York"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_RTREnabledRequiresCacheAddr(t *testing.T) {
	cfg := validConfig()
	cfg.RTR = RTRConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for rtr.enabled without cache_addr")
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
source:
  kafka:
    enabled: true
    brokers:
      - "localhost:9092"
    consumer:
      group_id: "g1"
      topics:
        - "t1"
output:
  postgres:
    enabled: true
    dsn: "postgres://localhost/test"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideDSN(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTKIT_INGEST_OUTPUT__POSTGRES__DSN", "postgres://envhost/envdb")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Postgres.DSN != "postgres://envhost/envdb" {
		t.Errorf("expected DSN from env, got %q", cfg.Output.Postgres.DSN)
	}
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTKIT_INGEST_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvEmptyGroupIDFailsValidation(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTKIT_INGEST_SOURCE__KAFKA__CONSUMER__GROUP_ID", "")

	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error for empty group_id via env")
	}
}
