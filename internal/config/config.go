// Package config loads mrtkit-ingest's layered configuration: defaults,
// then an optional YAML file, then environment variable overrides, the
// same three-tier order the teacher's ingestion config used.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type Config struct {
	Service   ServiceConfig   `koanf:"service"`
	Source    SourceConfig    `koanf:"source"`
	Output    OutputConfig    `koanf:"output"`
	Filter    FilterConfig    `koanf:"filter"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Retention RetentionConfig `koanf:"retention"`
	RTR       RTRConfig       `koanf:"rtr"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// SourceConfig names every feed mrtkit-ingest can decode from: a Kafka
// topic carrying OpenBMP-framed or bare BMP payloads, and/or a RIS-Live
// WebSocket upstream. Both may be enabled at once; their decoded elems
// are merged before filtering and output.
type SourceConfig struct {
	Kafka   KafkaSourceConfig   `koanf:"kafka"`
	RisLive RisLiveSourceConfig `koanf:"ris_live"`
}

type KafkaSourceConfig struct {
	Enabled       bool           `koanf:"enabled"`
	Brokers       []string       `koanf:"brokers"`
	ClientID      string         `koanf:"client_id"`
	TLS           TLSConfig      `koanf:"tls"`
	SASL          SASLConfig     `koanf:"sasl"`
	Consumer      ConsumerConfig `koanf:"consumer"`
	FetchMaxBytes int32          `koanf:"fetch_max_bytes"`
	// FrameFormat selects how to strip the transport framing before
	// handing payload bytes to the BMP decoder: "openbmp" or "raw" (bare
	// BMP messages, one per Kafka record).
	FrameFormat string `koanf:"frame_format"`
}

type RisLiveSourceConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Prefix  string `koanf:"prefix"`
	Peer    string `koanf:"peer"`
	PeerAsn string `koanf:"peer_asn"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

type ConsumerConfig struct {
	GroupID string   `koanf:"group_id"`
	Topics  []string `koanf:"topics"`
}

// OutputConfig names where decoded, filtered elems go: a Kafka topic (JSON,
// one elem per record) and/or a Postgres materialized view of current
// routes plus history.
type OutputConfig struct {
	Kafka    KafkaOutputConfig `koanf:"kafka"`
	Postgres PostgresConfig    `koanf:"postgres"`
}

type KafkaOutputConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type PostgresConfig struct {
	Enabled  bool   `koanf:"enabled"`
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// FilterConfig mirrors the CLI's filter flag surface (§6) so the same
// predicates can be applied by the long-running ingestion service, not
// just the one-shot CLI.
type FilterConfig struct {
	OriginAsn   uint32   `koanf:"origin_asn"`
	Prefix      string   `koanf:"prefix"`
	PrefixMode  string   `koanf:"prefix_mode"`
	PeerIps     []string `koanf:"peer_ips"`
	PeerAsn     uint32   `koanf:"peer_asn"`
	ElemType    string   `koanf:"elem_type"`
	TsStart     float64  `koanf:"ts_start"`
	TsEnd       float64  `koanf:"ts_end"`
	AsPathRegex string   `koanf:"as_path_regex"`
}

type IngestConfig struct {
	BatchSize             int  `koanf:"batch_size"`
	FlushIntervalMs       int  `koanf:"flush_interval_ms"`
	ChannelBufferSize     int  `koanf:"channel_buffer_size"`
	MaxPayloadBytes       int  `koanf:"max_payload_bytes"`
	StoreRawBytes         bool `koanf:"store_raw_bytes"`
	StoreRawBytesCompress bool `koanf:"store_raw_bytes_compress"`
}

type RetentionConfig struct {
	Days     int    `koanf:"days"`
	Timezone string `koanf:"timezone"`
}

// RTRConfig names an RPKI-to-Router cache. Validate requires CacheAddr
// when Enabled is set; mrtkit-ingest reads nothing else from this block,
// and decoded elems carry no origin-validation state.
type RTRConfig struct {
	Enabled   bool   `koanf:"enabled"`
	CacheAddr string `koanf:"cache_addr"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: MRTKIT_INGEST_SOURCE__KAFKA__BROKERS -> source.kafka.brokers
	if err := k.Load(env.Provider("MRTKIT_INGEST_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "MRTKIT_INGEST_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "mrtkit-ingest-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Source: SourceConfig{
			Kafka: KafkaSourceConfig{
				ClientID:      "mrtkit-ingest",
				FetchMaxBytes: 52428800,
				FrameFormat:   "openbmp",
				Consumer: ConsumerConfig{
					GroupID: "mrtkit-ingest",
				},
			},
			RisLive: RisLiveSourceConfig{
				URL: "wss://ris-live.ripe.net/v1/ws/",
			},
		},
		Output: OutputConfig{
			Postgres: PostgresConfig{
				MaxConns: 20,
				MinConns: 2,
			},
		},
		Filter: FilterConfig{
			PrefixMode: "exact",
		},
		Ingest: IngestConfig{
			BatchSize:             1000,
			FlushIntervalMs:       200,
			ChannelBufferSize:     16,
			MaxPayloadBytes:       16777216,
			StoreRawBytesCompress: true,
		},
		Retention: RetentionConfig{
			Days:     30,
			Timezone: "UTC",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Source.Kafka.Brokers) == 1 && strings.Contains(cfg.Source.Kafka.Brokers[0], ",") {
		cfg.Source.Kafka.Brokers = strings.Split(cfg.Source.Kafka.Brokers[0], ",")
	}
	if len(cfg.Source.Kafka.Consumer.Topics) == 1 && strings.Contains(cfg.Source.Kafka.Consumer.Topics[0], ",") {
		cfg.Source.Kafka.Consumer.Topics = strings.Split(cfg.Source.Kafka.Consumer.Topics[0], ",")
	}
	if len(cfg.Filter.PeerIps) == 1 && strings.Contains(cfg.Filter.PeerIps[0], ",") {
		cfg.Filter.PeerIps = strings.Split(cfg.Filter.PeerIps[0], ",")
	}
	if len(cfg.Output.Kafka.Brokers) == 1 && strings.Contains(cfg.Output.Kafka.Brokers[0], ",") {
		cfg.Output.Kafka.Brokers = strings.Split(cfg.Output.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.Source.Kafka.Enabled && !c.Source.RisLive.Enabled {
		return fmt.Errorf("config: at least one of source.kafka.enabled or source.ris_live.enabled must be true")
	}
	if c.Source.Kafka.Enabled {
		if len(c.Source.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: source.kafka.brokers is required when source.kafka.enabled")
		}
		if c.Source.Kafka.Consumer.GroupID == "" {
			return fmt.Errorf("config: source.kafka.consumer.group_id is required")
		}
		if len(c.Source.Kafka.Consumer.Topics) == 0 {
			return fmt.Errorf("config: source.kafka.consumer.topics is required")
		}
		if c.Source.Kafka.FetchMaxBytes <= 0 {
			return fmt.Errorf("config: source.kafka.fetch_max_bytes must be > 0 (got %d)", c.Source.Kafka.FetchMaxBytes)
		}
		switch c.Source.Kafka.FrameFormat {
		case "openbmp", "raw":
		default:
			return fmt.Errorf("config: source.kafka.frame_format must be %q or %q (got %q)", "openbmp", "raw", c.Source.Kafka.FrameFormat)
		}
	}
	if c.Source.RisLive.Enabled && c.Source.RisLive.URL == "" {
		return fmt.Errorf("config: source.ris_live.url is required when source.ris_live.enabled")
	}
	if !c.Output.Kafka.Enabled && !c.Output.Postgres.Enabled {
		return fmt.Errorf("config: at least one of output.kafka.enabled or output.postgres.enabled must be true")
	}
	if c.Output.Kafka.Enabled && c.Output.Kafka.Topic == "" {
		return fmt.Errorf("config: output.kafka.topic is required when output.kafka.enabled")
	}
	if c.Output.Kafka.Enabled && len(c.Output.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: output.kafka.brokers is required when output.kafka.enabled")
	}
	if c.Output.Postgres.Enabled {
		if c.Output.Postgres.DSN == "" {
			return fmt.Errorf("config: output.postgres.dsn is required when output.postgres.enabled")
		}
		if c.Output.Postgres.MaxConns <= 0 {
			return fmt.Errorf("config: output.postgres.max_conns must be > 0 (got %d)", c.Output.Postgres.MaxConns)
		}
		if c.Output.Postgres.MinConns < 0 {
			return fmt.Errorf("config: output.postgres.min_conns must be >= 0 (got %d)", c.Output.Postgres.MinConns)
		}
	}
	if c.Ingest.FlushIntervalMs <= 0 {
		return fmt.Errorf("config: ingest.flush_interval_ms must be > 0 (got %d)", c.Ingest.FlushIntervalMs)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("config: ingest.batch_size must be > 0 (got %d)", c.Ingest.BatchSize)
	}
	if c.Ingest.ChannelBufferSize <= 0 {
		return fmt.Errorf("config: ingest.channel_buffer_size must be > 0 (got %d)", c.Ingest.ChannelBufferSize)
	}
	if c.Ingest.MaxPayloadBytes <= 0 {
		return fmt.Errorf("config: ingest.max_payload_bytes must be > 0 (got %d)", c.Ingest.MaxPayloadBytes)
	}
	if c.Source.Kafka.Enabled && int32(c.Ingest.MaxPayloadBytes) > c.Source.Kafka.FetchMaxBytes {
		return fmt.Errorf("config: ingest.max_payload_bytes (%d) exceeds source.kafka.fetch_max_bytes (%d); messages larger than fetch_max_bytes will be dropped by the broker",
			c.Ingest.MaxPayloadBytes, c.Source.Kafka.FetchMaxBytes)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("config: retention.days must be > 0 (got %d)", c.Retention.Days)
	}
	if _, err := time.LoadLocation(c.Retention.Timezone); err != nil {
		return fmt.Errorf("config: retention.timezone is invalid: %w", err)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.RTR.Enabled && c.RTR.CacheAddr == "" {
		return fmt.Errorf("config: rtr.cache_addr is required when rtr.enabled")
	}
	return nil
}

// BuildTLSConfig creates a *tls.Config from the Kafka TLS settings. Returns nil if TLS is disabled.
func (k *KafkaSourceConfig) BuildTLSConfig() (*tls.Config, error) {
	if !k.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if k.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(k.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if k.TLS.CertFile != "" && k.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(k.TLS.CertFile, k.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the Kafka SASL settings. Returns nil if SASL is disabled.
func (k *KafkaSourceConfig) BuildSASLMechanism() sasl.Mechanism {
	if !k.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(k.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: k.SASL.Username, Pass: k.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}
