// Command mrtkit-ingest runs the long-lived ingestion service: it
// consumes OpenBMP/BMP-framed records from Kafka and/or RIS-Live's
// WebSocket feed, decodes them into BgpElems, applies the configured
// filter, and writes the result to Postgres and/or a republish Kafka
// topic, exposing health and metrics over HTTP. Adapted from the
// teacher's cmd/rib-ingester, collapsing its separate state/history
// pipelines into mrtkit-ingest's single elem pipeline.
package main

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/config"
	"github.com/route-beacon/mrtkit/internal/filter"
	"github.com/route-beacon/mrtkit/internal/ingest/db"
	"github.com/route-beacon/mrtkit/internal/ingest/httpsrv"
	"github.com/route-beacon/mrtkit/internal/ingest/kafka"
	"github.com/route-beacon/mrtkit/internal/ingest/pipeline"
	"github.com/route-beacon/mrtkit/internal/metrics"
	"github.com/route-beacon/mrtkit/internal/rislive"
	"github.com/route-beacon/mrtkit/internal/warn"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	case "maintenance":
		runMaintenance()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: mrtkit-ingest <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve         Start the ingestion service")
	fmt.Println("  migrate       Run database migrations")
	fmt.Println("  maintenance   Run retention maintenance (purge old route_history rows)")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// migrationsDir returns the path to the migrations directory relative to the binary.
func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()
	warnSink := warn.NewZapSink(logger)

	logger.Info("starting mrtkit-ingest",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	filterGroup, err := buildFilterGroup(cfg.Filter)
	if err != nil {
		logger.Fatal("invalid filter config", zap.Error(err))
	}

	var pool *pgxpool.Pool
	var dbWriter *db.Writer
	if cfg.Output.Postgres.Enabled {
		p, err := db.NewPool(ctx, cfg.Output.Postgres.DSN, cfg.Output.Postgres.MaxConns, cfg.Output.Postgres.MinConns)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer p.Close()
		pool = p
		dbWriter = db.NewWriter(p, logger.Named("db.writer"))

		retention := db.NewRetentionRunner(dbWriter, cfg.Retention.Days, cfg.Retention.Timezone, logger.Named("db.retention"))
		go runRetentionLoop(ctx, retention, logger)
	}

	var kafkaProducer *kafka.Producer
	if cfg.Output.Kafka.Enabled {
		kafkaProducer, err = kafka.NewProducer(cfg.Output.Kafka.Brokers, cfg.Source.Kafka.ClientID+"-producer", cfg.Output.Kafka.Topic, nil, nil)
		if err != nil {
			logger.Fatal("failed to create output producer", zap.Error(err))
		}
		defer kafkaProducer.Close()
	}

	var sinks []pipeline.Sink
	if dbWriter != nil {
		sinks = append(sinks, dbWriter)
	}
	if kafkaProducer != nil {
		sinks = append(sinks, kafkaProducer)
	}

	var wg sync.WaitGroup
	var commitWg sync.WaitGroup

	var kafkaConsumer *kafka.Consumer
	if cfg.Source.Kafka.Enabled {
		tlsCfg, err := cfg.Source.Kafka.BuildTLSConfig()
		if err != nil {
			logger.Fatal("failed to build TLS config", zap.Error(err))
		}
		saslMech := cfg.Source.Kafka.BuildSASLMechanism()

		kafkaConsumer, err = kafka.NewConsumer(
			cfg.Source.Kafka.Brokers, cfg.Source.Kafka.Consumer.GroupID, cfg.Source.Kafka.Consumer.Topics,
			cfg.Source.Kafka.ClientID, cfg.Source.Kafka.FetchMaxBytes, tlsCfg, saslMech, logger.Named("kafka.consumer"),
		)
		if err != nil {
			logger.Fatal("failed to create source consumer", zap.Error(err))
		}
		defer kafkaConsumer.Close()

		pipe := pipeline.New(sinks, filterGroup, cfg.Source.Kafka.FrameFormat, cfg.Ingest.MaxPayloadBytes,
			cfg.Ingest.BatchSize, cfg.Ingest.FlushIntervalMs, warnSink, logger.Named("pipeline.kafka"))

		records := make(chan []*kgo.Record, cfg.Ingest.ChannelBufferSize)
		flushed := make(chan []*kgo.Record, cfg.Ingest.ChannelBufferSize)

		wg.Add(2)
		go func() { defer wg.Done(); kafkaConsumer.Run(ctx, records, flushed, &commitWg) }()
		go func() {
			defer wg.Done()
			pipe.Run(ctx, records, flushed)
			close(flushed)
		}()

		logger.Info("kafka source started",
			zap.Strings("topics", cfg.Source.Kafka.Consumer.Topics),
			zap.String("group_id", cfg.Source.Kafka.Consumer.GroupID),
		)
	}

	var risLivePipeline *pipeline.RisLivePipeline
	if cfg.Source.RisLive.Enabled {
		subscribe := rislive.SubscribeParams{
			Prefix:  cfg.Source.RisLive.Prefix,
			Peer:    cfg.Source.RisLive.Peer,
			PeerAsn: cfg.Source.RisLive.PeerAsn,
		}
		risLivePipeline = pipeline.NewRisLivePipeline(sinks, filterGroup, cfg.Source.RisLive.URL, subscribe,
			cfg.Ingest.BatchSize, cfg.Ingest.FlushIntervalMs, logger.Named("pipeline.rislive"))

		wg.Add(1)
		go func() { defer wg.Done(); risLivePipeline.Run(ctx) }()

		logger.Info("ris-live source started", zap.String("url", cfg.Source.RisLive.URL))
	}

	// kafkaConsumer/risLivePipeline are typed nil pointers when their source
	// is disabled; wrapping in the interface only when non-nil keeps the
	// server's own nil-interface exclusion check correct (a typed nil
	// pointer boxed into an interface is itself a non-nil interface value).
	var kafkaSourceStatus httpsrv.SourceStatus
	if kafkaConsumer != nil {
		kafkaSourceStatus = kafkaConsumer
	}
	var risLiveSourceStatus httpsrv.SourceStatus
	if risLivePipeline != nil {
		risLiveSourceStatus = risLivePipeline
	}

	httpServer := httpsrv.NewServer(cfg.Service.HTTPListen, pool, kafkaSourceStatus, risLiveSourceStatus, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("all sources and HTTP server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		commitWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all sources stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, some goroutines may not have finished")
	}

	logger.Info("mrtkit-ingest stopped")
}

func runRetentionLoop(ctx context.Context, r *db.RetentionRunner, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	if err := r.Run(ctx); err != nil {
		logger.Error("retention run failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				logger.Error("retention run failed", zap.Error(err))
			}
		}
	}
}

// buildFilterGroup turns the service's single-mode FilterConfig into a
// one-filter Group: unlike the CLI's -s/-S flags, the service config
// exposes one PrefixMode string, so no super+sub disjunction is needed
// here.
func buildFilterGroup(cfg config.FilterConfig) (filter.Group, error) {
	var preds []filter.Predicate

	if cfg.OriginAsn != 0 {
		preds = append(preds, filter.OriginAsnPredicate{Asn: bgp.NewAsn4(cfg.OriginAsn)})
	}
	if cfg.Prefix != "" {
		mode, err := filter.ParseMatchMode(cfg.PrefixMode)
		if err != nil {
			return nil, err
		}
		prefix, err := netip.ParsePrefix(cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("filter.prefix %q: %w", cfg.Prefix, err)
		}
		preds = append(preds, filter.PrefixPredicate{Prefix: prefix, Mode: mode})
	}
	for _, ipStr := range cfg.PeerIps {
		ip, err := netip.ParseAddr(ipStr)
		if err != nil {
			return nil, fmt.Errorf("filter.peer_ips %q: %w", ipStr, err)
		}
		preds = append(preds, filter.PeerIpPredicate{Ip: ip})
	}
	if cfg.PeerAsn != 0 {
		preds = append(preds, filter.PeerAsnPredicate{Asn: bgp.NewAsn4(cfg.PeerAsn)})
	}
	if cfg.ElemType != "" {
		var t bgpelem.ElemType
		switch cfg.ElemType {
		case "a":
			t = bgpelem.ElemAnnounce
		case "w":
			t = bgpelem.ElemWithdraw
		default:
			return nil, fmt.Errorf("filter.elem_type: must be 'a' or 'w', got %q", cfg.ElemType)
		}
		preds = append(preds, filter.ElemTypePredicate{Type: t})
	}
	if cfg.TsStart != 0 {
		preds = append(preds, filter.TsStartPredicate{Ts: cfg.TsStart})
	}
	if cfg.TsEnd != 0 {
		preds = append(preds, filter.TsEndPredicate{Ts: cfg.TsEnd})
	}
	if cfg.AsPathRegex != "" {
		re, err := regexp.Compile(cfg.AsPathRegex)
		if err != nil {
			return nil, fmt.Errorf("filter.as_path_regex: %w", err)
		}
		preds = append(preds, filter.AsPathPredicate{Re: re})
	}

	return filter.Group{filter.New(preds...)}, nil
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	logger.Info("running migrations",
		zap.String("dsn", redactDSN(cfg.Output.Postgres.DSN)),
	)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Output.Postgres.DSN, cfg.Output.Postgres.MaxConns, cfg.Output.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func runMaintenance() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	logger.Info("running retention maintenance",
		zap.Int("retention_days", cfg.Retention.Days),
		zap.String("timezone", cfg.Retention.Timezone),
	)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Output.Postgres.DSN, cfg.Output.Postgres.MaxConns, cfg.Output.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	writer := db.NewWriter(pool, logger.Named("db.writer"))
	runner := db.NewRetentionRunner(writer, cfg.Retention.Days, cfg.Retention.Timezone, logger)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("maintenance failed", zap.Error(err))
	}

	logger.Info("retention maintenance complete")
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
