// Package httpsrv exposes mrtkit-ingest's health, readiness, and metrics
// endpoints, adapted from the teacher's internal/http server.
package httpsrv

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SourceStatus reports whether a streaming source is actively receiving
// data: joined a Kafka consumer group, or holding an open RIS-Live socket.
type SourceStatus interface {
	IsJoined() bool
}

// DBChecker abstracts the database health check for testability.
type DBChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	srv           *http.Server
	dbChecker     DBChecker
	kafkaSource   SourceStatus
	risLiveSource SourceStatus
	logger        *zap.Logger
}

// NewServer builds the health/ready/metrics server. kafkaSource and
// risLiveSource may be nil when that source is disabled in config — a nil
// source is excluded from the readiness check rather than reported
// not_joined.
func NewServer(addr string, pool *pgxpool.Pool, kafkaSource, risLiveSource SourceStatus, logger *zap.Logger) *Server {
	s := &Server{
		kafkaSource:   kafkaSource,
		risLiveSource: risLiveSource,
		logger:        logger,
	}
	if pool != nil {
		s.dbChecker = pool
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.dbChecker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbChecker.Ping(ctx); err != nil {
			checks["postgres"] = "error"
			allOK = false
		} else {
			checks["postgres"] = "ok"
		}
	}

	if s.kafkaSource != nil {
		if s.kafkaSource.IsJoined() {
			checks["kafka_source"] = "ok"
		} else {
			checks["kafka_source"] = "not_joined"
			allOK = false
		}
	}

	if s.risLiveSource != nil {
		if s.risLiveSource.IsJoined() {
			checks["ris_live_source"] = "ok"
		} else {
			checks["ris_live_source"] = "not_joined"
			allOK = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
