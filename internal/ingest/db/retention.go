package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetentionRunner periodically purges route_history rows older than the
// configured window, replacing the teacher's PartitionManager: that type
// created/dropped daily table partitions for a partitioned route_events
// table, a scheme this domain's simpler, unpartitioned route_history
// table has no use for. A plain DELETE with a btree index on ts is cheap
// enough at this domain's write volume.
type RetentionRunner struct {
	writer   *Writer
	days     int
	timezone string
	logger   *zap.Logger
}

func NewRetentionRunner(writer *Writer, days int, timezone string, logger *zap.Logger) *RetentionRunner {
	return &RetentionRunner{writer: writer, days: days, timezone: timezone, logger: logger}
}

// Run purges route_history once, computing the cutoff in the configured
// timezone so "30 days" matches the operator's notion of a calendar day.
func (r *RetentionRunner) Run(ctx context.Context) error {
	loc, err := time.LoadLocation(r.timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %s: %w", r.timezone, err)
	}

	cutoff := time.Now().In(loc).AddDate(0, 0, -r.days)

	n, err := r.writer.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purging route_history: %w", err)
	}

	r.logger.Info("retention purge complete", zap.Int64("rows_deleted", n), zap.Time("cutoff", cutoff))
	return nil
}
