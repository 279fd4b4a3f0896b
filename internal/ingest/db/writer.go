package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/metrics"
)

// Writer batches decoded BgpElems into current_routes (the latest
// announced state per peer/prefix) and route_history (every transition),
// adapted from the teacher's ParsedRoute upsert/delete pattern.
type Writer struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewWriter(pool *pgxpool.Pool, logger *zap.Logger) *Writer {
	return &Writer{pool: pool, logger: logger}
}

// FlushBatch writes a batch of elems within a single transaction: an
// announce upserts into current_routes, a withdraw deletes it; every elem
// additionally appends a row to route_history.
func (w *Writer) FlushBatch(ctx context.Context, elems []bgpelem.BgpElem) error {
	if len(elems) == 0 {
		return nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var upserted, deleted int64
	for _, e := range elems {
		switch e.ElemType {
		case bgpelem.ElemAnnounce:
			n, err := w.upsertCurrentRoute(ctx, e)
			if err != nil {
				return fmt.Errorf("upsert current route: %w", err)
			}
			upserted += n
		case bgpelem.ElemWithdraw:
			n, err := w.deleteCurrentRoute(ctx, e)
			if err != nil {
				return fmt.Errorf("delete current route: %w", err)
			}
			deleted += n
		}
		if err := w.appendHistory(ctx, e); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	dur := time.Since(start).Seconds()
	metrics.DBWriteDuration.WithLabelValues("batch").Observe(dur)
	metrics.DBRowsAffectedTotal.WithLabelValues("current_routes", "upsert").Add(float64(upserted))
	metrics.DBRowsAffectedTotal.WithLabelValues("current_routes", "delete").Add(float64(deleted))
	metrics.BatchSize.WithLabelValues("postgres").Observe(float64(len(elems)))

	return nil
}

func (w *Writer) upsertCurrentRoute(ctx context.Context, e bgpelem.BgpElem) (int64, error) {
	communitiesJSON, err := json.Marshal(e.Communities)
	if err != nil {
		return 0, fmt.Errorf("marshal communities: %w", err)
	}

	var originAsn *uint32
	if asns := e.OriginAsns(); len(asns) > 0 {
		v := asns[0].Value
		originAsn = &v
	}

	var nextHop string
	if e.NextHop != nil {
		nextHop = e.NextHop.String()
	}
	var origin string
	if e.Origin != nil {
		origin = e.Origin.String()
	}

	tag, err := w.pool.Exec(ctx, `
		INSERT INTO current_routes (peer_ip, peer_asn, prefix, path_id,
			next_hop, origin, local_pref, med, origin_asn, communities, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (peer_ip, prefix, path_id)
		DO UPDATE SET
			peer_asn    = EXCLUDED.peer_asn,
			next_hop    = EXCLUDED.next_hop,
			origin      = EXCLUDED.origin,
			local_pref  = EXCLUDED.local_pref,
			med         = EXCLUDED.med,
			origin_asn  = EXCLUDED.origin_asn,
			communities = EXCLUDED.communities,
			updated_at  = now()`,
		e.PeerIp.String(), e.PeerAsn.Value, e.Prefix.Prefix.String(), e.Prefix.PathID,
		nullableString(nextHop), nullableString(origin), e.LocalPref, e.Med, originAsn, communitiesJSON,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (w *Writer) deleteCurrentRoute(ctx context.Context, e bgpelem.BgpElem) (int64, error) {
	tag, err := w.pool.Exec(ctx,
		`DELETE FROM current_routes WHERE peer_ip = $1 AND prefix = $2 AND path_id = $3`,
		e.PeerIp.String(), e.Prefix.Prefix.String(), e.Prefix.PathID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (w *Writer) appendHistory(ctx context.Context, e bgpelem.BgpElem) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO route_history (ts, peer_ip, peer_asn, prefix, path_id, elem_type)
		VALUES (to_timestamp($1), $2, $3, $4, $5, $6)`,
		e.Timestamp, e.PeerIp.String(), e.PeerAsn.Value, e.Prefix.Prefix.String(), e.Prefix.PathID, e.ElemType.String(),
	)
	return err
}

// PurgeOlderThan deletes route_history rows past the configured retention
// window; mrtkit-ingest calls this on a periodic timer, not per-batch.
func (w *Writer) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := w.pool.Exec(ctx, `DELETE FROM route_history WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge route_history: %w", err)
	}
	n := tag.RowsAffected()
	if n > 0 {
		metrics.RoutesPurgedTotal.WithLabelValues("retention").Add(float64(n))
	}
	return n, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
