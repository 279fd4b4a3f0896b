// Package pipeline decodes raw Kafka records into BgpElems, applies the
// configured filter, batches them, and flushes to the configured output
// sinks — the batch-ticker-drain shape of the teacher's internal/state
// Pipeline, simplified for a single elem stream instead of the teacher's
// Loc-RIB/Adj-RIB-In split (this domain has no adjacency-table or
// end-of-RIB bookkeeping to interleave).
package pipeline

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/bmp"
	"github.com/route-beacon/mrtkit/internal/filter"
	"github.com/route-beacon/mrtkit/internal/metrics"
	"github.com/route-beacon/mrtkit/internal/openbmp"
	"github.com/route-beacon/mrtkit/internal/warn"
)

// Sink receives a flushed batch of filtered elems. Both
// internal/ingest/db.Writer and internal/ingest/kafka.Producer implement a
// method of this shape; Pipeline fans out to every configured sink.
type Sink interface {
	FlushBatch(ctx context.Context, elems []bgpelem.BgpElem) error
}

type Pipeline struct {
	sinks           []Sink
	filter          filter.Group
	frameFormat     string
	maxPayloadBytes int
	batchSize       int
	flushInterval   time.Duration
	warn            warn.Sink
	logger          *zap.Logger
}

func New(sinks []Sink, filterGroup filter.Group, frameFormat string, maxPayloadBytes, batchSize, flushIntervalMs int, warnSink warn.Sink, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		sinks:           sinks,
		filter:          filterGroup,
		frameFormat:     frameFormat,
		maxPayloadBytes: maxPayloadBytes,
		batchSize:       batchSize,
		flushInterval:   time.Duration(flushIntervalMs) * time.Millisecond,
		warn:            warnSink,
		logger:          logger,
	}
}

// Run decodes records from the channel, batches their elems, and flushes
// on batchSize or flushInterval, whichever comes first, until records is
// closed or ctx is cancelled. Every consumed batch of Kafka records, once
// flushed, is forwarded on flushed for offset commit.
func (p *Pipeline) Run(ctx context.Context, records <-chan []*kgo.Record, flushed chan<- []*kgo.Record) {
	var batch []bgpelem.BgpElem
	var batchRecords []*kgo.Record
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batchRecords) == 0 {
			return
		}
		if len(batch) > 0 {
			if err := p.flushAll(ctx, batch); err != nil {
				p.logger.Error("flush failed", zap.Error(err))
				return
			}
		}
		select {
		case flushed <- batchRecords:
		case <-ctx.Done():
		}
		batch = nil
		batchRecords = nil
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return

		case recs, ok := <-records:
			if !ok {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				flush(shutdownCtx)
				cancel()
				return
			}
			for _, rec := range recs {
				elems := p.decode(rec.Value)
				for _, e := range elems {
					if p.filter.Matches(e) {
						batch = append(batch, e)
					} else {
						metrics.ElemsFilteredTotal.WithLabelValues().Inc()
					}
				}
				metrics.LastMsgTimestamp.WithLabelValues("kafka").Set(float64(rec.Timestamp.Unix()))
			}
			batchRecords = append(batchRecords, recs...)
			if len(batch) >= p.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (p *Pipeline) decode(raw []byte) []bgpelem.BgpElem {
	start := time.Now()
	defer func() { metrics.DecodeDuration.WithLabelValues("bmp").Observe(time.Since(start).Seconds()) }()

	bmpMsg := raw
	if p.frameFormat == "openbmp" {
		stripped, err := openbmp.DecodeFrame(raw, p.maxPayloadBytes)
		if err != nil {
			metrics.ParseErrorsTotal.WithLabelValues("openbmp", "frame").Inc()
			p.warn.Warn("openbmp: failed to strip frame", zap.Error(err))
			return nil
		}
		bmpMsg = stripped
	}

	msg, err := bmp.Decode(bmpMsg)
	if err != nil {
		metrics.ParseErrorsTotal.WithLabelValues("bmp", "decode").Inc()
		p.warn.Warn("bmp: failed to decode message", zap.Error(err))
		return nil
	}

	rm, ok := msg.Body.(bmp.RouteMonitoringMessage)
	if !ok {
		return nil
	}

	elems := bgpelem.FromUpdate(rm.Peer.Timestamp, rm.Peer.Addr, rm.Peer.Asn, rm.Update)
	for _, e := range elems {
		metrics.ElemsProducedTotal.WithLabelValues(e.ElemType.String()).Inc()
	}
	return elems
}

func (p *Pipeline) flushAll(ctx context.Context, batch []bgpelem.BgpElem) error {
	metrics.BatchSize.WithLabelValues("pipeline").Observe(float64(len(batch)))
	for _, sink := range p.sinks {
		if err := sink.FlushBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}
