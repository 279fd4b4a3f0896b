package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/filter"
	"github.com/route-beacon/mrtkit/internal/metrics"
	"github.com/route-beacon/mrtkit/internal/rislive"
	"github.com/route-beacon/mrtkit/internal/rislive/client"
)

// RisLivePipeline batches RIS-Live elems the same way Pipeline batches
// decoded Kafka records, but owns its own reconnect loop: client.Client
// deliberately carries none (its doc comment says so), so the retry
// policy lives at the call site that actually knows about shutdown.
type RisLivePipeline struct {
	sinks         []Sink
	filter        filter.Group
	url           string
	subscribe     rislive.SubscribeParams
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	joined        atomic.Bool
}

func NewRisLivePipeline(sinks []Sink, filterGroup filter.Group, url string, subscribe rislive.SubscribeParams, batchSize, flushIntervalMs int, logger *zap.Logger) *RisLivePipeline {
	return &RisLivePipeline{
		sinks:         sinks,
		filter:        filterGroup,
		url:           url,
		subscribe:     subscribe,
		batchSize:     batchSize,
		flushInterval: time.Duration(flushIntervalMs) * time.Millisecond,
		logger:        logger,
	}
}

func (p *RisLivePipeline) IsJoined() bool { return p.joined.Load() }

// Run dials, streams, batches and flushes elems until ctx is cancelled,
// reconnecting with a fixed backoff whenever the connection drops.
func (p *RisLivePipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.runOnce(ctx); err != nil {
			p.joined.Store(false)
			p.logger.Warn("ris-live connection lost, reconnecting", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

type risMsgOrErr struct {
	msg rislive.RisMessage
	err error
}

func (p *RisLivePipeline) runOnce(ctx context.Context) error {
	c, err := client.Dial(ctx, p.url, &p.subscribe)
	if err != nil {
		return err
	}
	defer c.Close()

	p.joined.Store(true)
	defer p.joined.Store(false)

	var batch []bgpelem.BgpElem
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := p.flushAll(ctx, batch); err != nil {
			p.logger.Error("ris-live flush failed", zap.Error(err))
		}
		batch = nil
	}

	msgCh := make(chan risMsgOrErr)
	go func() {
		defer close(msgCh)
		for msg, err := range c.Messages(ctx) {
			select {
			case msgCh <- risMsgOrErr{msg, err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return nil

		case m, ok := <-msgCh:
			if !ok {
				flush(ctx)
				return nil
			}
			if m.err != nil {
				flush(ctx)
				return m.err
			}
			if m.msg.Type != rislive.ServerMsgRisMessage {
				continue
			}
			elems, err := m.msg.Elems()
			if err != nil {
				metrics.ParseErrorsTotal.WithLabelValues("rislive", "decode").Inc()
				p.logger.Warn("ris-live: failed to flatten message", zap.Error(err))
				continue
			}
			for _, e := range elems {
				metrics.ElemsProducedTotal.WithLabelValues(e.ElemType.String()).Inc()
				if p.filter.Matches(e) {
					batch = append(batch, e)
				} else {
					metrics.ElemsFilteredTotal.WithLabelValues().Inc()
				}
			}
			metrics.LastMsgTimestamp.WithLabelValues("ris_live").Set(float64(time.Now().Unix()))
			if len(batch) >= p.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (p *RisLivePipeline) flushAll(ctx context.Context, batch []bgpelem.BgpElem) error {
	metrics.BatchSize.WithLabelValues("rislive_pipeline").Observe(float64(len(batch)))
	for _, sink := range p.sinks {
		if err := sink.FlushBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}
