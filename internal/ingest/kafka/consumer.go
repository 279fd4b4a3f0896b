// Package kafka wraps franz-go for mrtkit-ingest's Kafka source and output
// topic, adapted from the teacher's single-consumer-group StateConsumer.
package kafka

import (
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"
)

// Consumer pulls raw framed records (OpenBMP-framed or bare BMP, per
// SourceConfig.Kafka.FrameFormat) off a consumer group, the same manual
// offset-commit shape as the teacher's StateConsumer: records are handed to
// the caller for decoding, and only marked committed once the caller
// confirms the decoded elems were flushed downstream.
type Consumer struct {
	client *kgo.Client
	logger *zap.Logger
	joined atomic.Bool
}

func NewConsumer(brokers []string, groupID string, topics []string, clientID string,
	fetchMaxBytes int32, tlsCfg *tls.Config, saslMech sasl.Mechanism, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{logger: logger}

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ClientID(clientID),
		kgo.FetchMaxBytes(fetchMaxBytes),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, _ map[string][]int32) {
			c.joined.Store(true)
			logger.Info("consumer: partitions assigned")
		}),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, _ map[string][]int32) {
			if err := cl.CommitMarkedOffsets(ctx); err != nil {
				logger.Error("consumer: commit on revoke failed", zap.Error(err))
			}
			c.joined.Store(false)
			logger.Info("consumer: partitions revoked")
		}),
		kgo.OnPartitionsLost(func(_ context.Context, _ *kgo.Client, _ map[string][]int32) {
			c.joined.Store(false)
			logger.Info("consumer: partitions lost")
		}),
	}

	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	c.client = client
	return c, nil
}

// Run fetches records and sends them to the records channel, and drains
// flushed batches by marking and committing their offsets — the split
// mirrors the teacher's hand-off between fetch loop and commit goroutine so
// a batch is only acknowledged to Kafka once it is durably written.
func (c *Consumer) Run(ctx context.Context, records chan<- []*kgo.Record, flushed <-chan []*kgo.Record, commitWg *sync.WaitGroup) {
	commitWg.Add(1)
	go func() {
		defer commitWg.Done()
		for recs := range flushed {
			for _, r := range recs {
				c.client.MarkCommitRecords(r)
			}
			commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.client.CommitMarkedOffsets(commitCtx); err != nil {
				c.logger.Error("consumer: commit offsets failed", zap.Error(err))
			}
			cancel()
		}
	}()

	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				c.logger.Error("consumer: fetch error",
					zap.String("topic", e.Topic),
					zap.Int32("partition", e.Partition),
					zap.Error(e.Err),
				)
			}
		}

		var batch []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			batch = append(batch, r)
		})

		if len(batch) > 0 {
			select {
			case records <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Consumer) IsJoined() bool {
	return c.joined.Load()
}

func (c *Consumer) Close() {
	c.client.Close()
}
