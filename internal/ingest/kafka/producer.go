package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"

	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/metrics"
)

// Producer publishes decoded, filtered elems (one JSON document per record)
// to OutputConfig.Kafka.Topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

func NewProducer(brokers []string, clientID, topic string, tlsCfg *tls.Config, saslMech sasl.Mechanism) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
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
	return &Producer{client: client, topic: topic}, nil
}

// Produce publishes a batch of JSON-encoded elem documents keyed by nothing
// in particular — mrtkit-ingest has no partitioning requirement across
// elems of the same batch. Blocks for each record's delivery report and
// returns the first error encountered.
func (p *Producer) Produce(ctx context.Context, docs [][]byte) error {
	var firstErr error
	var pending int
	done := make(chan error, len(docs))

	for _, doc := range docs {
		pending++
		p.client.Produce(ctx, &kgo.Record{Topic: p.topic, Value: doc}, func(_ *kgo.Record, err error) {
			done <- err
		})
	}

	for i := 0; i < pending; i++ {
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FlushBatch JSON-encodes each elem and publishes it, satisfying
// pipeline.Sink alongside internal/ingest/db.Writer.
func (p *Producer) FlushBatch(ctx context.Context, elems []bgpelem.BgpElem) error {
	docs := make([][]byte, 0, len(elems))
	for _, e := range elems {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal elem: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := p.Produce(ctx, docs); err != nil {
		return err
	}
	metrics.OutputMessagesTotal.WithLabelValues(p.topic).Add(float64(len(docs)))
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
