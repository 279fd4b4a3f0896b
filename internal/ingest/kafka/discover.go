package kafka

import (
	"context"
	"regexp"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DiscoverTopics lists the cluster's topics via the admin API and returns
// the ones whose names match pattern. No command in this repository calls
// it; the ingest consumer subscribes to the fixed topic list in its config.
func DiscoverTopics(ctx context.Context, client *kgo.Client, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	admin := kadm.NewClient(client)
	meta, err := admin.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	var topics []string
	for _, t := range meta.Topics {
		if t.Err != nil {
			continue
		}
		if re.MatchString(t.Topic) {
			topics = append(topics, t.Topic)
		}
	}
	return topics, nil
}
