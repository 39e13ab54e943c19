package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"

	"github.com/i474232898/astroforecast/internal/weather"
)

// streamMaxLen caps the values stream; trimming is approximate.
const streamMaxLen = 1000

// StreamAdder is the subset of *redis.Client used by Publisher.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends every tick report to a Redis stream for other hosts.
type Publisher struct {
	client StreamAdder
	stream string
	logger *log.Logger
}

// NewPublisher creates a publisher writing to stream.
func NewPublisher(client StreamAdder, stream string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{client: client, stream: stream, logger: logger.WithPrefix("redis")}
}

// Publish writes report as a single "data" field alongside its status.
func (p *Publisher) Publish(ctx context.Context, report weather.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	values := map[string]interface{}{
		"status": string(report.Status),
		"data":   string(data),
	}
	if report.Summary != "" {
		values["summary"] = report.Summary
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis stream %s: %w", p.stream, err)
	}

	p.logger.Debug("published report", "stream", p.stream, "id", id, "status", report.Status)
	return nil
}
