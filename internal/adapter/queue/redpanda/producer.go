// Package redpanda publishes analysis lifecycle events to Redpanda/Kafka.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// DefaultTopic receives one record per finished Analyze call.
const DefaultTopic = "analysis-events"

// producerClient is the subset of *kgo.Client the producer uses.
type producerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Producer implements domain.EventPublisher on top of a franz-go client.
type Producer struct {
	client producerClient
	topic  string
}

var _ domain.EventPublisher = (*Producer)(nil)

// NewProducer connects to the brokers and makes sure the topic exists.
func NewProducer(ctx context.Context, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("topic", topic))

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.RecordDeliveryTimeout(10*time.Second),
		kgo.DialTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		// Topic creation may be disallowed; producing still works if it exists.
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
	return newProducer(client, topic), nil
}

func newProducer(c producerClient, topic string) *Producer {
	return &Producer{client: c, topic: topic}
}

// PublishAnalysis writes ev keyed by user id so a user's events stay ordered.
func (p *Producer) PublishAnalysis(ctx domain.Context, ev domain.AnalysisEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=event.marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(ev.UserID, 10)),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "outcome", Value: []byte(ev.Outcome)},
			{Key: "request_id", Value: []byte(ev.RequestID)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=event.publish: %w", err)
	}
	return nil
}

// Ping checks broker connectivity for readiness checks.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close releases the client.
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// NoopPublisher drops events; used when no brokers are configured.
type NoopPublisher struct{}

// PublishAnalysis implements domain.EventPublisher.
func (NoopPublisher) PublishAnalysis(domain.Context, domain.AnalysisEvent) error { return nil }
