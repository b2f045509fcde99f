package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/webhook-events/internal/store"
)

// DefaultTopic receives mirrored events when no topic is configured.
const DefaultTopic = "github-events"

// Publisher mirrors stored events somewhere else. The server depends only on this interface.
type Publisher interface {
	Publish(ctx context.Context, ev store.StoredEvent) error
}

// Options configures the Kafka producer.
type Options struct {
	Brokers        []string
	Topic          string
	ProduceTimeout time.Duration
	SASLMechanism  string // PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512; empty disables SASL
	SASLUsername   string
	SASLPassword   string
}

// syncProducer is the part of *kgo.Client we use.
type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Producer publishes events to a Kafka topic, one record per event keyed by action.
type Producer struct {
	client  syncProducer
	topic   string
	timeout time.Duration
	log     *slog.Logger
}

// NewProducer builds a franz-go client for opts. The client connects lazily.
func NewProducer(opts Options) (*Producer, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(opts.Brokers...),
		kgo.DefaultProduceTopic(opts.Topic),
	}
	if opts.SASLMechanism != "" {
		mech, err := saslMechanism(opts.SASLMechanism, opts.SASLUsername, opts.SASLPassword)
		if err != nil {
			return nil, err
		}
		kopts = append(kopts, kgo.SASL(mech))
	}
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newProducer(client, opts.Topic, opts.ProduceTimeout), nil
}

func newProducer(c syncProducer, topic string, timeout time.Duration) *Producer {
	return &Producer{client: c, topic: topic, timeout: timeout, log: slog.Default()}
}

func saslMechanism(name, user, pass string) (sasl.Mechanism, error) {
	switch name {
	case "PLAIN":
		return plain.Auth{User: user, Pass: pass}.AsMechanism(), nil
	case "SCRAM-SHA-256":
		return scram.Auth{User: user, Pass: pass}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512":
		return scram.Auth{User: user, Pass: pass}.AsSha512Mechanism(), nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", name)
	}
}

// Publish produces ev synchronously, bounded by the produce timeout.
func (p *Producer) Publish(ctx context.Context, ev store.StoredEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	rec := &kgo.Record{Topic: p.topic, Key: []byte(ev.Action), Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	p.log.Debug("event mirrored", "topic", p.topic, "id", ev.ID, "action", ev.Action)
	return nil
}

// Close closes the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
