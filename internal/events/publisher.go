/*
Package events announces confirmed diet and exercise entries on Kafka so other
services can react to new activity. Publishing is best effort: callers log
failures and carry on.
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types, appended to the topic prefix.
const (
	TypeDietConfirmed     = "diet.confirmed"
	TypeExerciseConfirmed = "exercise.confirmed"
)

const defaultPublishTimeout = 5 * time.Second

// Event is one domain event. Payload is encoded as JSON.
type Event struct {
	Type       string
	UserID     int64
	OccurredAt time.Time
	Payload    interface{}
}

type envelope struct {
	Type       string      `json:"type"`
	UserID     int64       `json:"user_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// topicWriter is the part of *kafka.Writer the publisher uses.
type topicWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event to "<prefix>.<type>", keyed by user id so a
// user's events stay ordered within a partition. One writer per topic is
// created on first use.
type KafkaPublisher struct {
	prefix    string
	timeout   time.Duration
	newWriter func(topic string) topicWriter

	mu      sync.Mutex
	writers map[string]topicWriter
}

// NewKafkaPublisher builds a publisher over brokers.
func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	return newKafkaPublisher(func(topic string) topicWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		}
	}, topicPrefix)
}

func newKafkaPublisher(newWriter func(topic string) topicWriter, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		prefix:    topicPrefix,
		timeout:   defaultPublishTimeout,
		newWriter: newWriter,
		writers:   make(map[string]topicWriter),
	}
}

// Topic returns the topic events of eventType go to.
func (p *KafkaPublisher) Topic(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *KafkaPublisher) writerFor(topic string) topicWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = p.newWriter(topic)
		p.writers[topic] = w
	}
	return w
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(envelope{
		Type:       ev.Type,
		UserID:     ev.UserID,
		OccurredAt: ev.OccurredAt,
		Data:       ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	topic := p.Topic(ev.Type)
	err = p.writerFor(topic).WriteMessages(ctx, kafka.Message{
		Key:     []byte(strconv.FormatInt(ev.UserID, 10)),
		Value:   body,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(ev.Type)}},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes every writer, returning the first error.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close writer for %s: %w", topic, err)
		}
		delete(p.writers, topic)
	}
	return firstErr
}

// Noop drops every event. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
