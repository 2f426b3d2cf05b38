package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"wodgachi/rewards-api/internal/observability"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultBufferSize = 1024
	writeTimeout      = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events and writes them from a single goroutine.
// Events that do not fit the buffer are dropped and counted.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	queue  chan Event
	log    *logrus.Entry

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewKafkaPublisher creates a publisher for topic and starts its delivery loop.
func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	return newKafkaPublisher(writer, topic, logger, defaultBufferSize)
}

func newKafkaPublisher(w messageWriter, topic string, logger *logrus.Logger, buffer int) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: w,
		topic:  topic,
		queue:  make(chan Event, buffer),
		log:    logger.WithFields(logrus.Fields{"component": "events", "topic": topic}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues evt without waiting for the broker.
func (p *KafkaPublisher) Publish(_ context.Context, evt Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- evt:
	default:
		observability.RecordEventDropped(string(evt.Type))
		p.log.WithField("event", evt.Type).Warn("event buffer full, dropping event")
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for evt := range p.queue {
		p.deliver(evt)
	}
}

func (p *KafkaPublisher) deliver(evt Event) {
	value, err := json.Marshal(evt)
	if err != nil {
		p.log.WithError(err).WithField("event", evt.Type).Error("marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(evt.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
			{Key: "event-id", Value: []byte(evt.ID)},
		},
		Time: evt.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		observability.RecordEventFailed(string(evt.Type))
		p.log.WithError(err).WithField("event", evt.Type).Error("publish event")
		return
	}
	observability.RecordEventPublished(string(evt.Type))
}

// Close stops accepting events, flushes the buffer and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
