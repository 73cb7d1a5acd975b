package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notification jobs to a Kafka topic keyed by recipient.
type KafkaNotifier struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

// NewKafkaWriter builds the producer used in production.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaNotifier(writer MessageWriter, topic string) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, topic: topic, now: time.Now}
}

func (n *KafkaNotifier) Notify(ctx context.Context, template Template, to string, substitutions map[string]string) error {
	msg := Message{
		Template:      template,
		Subject:       template.Subject(),
		To:            to,
		Substitutions: substitutions,
		CreatedAt:     n.now().UTC(),
	}
	data, err := msg.JSON()
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(to),
		Value: data,
		Headers: []kafka.Header{
			{Key: "template", Value: []byte(template)},
		},
	}); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
