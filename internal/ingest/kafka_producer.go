package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/field-dispatch/internal/models"
)

// AcceptanceEvent is the wire shape published to the audit stream.
type AcceptanceEvent struct {
	JobID string               `json:"job_id"`
	Entry models.AcceptanceLog `json:"entry"`
}

// KafkaProducer publishes committed acceptance entries for downstream
// audit consumers. The durable store is the source of truth; this
// stream is a mirror.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaProducer{writer: w}
}

// PublishAcceptance keys messages by job id so one job's entries stay
// in partition order.
func (k *KafkaProducer) PublishAcceptance(jobID string, entry models.AcceptanceLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(AcceptanceEvent{JobID: jobID, Entry: entry})
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(jobID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
