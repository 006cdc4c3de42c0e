package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicScansRecorded carries one message per counted scan outcome. Duplicate
// scans are not published, mirroring the counter rule.
const TopicScansRecorded = "scanner.scans.recorded"

// ScanEvent is the wire form of a recorded scan for downstream consumers
// (fraud review, live ops dashboards).
type ScanEvent struct {
	TicketID      string    `json:"ticket_id"`
	EventID       string    `json:"event_id"`
	ValidityClass string    `json:"validity_class"`
	ScannedAt     time.Time `json:"scanned_at"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishScanRecorded streams one scan outcome. Messages are keyed by event
// id so per-event ordering is preserved for consumers that care.
func (p *Producer) PublishScanRecorded(event ScanEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.EventID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
