// Package events adapts the engine's LowStockSink port onto Kafka.
// Consuming the emitted topic is the out-of-scope alerting sink's job.
package events

import (
	"context"
	"encoding/json"
	"time"

	"reservation-core/internal/engine"

	"github.com/segmentio/kafka-go"
)

type LowStockProducer struct {
	writer *kafka.Writer
}

func NewLowStockProducer(brokers []string, topic string) *LowStockProducer {
	return &LowStockProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

type lowStockMessage struct {
	ProductID  string `json:"productId"`
	StockAfter int32  `json:"stockAfter"`
	Threshold  int32  `json:"threshold"`
}

func (p *LowStockProducer) Emit(ctx context.Context, e engine.LowStockEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	value, err := json.Marshal(lowStockMessage{
		ProductID:  e.ProductID.String(),
		StockAfter: e.StockAfter,
		Threshold:  e.Threshold,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.ProductID.String()),
		Value: value,
	})
}

func (p *LowStockProducer) Close() error {
	return p.writer.Close()
}
