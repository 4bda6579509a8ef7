// Package ingest carries driver location and order lifecycle events over
// Kafka.
package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/delivery-dispatch/internal/models"
)

const publishTimeout = 2 * time.Second

// LocationEvent is one driver position report.
type LocationEvent struct {
	DriverID int64        `json:"driver_id"`
	Name     string       `json:"name,omitempty"`
	Coord    models.Coord `json:"coord"`
	At       time.Time    `json:"at"`
}

// OrderEvent is emitted on every order status change.
type OrderEvent struct {
	OrderID    string             `json:"order_id"`
	Status     models.OrderStatus `json:"status"`
	Restaurant string             `json:"restaurant"`
	DriverID   int64              `json:"driver_id,omitempty"`
	Total      float64            `json:"total"`
	At         time.Time          `json:"at"`
}

// Publisher is implemented by KafkaProducer and by test fakes.
type Publisher interface {
	PublishLocation(ctx context.Context, ev LocationEvent) error
	PublishOrderEvent(ctx context.Context, ev OrderEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	locations messageWriter
	orders    messageWriter
}

func NewKafkaProducer(brokers []string, locationTopic, orderTopic string) *KafkaProducer {
	return &KafkaProducer{
		locations: kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: locationTopic, Balancer: &kafka.Hash{}}),
		orders:    kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: orderTopic, Balancer: &kafka.Hash{}}),
	}
}

// PublishLocation keys by driver id so one driver's reports stay ordered
// within a partition.
func (k *KafkaProducer) PublishLocation(ctx context.Context, ev LocationEvent) error {
	return publish(ctx, k.locations, strconv.FormatInt(ev.DriverID, 10), ev)
}

func (k *KafkaProducer) PublishOrderEvent(ctx context.Context, ev OrderEvent) error {
	return publish(ctx, k.orders, ev.OrderID, ev)
}

func publish(ctx context.Context, w messageWriter, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	var first error
	for _, w := range []messageWriter{k.locations, k.orders} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DecodeLocation parses a location message value.
func DecodeLocation(b []byte) (LocationEvent, error) {
	var ev LocationEvent
	err := json.Unmarshal(b, &ev)
	return ev, err
}
