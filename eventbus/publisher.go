// Package eventbus publishes executed trades onto Kafka so market-data and
// analytics consumers outside this repo can subscribe without touching the
// matching engine directly.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"matchcore/book"
)

// Publisher is a TradeObserver that writes every trade to a Kafka topic,
// keyed by symbol so a partitioned topic preserves per-symbol ordering.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher connects a writer for topic across brokers. Writes are
// synchronous: a publish failure is logged by the caller, not retried here.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

type tradeMessage struct {
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	Symbol      string `json:"symbol"`
	Size        int64  `json:"size"`
	Price       int64  `json:"price"`
	Timestamp   int64  `json:"timestamp"`
}

// Publish writes tr to Kafka. It satisfies engine.TradeObserver's signature
// when wrapped in a closure that discards the error — see PublishFunc.
func (p *Publisher) Publish(ctx context.Context, tr book.Trade) error {
	value, err := json.Marshal(tradeMessage{
		BuyOrderID:  tr.BuyOrderID,
		SellOrderID: tr.SellOrderID,
		Symbol:      tr.Symbol,
		Size:        tr.Size,
		Price:       tr.Price,
		Timestamp:   tr.Timestamp,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tr.Symbol),
		Value: value,
	})
}

// PublishFunc adapts Publish to engine.TradeObserver, logging rather than
// propagating errors — an observer callback has nowhere to return one, and
// the engine's mutex is held for its duration so it must not block long.
func (p *Publisher) PublishFunc(onErr func(error)) func(book.Trade) {
	return func(tr book.Trade) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.Publish(ctx, tr); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
