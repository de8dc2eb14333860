package publisher

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jkeevk/diploma-shop/internal/domain"
	"github.com/jkeevk/diploma-shop/internal/repository"
)

// Topic carries all notification events. Messages are keyed per target so
// each customer's and each supplier's stream stays ordered within its
// partition; cross-target ordering is not guaranteed and not needed.
const Topic = "order-notifications"

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller drains pending notification events from the database and
// publishes them to the broker. Events survive a crash between the
// originating transaction and publication because they live in the same
// database as the order data.
type OutboxPoller struct {
	tick      time.Duration
	batchSize int
	store     repository.EventStore
	writer    messageWriter
}

func NewOutboxPoller(store repository.EventStore, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{}, // same key -> same partition
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		tick:      time.Second,
		batchSize: 100,
		store:     store,
		writer:    w,
	}
}

func (p *OutboxPoller) Close() error {
	if c, ok := p.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.publishPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) publishPending(ctx context.Context) {
	events, err := p.store.GetPendingEvents(ctx, p.batchSize)
	if err != nil {
		log.Printf("failed to fetch pending events: %v", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			log.Printf("failed to publish event %s: %v", event.ID, err)
			continue
		}
		if err := p.store.MarkEventPublished(ctx, event.ID); err != nil {
			// The event stays PENDING and will be republished; the
			// dispatcher de-duplicates by event id.
			log.Printf("failed to mark event %s as published: %v", event.ID, err)
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.NotificationEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.PartitionKey()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_kind", Value: []byte(event.Kind)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
