package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/jkeevk/diploma-shop/internal/domain"
	"github.com/jkeevk/diploma-shop/internal/notifier/mail"
	"github.com/jkeevk/diploma-shop/internal/notifier/publisher"
	"github.com/jkeevk/diploma-shop/internal/repository"
	"github.com/jkeevk/diploma-shop/pkg/logging"
	"github.com/jkeevk/diploma-shop/pkg/metrics"
)

const groupID = "notification-dispatcher"

// messageReader is satisfied by *kafka.Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher consumes notification events from the broker and delivers
// them as email. Each worker owns one group-member reader, so messages
// within a partition (one target's stream) are handled in order.
type Dispatcher struct {
	store       repository.EventStore
	transport   mail.Transport
	newReader   func() messageReader
	workers     int
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	metrics     *metrics.DispatcherMetrics
}

func New(store repository.EventStore, transport mail.Transport, m *metrics.DispatcherMetrics, brokers ...string) *Dispatcher {
	return &Dispatcher{
		store:     store,
		transport: transport,
		newReader: func() messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  brokers,
				Topic:    publisher.Topic,
				GroupID:  groupID,
				MaxBytes: 10e6, // 10MB
			})
		},
		workers:     4,
		maxAttempts: 5,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		sleep:       sleepCtx,
		metrics:     m,
	}
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			reader := d.newReader()
			defer reader.Close()
			d.consume(ctx, reader)
			return nil
		})
	}
	return g.Wait()
}

// consume fetches and handles messages one at a time, committing the
// offset only after the event has reached a terminal state. A message
// that could not be handled keeps its offset uncommitted, so a restart
// or rebalance redelivers it; the GetEventByID check in handle makes
// that redelivery a no-op once the event is Delivered or Failed.
func (d *Dispatcher) consume(ctx context.Context, reader messageReader) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logging.Log(logging.Fields{Service: "dispatcher", Status: "read_error", Message: err.Error()})
			continue
		}
		if err := d.handle(ctx, m.Value); err != nil {
			continue
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			logging.Log(logging.Fields{Service: "dispatcher", Status: "commit_error", Message: err.Error()})
		}
	}
}

// handle returns nil when the message is finished with, an error when
// the offset must stay uncommitted for redelivery.
func (d *Dispatcher) handle(ctx context.Context, raw []byte) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		// Garbage never becomes valid; commit past it.
		logging.Log(logging.Fields{Service: "dispatcher", Status: "parse_error", Message: err.Error()})
		return nil
	}

	// Re-read the event so a replayed or republished message cannot
	// trigger a second delivery.
	stored, err := d.store.GetEventByID(ctx, event.ID)
	if err != nil {
		logging.Log(logging.Fields{Service: "dispatcher", EventID: event.ID.String(), Status: "lookup_error", Message: err.Error()})
		return err
	}
	if stored.Status == domain.EventStatusDelivered || stored.Status == domain.EventStatusFailed {
		return nil
	}

	return d.deliver(ctx, stored)
}

// deliver returns nil once the event reached a terminal state, or the
// context error when shutdown interrupted the retry loop.
func (d *Dispatcher) deliver(ctx context.Context, event *domain.NotificationEvent) error {
	start := time.Now()
	backoff := d.baseBackoff

	for attempt := 1; ; attempt++ {
		err := d.transport.Send(ctx, event)
		if err == nil {
			if markErr := d.store.MarkEventDelivered(ctx, event.ID); markErr != nil {
				logging.Log(logging.Fields{Service: "dispatcher", EventID: event.ID.String(), Status: "mark_error", Message: markErr.Error()})
			}
			d.metrics.Delivered.Inc()
			logging.Log(logging.Fields{
				Service:    "dispatcher",
				EventID:    event.ID.String(),
				OrderID:    event.OrderID.String(),
				Status:     "delivered",
				DurationMS: time.Since(start).Milliseconds(),
			})
			return nil
		}

		if !mail.IsRetryable(err) || attempt >= d.maxAttempts {
			d.fail(ctx, event, attempt, err)
			return nil
		}

		d.metrics.Retries.Inc()
		logging.Log(logging.Fields{
			Service: "dispatcher",
			EventID: event.ID.String(),
			Status:  "retrying",
			Step:    "attempt " + strconv.Itoa(attempt),
			Message: err.Error(),
		})
		if sleepErr := d.sleep(ctx, backoff); sleepErr != nil {
			// Shutdown mid-retry: the offset stays uncommitted, so the
			// event is redelivered after the restart.
			return sleepErr
		}
		backoff *= 2
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
	}
}

// fail marks the event for operator follow-up. Delivery failure is
// terminal for the event only; the commit or transition that produced it
// is untouched.
func (d *Dispatcher) fail(ctx context.Context, event *domain.NotificationEvent, attempts int, cause error) {
	if err := d.store.MarkEventFailed(ctx, event.ID, attempts); err != nil {
		logging.Log(logging.Fields{Service: "dispatcher", EventID: event.ID.String(), Status: "mark_error", Message: err.Error()})
	}
	d.metrics.Failed.Inc()
	logging.Log(logging.Fields{
		Service: "dispatcher",
		EventID: event.ID.String(),
		OrderID: event.OrderID.String(),
		Status:  "failed",
		Step:    "attempt " + strconv.Itoa(attempts),
		Message: cause.Error(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

