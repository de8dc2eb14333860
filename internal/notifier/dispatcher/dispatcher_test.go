package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkeevk/diploma-shop/internal/domain"
	"github.com/jkeevk/diploma-shop/internal/notifier/mail"
	"github.com/jkeevk/diploma-shop/internal/repository"
	"github.com/jkeevk/diploma-shop/pkg/metrics"
)

type mockStore struct {
	event     *domain.NotificationEvent
	getErr    error
	delivered []uuid.UUID
	failed    map[uuid.UUID]int
}

func (m *mockStore) GetPendingEvents(context.Context, int) ([]*domain.NotificationEvent, error) {
	return nil, nil
}

func (m *mockStore) MarkEventPublished(context.Context, uuid.UUID) error { return nil }

func (m *mockStore) MarkEventDelivered(_ context.Context, id uuid.UUID) error {
	m.delivered = append(m.delivered, id)
	return nil
}

func (m *mockStore) MarkEventFailed(_ context.Context, id uuid.UUID, attempts int) error {
	if m.failed == nil {
		m.failed = make(map[uuid.UUID]int)
	}
	m.failed[id] = attempts
	return nil
}

func (m *mockStore) GetEventByID(context.Context, uuid.UUID) (*domain.NotificationEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.event, nil
}

// mockReader serves a fixed message list, then reports cancellation the
// way a closed *kafka.Reader does.
type mockReader struct {
	msgs      []kafka.Message
	fetched   int
	committed []kafka.Message
	closed    bool
}

func (m *mockReader) FetchMessage(context.Context) (kafka.Message, error) {
	if m.fetched >= len(m.msgs) {
		return kafka.Message{}, context.Canceled
	}
	msg := m.msgs[m.fetched]
	m.fetched++
	return msg, nil
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockReader) Close() error {
	m.closed = true
	return nil
}

type mockTransport struct {
	errs  []error // per-attempt results, nil means success
	calls int
}

func (m *mockTransport) Send(context.Context, *domain.NotificationEvent) error {
	m.calls++
	if m.calls <= len(m.errs) {
		return m.errs[m.calls-1]
	}
	return nil
}

// testMetrics builds counters without touching the default registry so
// parallel tests don't collide on MustRegister.
func testMetrics() *metrics.DispatcherMetrics {
	return &metrics.DispatcherMetrics{
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_delivered"}),
		Failed:    prometheus.NewCounter(prometheus.CounterOpts{Name: "test_failed"}),
		Retries:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_retries"}),
	}
}

func newTestDispatcher(store repository.EventStore, transport mail.Transport) *Dispatcher {
	return &Dispatcher{
		store:       store,
		transport:   transport,
		workers:     1,
		maxAttempts: 3,
		baseBackoff: time.Millisecond,
		maxBackoff:  10 * time.Millisecond,
		sleep:       func(context.Context, time.Duration) error { return nil },
		metrics:     testMetrics(),
	}
}

func storedEvent(status domain.EventStatus) *domain.NotificationEvent {
	return &domain.NotificationEvent{
		ID:        uuid.New(),
		Kind:      domain.EventStatusChanged,
		Target:    domain.TargetCustomer,
		TargetID:  "42",
		OrderID:   uuid.New(),
		Payload:   json.RawMessage(`{}`),
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func TestHandle_DeliversAndMarks(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, sut.handle(context.Background(), raw))

	assert.Equal(t, 1, transport.calls)
	assert.Equal(t, []uuid.UUID{event.ID}, store.delivered)
}

func TestHandle_SkipsAlreadyDeliveredEvent(t *testing.T) {
	event := storedEvent(domain.EventStatusDelivered)
	store := &mockStore{event: event}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	raw, _ := json.Marshal(event)
	require.NoError(t, sut.handle(context.Background(), raw))

	assert.Zero(t, transport.calls)
	assert.Empty(t, store.delivered)
}

func TestHandle_SkipsFailedEvent(t *testing.T) {
	event := storedEvent(domain.EventStatusFailed)
	store := &mockStore{event: event}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	raw, _ := json.Marshal(event)
	require.NoError(t, sut.handle(context.Background(), raw))

	assert.Zero(t, transport.calls)
}

func TestHandle_LookupErrorLeavesEventUntouched(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{getErr: fmt.Errorf("connection refused")}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	raw, _ := json.Marshal(event)
	err := sut.handle(context.Background(), raw)

	require.Error(t, err)
	assert.Zero(t, transport.calls)
}

func TestHandle_GarbageMessageIgnored(t *testing.T) {
	store := &mockStore{}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	require.NoError(t, sut.handle(context.Background(), []byte("not json")))

	assert.Zero(t, transport.calls)
}

func TestDeliver_RetriesTransientThenSucceeds(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transport := &mockTransport{errs: []error{
		fmt.Errorf("%w: connection refused", mail.ErrRetryable),
		fmt.Errorf("%w: greylisted", mail.ErrRetryable),
	}}
	sut := newTestDispatcher(store, transport)

	sut.deliver(context.Background(), event)

	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, []uuid.UUID{event.ID}, store.delivered)
	assert.Empty(t, store.failed)
}

func TestDeliver_PermanentFailureFailsImmediately(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transport := &mockTransport{errs: []error{
		fmt.Errorf("%w: no such mailbox", mail.ErrPermanent),
	}}
	sut := newTestDispatcher(store, transport)

	sut.deliver(context.Background(), event)

	assert.Equal(t, 1, transport.calls)
	assert.Empty(t, store.delivered)
	assert.Equal(t, 1, store.failed[event.ID])
}

func TestDeliver_ExhaustedRetriesMarkFailed(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transient := fmt.Errorf("%w: timeout", mail.ErrRetryable)
	transport := &mockTransport{errs: []error{transient, transient, transient, transient}}
	sut := newTestDispatcher(store, transport)

	sut.deliver(context.Background(), event)

	assert.Equal(t, 3, transport.calls) // maxAttempts
	assert.Empty(t, store.delivered)
	assert.Equal(t, 3, store.failed[event.ID])
}

func TestDeliver_StopsRetryingOnShutdown(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transient := fmt.Errorf("%w: timeout", mail.ErrRetryable)
	transport := &mockTransport{errs: []error{transient, transient, transient}}
	sut := newTestDispatcher(store, transport)
	sut.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	err := sut.deliver(context.Background(), event)

	// One attempt, then the cancelled sleep ends the loop without marking
	// the event failed; the caller keeps the offset uncommitted.
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, transport.calls)
	assert.Empty(t, store.delivered)
	assert.Empty(t, store.failed)
}

func TestConsume_CommitsOffsetAfterDelivery(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	reader := &mockReader{msgs: []kafka.Message{{Value: raw}}}

	sut.consume(context.Background(), reader)

	assert.Equal(t, []uuid.UUID{event.ID}, store.delivered)
	assert.Len(t, reader.committed, 1)
}

func TestConsume_LookupErrorLeavesOffsetUncommitted(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{getErr: fmt.Errorf("connection refused")}
	transport := &mockTransport{}
	sut := newTestDispatcher(store, transport)

	raw, _ := json.Marshal(event)
	reader := &mockReader{msgs: []kafka.Message{{Value: raw}}}

	sut.consume(context.Background(), reader)

	// The message must come back after a restart, so its offset stays put.
	assert.Empty(t, reader.committed)
}

func TestConsume_ShutdownMidRetryLeavesOffsetUncommitted(t *testing.T) {
	event := storedEvent(domain.EventStatusPublished)
	store := &mockStore{event: event}
	transient := fmt.Errorf("%w: timeout", mail.ErrRetryable)
	transport := &mockTransport{errs: []error{transient, transient, transient}}
	sut := newTestDispatcher(store, transport)
	sut.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	raw, _ := json.Marshal(event)
	reader := &mockReader{msgs: []kafka.Message{{Value: raw}}}

	sut.consume(context.Background(), reader)

	// Undelivered and unfailed: only an uncommitted offset guarantees the
	// event is picked up again instead of sticking in PUBLISHED forever.
	assert.Empty(t, store.delivered)
	assert.Empty(t, store.failed)
	assert.Empty(t, reader.committed)
}
