package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/storefront/pkg/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	events []Event

	sent     []int64
	failed   map[int64]string
	extended [][]int64
}

func (s *stubStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	events := s.events
	s.events = nil
	return events, nil
}

func (s *stubStore) MarkSent(ctx context.Context, ids []int64) error {
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *stubStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	if s.failed == nil {
		s.failed = make(map[int64]string)
	}
	s.failed[id] = errMsg
	return nil
}

func (s *stubStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.extended = append(s.extended, ids)
	return nil
}

type stubProducer struct {
	messages []kafka.Message
	failKeys map[string]error
}

func (p *stubProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		if err, ok := p.failKeys[string(msg.Key)]; ok {
			return err
		}
		p.messages = append(p.messages, msg)
	}
	return nil
}

func event(id int64, aggregateID, traceparent string) Event {
	return Event{
		ID:          id,
		AggregateID: aggregateID,
		Type:        "OrderPlaced",
		Payload:     []byte(`{"orderId":"` + aggregateID + `"}`),
		Traceparent: traceparent,
	}
}

func TestDispatcherMessageShape(t *testing.T) {
	producer := &stubProducer{}
	d := NewDispatcher(logging.New(), producer, "order.events")

	require.NoError(t, d.Dispatch(context.Background(), event(1, "order-1", "00-abc-def-01")))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "order.events", msg.Topic)
	assert.Equal(t, "order-1", string(msg.Key))
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(msg.Value))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "OrderPlaced", headers["event_type"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
}

func TestRelayDrainMarksSentAndFailed(t *testing.T) {
	store := &stubStore{events: []Event{
		event(1, "order-1", ""),
		event(2, "order-2", ""),
		event(3, "order-3", ""),
	}}
	producer := &stubProducer{failKeys: map[string]error{"order-2": errors.New("broker down")}}
	relay := NewRelay(logging.New(), store, NewDispatcher(logging.New(), producer, "order.events"), "test-relay")

	relay.drain(context.Background())

	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, map[int64]string{2: "broker down"}, store.failed)
	assert.Len(t, producer.messages, 2)
}

func TestRelayExtendsLeaseForPendingRows(t *testing.T) {
	store := &stubStore{events: []Event{
		event(1, "order-1", ""),
		event(2, "order-2", ""),
		event(3, "order-3", ""),
	}}
	relay := NewRelay(logging.New(), store, NewDispatcher(logging.New(), &stubProducer{}, "order.events"), "test-relay")
	// A negative lease keeps the extension deadline in the past, so every
	// dispatch iteration must extend for the rows still pending.
	relay.lease = -time.Second

	relay.drain(context.Background())

	require.Len(t, store.extended, 3)
	assert.Equal(t, []int64{1, 2, 3}, store.extended[0])
	assert.Equal(t, []int64{2, 3}, store.extended[1])
	assert.Equal(t, []int64{3}, store.extended[2])
	assert.Equal(t, []int64{1, 2, 3}, store.sent)
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	store := &stubStore{}
	relay := NewRelay(logging.New(), store, NewDispatcher(logging.New(), &stubProducer{}, "t"), "test-relay")
	relay.interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after context cancellation")
	}
}
