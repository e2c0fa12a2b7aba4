package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvalidator struct {
	calls int
	err   error
}

func (s *stubInvalidator) Invalidate(context.Context) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return int64(s.calls), nil
}

type stubStore struct {
	keys    map[string]bool
	deleted []string
	err     error
}

func (s *stubStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *stubStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.keys, k)
		s.deleted = append(s.deleted, k)
	}
	return nil
}

func (s *stubStore) IdempotencyKey(consumer, eventID string) string {
	return consumer + ":" + eventID
}

type stubReceiver struct {
	messages []*gcppubsub.Message
}

func (s *stubReceiver) Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error {
	for _, msg := range s.messages {
		f(ctx, msg)
	}
	return nil
}

func newTestService(t *testing.T, inv Invalidator, store idempotencyStore) *Service {
	t.Helper()
	svc, err := NewService(&stubReceiver{}, inv, store, logger.Nop())
	require.NoError(t, err)
	return svc
}

func notificationMessage(t *testing.T) (*gcppubsub.Message, Notification) {
	t.Helper()
	n := NewNotification("csv", 42)
	msg, err := encode(n)
	require.NoError(t, err)
	return msg, n
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, n := notificationMessage(t)
	assert.Equal(t, eventTransactionsChanged, msg.Attributes["event_type"])
	assert.Equal(t, "42", msg.Attributes["rows"])

	decoded, err := decode(msg)
	require.NoError(t, err)
	assert.Equal(t, n.EventID, decoded.EventID)
	assert.Equal(t, "csv", decoded.Source)
	assert.True(t, n.OccurredAt.Equal(decoded.OccurredAt))
}

func TestDecodeRejectsBadMessages(t *testing.T) {
	_, err := decode(&gcppubsub.Message{Attributes: map[string]string{"event_type": "order_paid"}})
	require.Error(t, err)

	_, err = decode(&gcppubsub.Message{Data: []byte("{")})
	require.Error(t, err)

	_, err = decode(&gcppubsub.Message{Data: []byte(`{"event_id":"nope"}`)})
	require.Error(t, err)

	publish := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n, err := decode(&gcppubsub.Message{
		Attributes:  map[string]string{"event_id": "6f1c1c43-4a4e-4f7c-9c55-2b8f7fbcb0a1"},
		PublishTime: publish,
	})
	require.NoError(t, err)
	assert.Equal(t, publish, n.OccurredAt)
}

func TestProcessInvalidatesOnce(t *testing.T) {
	inv := &stubInvalidator{}
	store := &stubStore{}
	svc := newTestService(t, inv, store)
	msg, _ := notificationMessage(t)

	assert.False(t, svc.process(context.Background(), msg).nack)
	assert.False(t, svc.process(context.Background(), msg).nack)
	assert.Equal(t, 1, inv.calls)
}

func TestProcessInvalidMessageIsAcked(t *testing.T) {
	inv := &stubInvalidator{}
	svc := newTestService(t, inv, nil)
	res := svc.process(context.Background(), &gcppubsub.Message{Data: []byte("garbage")})
	assert.False(t, res.nack)
	assert.Zero(t, inv.calls)
}

func TestProcessInvalidationFailureRetries(t *testing.T) {
	inv := &stubInvalidator{err: errors.New("redis down")}
	store := &stubStore{}
	svc := newTestService(t, inv, store)
	msg, n := notificationMessage(t)

	res := svc.process(context.Background(), msg)
	assert.True(t, res.nack)
	assert.Equal(t, []string{"refresh:" + n.EventID}, store.deleted)
}

func TestProcessIdempotencyFailureRetries(t *testing.T) {
	inv := &stubInvalidator{}
	svc := newTestService(t, inv, &stubStore{err: errors.New("timeout")})
	msg, _ := notificationMessage(t)

	assert.True(t, svc.process(context.Background(), msg).nack)
	assert.Zero(t, inv.calls)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, &stubInvalidator{}, nil, logger.Nop())
	require.Error(t, err)
	_, err = NewService(&stubReceiver{}, nil, nil, logger.Nop())
	require.Error(t, err)
	_, err = NewService(&stubReceiver{}, &stubInvalidator{}, nil, nil)
	require.Error(t, err)
}
