package membus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

func consume(ctx context.Context, t *testing.T, bus *Bus, topic string, handler contracts.MessageHandler) <-chan error {
	t.Helper()
	before := bus.SubscriberCount(topic)
	done := make(chan error, 1)
	go func() { done <- bus.Consume(ctx, topic, handler) }()
	require.Eventually(t, func() bool { return bus.SubscriberCount(topic) > before }, time.Second, 5*time.Millisecond)
	return done
}

func TestBus_PublishConsume(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan contracts.Message, 1)
	consume(ctx, t, bus, "orders", func(_ context.Context, msg contracts.Message) error {
		received <- msg
		return nil
	})

	require.NoError(t, bus.Publish(ctx, contracts.Message{
		Topic:   "orders",
		Key:     "o-1",
		Payload: []byte(`{"id":1}`),
		Headers: map[string]string{"source": "test"},
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "orders", msg.Topic)
		assert.Equal(t, "o-1", msg.Key)
		assert.Equal(t, []byte(`{"id":1}`), msg.Payload)
		assert.Equal(t, "test", msg.Headers["source"])
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.Timestamp.IsZero())
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for message")
	}
}

func TestBus_FanOutAndTopicIsolation(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan string, 4)
	second := make(chan string, 4)
	other := make(chan string, 4)
	consume(ctx, t, bus, "orders", func(_ context.Context, msg contracts.Message) error {
		first <- msg.ID
		return nil
	})
	consume(ctx, t, bus, "orders", func(_ context.Context, msg contracts.Message) error {
		second <- msg.ID
		return nil
	})
	consume(ctx, t, bus, "invoices", func(_ context.Context, msg contracts.Message) error {
		other <- msg.ID
		return nil
	})

	require.NoError(t, bus.Publish(ctx, contracts.Message{Topic: "orders", ID: "m1"}))

	for _, ch := range []chan string{first, second} {
		select {
		case id := <-ch:
			assert.Equal(t, "m1", id)
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for fan-out")
		}
	}
	assert.Never(t, func() bool { return len(other) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestBus_HandlerErrorDoesNotStopConsumer(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan string, 2)
	consume(ctx, t, bus, "orders", func(_ context.Context, msg contracts.Message) error {
		calls <- msg.ID
		if msg.ID == "bad" {
			return errors.New("rejected")
		}
		return nil
	})

	require.NoError(t, bus.Publish(ctx, contracts.Message{Topic: "orders", ID: "bad"}))
	require.NoError(t, bus.Publish(ctx, contracts.Message{Topic: "orders", ID: "good"}))

	var got []string
	for range 2 {
		select {
		case id := <-calls:
			got = append(got, id)
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for handler")
		}
	}
	assert.Equal(t, []string{"bad", "good"}, got)
}

func TestBus_ConsumeReturnsOnContextCancel(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := consume(ctx, t, bus, "orders", func(context.Context, contracts.Message) error { return nil })

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		require.Fail(t, "consumer did not stop")
	}
	require.Eventually(t, func() bool { return bus.SubscriberCount("orders") == 0 }, time.Second, 5*time.Millisecond)
}

func TestBus_Close(t *testing.T) {
	bus := New(nil)

	done := consume(context.Background(), t, bus, "orders", func(context.Context, contracts.Message) error { return nil })

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "consumer did not stop on close")
	}

	err := bus.Publish(context.Background(), contracts.Message{Topic: "orders"})
	assert.ErrorIs(t, err, sentinel.ErrClosed)

	err = bus.Consume(context.Background(), "orders", func(context.Context, contracts.Message) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrClosed)
}

func TestBus_RejectsEmptyTopic(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	err := bus.Publish(context.Background(), contracts.Message{})
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)

	err = bus.Consume(context.Background(), "", func(context.Context, contracts.Message) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
}

func TestBus_NonBlockingWhenBufferFull(t *testing.T) {
	bus := New(nil, WithBufferSize(1))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	consume(ctx, t, bus, "orders", func(context.Context, contracts.Message) error {
		<-release
		return nil
	})

	published := make(chan struct{})
	go func() {
		for range 10 {
			_ = bus.Publish(ctx, contracts.Message{Topic: "orders"})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		require.Fail(t, "publish blocked on a slow consumer")
	}
	close(release)
}

func TestBus_PayloadIsCopiedPerConsumer(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	consume(ctx, t, bus, "orders", func(_ context.Context, msg contracts.Message) error {
		received <- msg.Payload
		return nil
	})

	payload := []byte("original")
	require.NoError(t, bus.Publish(ctx, contracts.Message{Topic: "orders", Payload: payload}))
	payload[0] = 'X'

	select {
	case got := <-received:
		assert.Equal(t, []byte("original"), got)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for message")
	}
}
