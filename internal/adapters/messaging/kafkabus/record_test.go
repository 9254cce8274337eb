package kafkabus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

func TestRecordConversion_RoundTrip(t *testing.T) {
	msg := contracts.Message{
		ID:        "m-1",
		Topic:     "orders",
		Key:       "o-1",
		Payload:   []byte("created"),
		Headers:   map[string]string{"trace": "abc", "source": "test"},
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	rec := toRecord(msg)
	assert.Equal(t, "orders", rec.Topic)
	assert.Equal(t, []byte("o-1"), rec.Key)
	require.Len(t, rec.Headers, 3)
	assert.Equal(t, HeaderMessageID, rec.Headers[0].Key)

	assert.Equal(t, msg, fromRecord(rec))
}

func TestToRecord_EmptyKeyLeavesRecordKeyNil(t *testing.T) {
	rec := toRecord(contracts.Message{ID: "m-1", Topic: "orders"})
	assert.Nil(t, rec.Key)
}

func TestFromRecord_NoExtraHeaders(t *testing.T) {
	msg := fromRecord(toRecord(contracts.Message{ID: "m-1", Topic: "orders"}))
	assert.Equal(t, "m-1", msg.ID)
	assert.Nil(t, msg.Headers)
}

func TestBus_MissingClients(t *testing.T) {
	bus := New(nil, nil, nil)
	defer bus.Close()

	err := bus.Publish(context.Background(), contracts.Message{Topic: "orders"})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	err = bus.Consume(context.Background(), "orders", func(context.Context, contracts.Message) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestBus_ValidatesTopicFirst(t *testing.T) {
	bus := New(nil, nil, nil)
	defer bus.Close()

	err := bus.Publish(context.Background(), contracts.Message{})
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)

	err = bus.Consume(context.Background(), "", func(context.Context, contracts.Message) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := New(nil, nil, nil)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
}

func TestAddRewind_KeepsEarliestOffsetPerPartition(t *testing.T) {
	var rewind map[string]map[int32]kgo.EpochOffset
	rewind = addRewind(rewind, &kgo.Record{Topic: "payments", Partition: 0, Offset: 7, LeaderEpoch: 2})
	rewind = addRewind(rewind, &kgo.Record{Topic: "payments", Partition: 0, Offset: 8, LeaderEpoch: 2})
	rewind = addRewind(rewind, &kgo.Record{Topic: "payments", Partition: 1, Offset: 3, LeaderEpoch: 1})
	rewind = addRewind(rewind, &kgo.Record{Topic: "refunds", Partition: 0, Offset: 0})

	assert.Equal(t, map[string]map[int32]kgo.EpochOffset{
		"payments": {
			0: {Epoch: 2, Offset: 7},
			1: {Epoch: 1, Offset: 3},
		},
		"refunds": {0: {Epoch: 0, Offset: 0}},
	}, rewind)
}
