package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trader-alpha-lab/internal/domain"
)

func testEvent() *domain.CandidateEvent {
	e := &domain.RankedEntry{
		Address:        "0xaaa",
		Rank:           1,
		Score:          0.82,
		Weight:         0.5,
		WinRate:        0.7,
		ExecutedOrders: 80,
		RealizedPnl:    50_000,
		Remark:         "whale one",
		Labels:         []string{"whale"},
	}
	return domain.NewCandidateEvent(e, 30, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestRedisSink_PublishPushesAndAnnounces(t *testing.T) {
	client, mock := redismock.NewClientMock()
	sink := NewRedisSink(client)

	event := testEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectRPush(DefaultQueueKey, payload).SetVal(1)
	mock.ExpectPublish(DefaultPubChannel, payload).SetVal(1)

	err = sink.Publish(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_CustomKeys(t *testing.T) {
	client, mock := redismock.NewClientMock()
	sink := NewRedisSink(client,
		WithQueueKey("custom:queue"),
		WithPubChannel("custom:events"),
	)

	event := testEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectRPush("custom:queue", payload).SetVal(1)
	mock.ExpectPublish("custom:events", payload).SetVal(1)

	require.NoError(t, sink.Publish(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_QueueFailureSkipsAnnounce(t *testing.T) {
	client, mock := redismock.NewClientMock()
	sink := NewRedisSink(client)

	event := testEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectRPush(DefaultQueueKey, payload).SetErr(errors.New("connection refused"))

	err = sink.Publish(context.Background(), event)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_EventWireFormat(t *testing.T) {
	event := testEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "0xaaa", decoded["address"])
	assert.Equal(t, "daily", decoded["source"])
	assert.Equal(t, "2025-06-01T12:00:00Z", decoded["ts"])
	assert.Equal(t, "whale one", decoded["nickname"])
	assert.Equal(t, 0.82, decoded["score_hint"])
	assert.ElementsMatch(t, []interface{}{"period:30", "leaderboard"}, decoded["tags"])

	meta, ok := decoded["meta"].(map[string]interface{})
	require.True(t, ok)
	leaderboard, ok := meta["leaderboard"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(30), leaderboard["period_days"])
	assert.Equal(t, float64(1), leaderboard["rank"])
	assert.Equal(t, 0.5, leaderboard["weight"])
}

func TestNopSink(t *testing.T) {
	var s NopSink
	assert.NoError(t, s.Publish(context.Background(), testEvent()))
	assert.NoError(t, s.Close())
}
