package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arcplan/internal/progress"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestPublishStatusAndSamples(t *testing.T) {
	mr, sub := setupMiniredis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Subscribe(ctx, sub, "run-1")
	require.NoError(t, err)

	pub, err := NewPublisher(Config{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, pub.Ping(ctx))

	require.NoError(t, pub.PublishStatus(ctx, "run-1", "started", ""))
	ev := receive(t, events)
	assert.Equal(t, KindStatus, ev.Kind)
	assert.Equal(t, "started", ev.Status)
	assert.Equal(t, "run-1", ev.RunID)

	it := 4
	pub.Handler("run-1").Sample(progress.Sample{Iter: &it, TS: 12})
	ev = receive(t, events)
	assert.Equal(t, KindSample, ev.Kind)
	require.NotNil(t, ev.Sample)
	assert.Equal(t, 4, *ev.Sample.Iter)
	assert.Equal(t, 12.0, ev.Sample.TS)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
}

func TestSamplesRateLimited(t *testing.T) {
	mr, _ := setupMiniredis(t)
	pub, err := NewPublisher(Config{RedisURL: "redis://" + mr.Addr(), Rate: 0.001, Burst: 2})
	require.NoError(t, err)

	h := pub.Handler("run-2")
	for i := 0; i < 10; i++ {
		h.Sample(progress.Sample{})
	}
	require.NoError(t, pub.Close())
	assert.Equal(t, int64(8), pub.Dropped())
}

func TestSampleAfterCloseDropped(t *testing.T) {
	mr, _ := setupMiniredis(t)
	pub, err := NewPublisher(Config{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	pub.Handler("run-3").Sample(progress.Sample{})
	assert.Equal(t, int64(1), pub.Dropped())
}

func TestInvalidRunID(t *testing.T) {
	mr, client := setupMiniredis(t)
	pub, err := NewPublisher(Config{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer pub.Close()

	assert.Error(t, pub.PublishStatus(context.Background(), "bad id!", "queued", ""))
	_, err = Subscribe(context.Background(), client, "")
	assert.Error(t, err)
}

func TestBadRedisURL(t *testing.T) {
	_, err := NewPublisher(Config{RedisURL: "http://nope"})
	assert.Error(t, err)
}
