package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event version %d", ev.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesSubscribers(t *testing.T) {
	pub := New(10)
	defer pub.Close()

	a, err := pub.Subscribe(context.Background(), TopicFrame)
	require.NoError(t, err)
	b, err := pub.Subscribe(context.Background(), TopicFrame)
	require.NoError(t, err)
	other, err := pub.Subscribe(context.Background(), TopicStatus)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(TopicFrame, "tick", map[string]int{"seq": 1}))

	for _, sub := range []Subscription{a, b} {
		ev := receive(t, sub)
		assert.Equal(t, TopicFrame, ev.Topic)
		assert.Equal(t, "tick", ev.Type)
		assert.Equal(t, 1, ev.Version)
		assert.JSONEq(t, `{"seq": 1}`, string(ev.Data))
	}
	assertQuiet(t, other)
}

func TestVersionsArePerTopic(t *testing.T) {
	pub := New(10)
	defer pub.Close()

	require.NoError(t, pub.Publish(TopicFrame, "tick", 1))
	require.NoError(t, pub.Publish(TopicFrame, "tick", 2))
	require.NoError(t, pub.Publish(TopicStatus, "loading", 3))

	pub.ConfigureTopic(TopicStatus, TopicConfig{BufferSize: 1})
	require.NoError(t, pub.Publish(TopicStatus, "loaded", 4))

	sub, err := pub.Subscribe(context.Background(), TopicStatus)
	require.NoError(t, err)
	assert.Equal(t, 2, receive(t, sub).Version)
}

func TestReplayBuffer(t *testing.T) {
	pub := New(10)
	defer pub.Close()

	pub.ConfigureTopic("all", TopicConfig{BufferSize: 3, ReplayAll: true})
	pub.ConfigureTopic("last", TopicConfig{BufferSize: 5})
	for i := 1; i <= 5; i++ {
		require.NoError(t, pub.Publish("all", "event", i))
		require.NoError(t, pub.Publish("last", "event", i))
	}

	all, err := pub.Subscribe(context.Background(), "all")
	require.NoError(t, err)
	for want := 3; want <= 5; want++ {
		assert.Equal(t, want, receive(t, all).Version)
	}
	assertQuiet(t, all)

	last, err := pub.Subscribe(context.Background(), "last")
	require.NoError(t, err)
	assert.Equal(t, 5, receive(t, last).Version)
	assertQuiet(t, last)
}

func TestUnbufferedTopicDoesNotReplay(t *testing.T) {
	pub := New(10)
	defer pub.Close()

	require.NoError(t, pub.Publish(TopicSelection, "node", "a"))
	sub, err := pub.Subscribe(context.Background(), TopicSelection)
	require.NoError(t, err)
	assertQuiet(t, sub)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	pub := New(2)
	defer pub.Close()

	sub, err := pub.Subscribe(context.Background(), TopicFrame)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Publish(TopicFrame, "tick", i))
	}
	assert.Equal(t, 1, receive(t, sub).Version)
	assert.Equal(t, 2, receive(t, sub).Version)
	assertQuiet(t, sub)
}

func TestContextCancelClosesSubscription(t *testing.T) {
	pub := New(10)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, TopicFrame)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.Subscribers(TopicFrame))

	cancel()
	require.Eventually(t, func() bool {
		return pub.Subscribers(TopicFrame) == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-sub.Events()
	assert.False(t, ok, "events channel is closed")
	require.NoError(t, sub.Close(), "closing twice is harmless")
}

func TestCloseEndsEverything(t *testing.T) {
	pub := New(10)
	sub, err := pub.Subscribe(context.Background(), TopicStatus)
	require.NoError(t, err)

	require.NoError(t, pub.Close())
	_, ok := <-sub.Events()
	assert.False(t, ok)
	require.NoError(t, sub.Close())

	assert.ErrorIs(t, pub.Publish(TopicStatus, "x", 1), ErrClosed)
	_, err = pub.Subscribe(context.Background(), TopicStatus)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, pub.Close())
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	pub := New(10)
	defer pub.Close()
	assert.Error(t, pub.Publish(TopicFrame, "bad", func() {}))
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	ev := Event{Topic: TopicSelection, Type: "node", Data: json.RawMessage(`{"id":"a"}`), Version: 4}
	require.NoError(t, WriteSSE(&buf, ev))

	out := buf.String()
	assert.Equal(t,
		"id: 4\nevent: selection\ndata: {\"topic\":\"selection\",\"type\":\"node\",\"data\":{\"id\":\"a\"},\"version\":4}\n\n",
		out)
}
