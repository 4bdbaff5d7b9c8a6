package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/session"
)

func record(i uint64, category string, tags ...string) news.Record {
	s := news.Submission{Category: category, Tags: tags, Title: fmt.Sprint(i)}
	return s.Record(i, 1000+i)
}

func sequences(batch session.Batch) []uint64 {
	result := make([]uint64, len(batch.Messages))
	for i, m := range batch.Messages {
		result[i] = m.Sequence
	}
	return result
}

func TestOpenClose(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry()

	info, err := r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)
	assert.Equal(t, session.Open, info.State)
	assert.NotEmpty(t, info.ID)

	_, err = r.Open(ctx, "alice", session.Filter{})
	require.ErrorIs(t, err, session.ErrDuplicateSession)

	_, err = r.Open(ctx, "", session.Filter{})
	require.ErrorIs(t, err, news.ErrInvalidArgument)

	other, err := r.Open(ctx, "bob", session.Filter{})
	require.NoError(t, err)
	assert.Len(t, r.List(), 2)

	closed, err := r.Close(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Closed, closed.State)

	_, err = r.Close(ctx, info.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	require.ErrorIs(t, err, news.ErrNotFound)
	_, err = r.Poll(info.ID, 0)
	require.ErrorIs(t, err, session.ErrSessionNotFound)

	reopened, err := r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)
	assert.NotEqual(t, info.ID, reopened.ID)

	list := r.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{other.ID, reopened.ID}, ids)
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry()
	info, err := r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)

	batch, err := r.Poll(info.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, batch.Messages)
	assert.Equal(t, uint64(0), batch.Next)

	for i := uint64(0); i < 3; i++ {
		r.Dispatch(record(i, "c"))
	}
	batch, err = r.Poll(info.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, sequences(batch))
	assert.Equal(t, uint64(3), batch.Next)
	for i, m := range batch.Messages {
		payload, ok := m.Payload.(session.RecordAdded)
		require.True(t, ok)
		assert.Equal(t, uint64(i), payload.Record.Index)
	}

	t.Run("replay from older cursor", func(t *testing.T) {
		batch, err := r.Poll(info.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3}, sequences(batch))

		batch, err = r.Poll(info.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3}, sequences(batch))
	})

	t.Run("acknowledged messages are gone", func(t *testing.T) {
		batch, err := r.Poll(info.ID, 3)
		require.NoError(t, err)
		assert.Empty(t, batch.Messages)
		assert.Equal(t, uint64(3), batch.Next)

		got, err := r.Get(info.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Pending)
		assert.Equal(t, uint64(3), got.Acked)
	})

	t.Run("replay past acknowledgement is not a gap", func(t *testing.T) {
		r.Dispatch(record(3, "c"))
		batch, err := r.Poll(info.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint64{4}, sequences(batch))
		_, isGap := batch.Messages[0].Payload.(session.Gap)
		assert.False(t, isGap)
		assert.Equal(t, uint64(4), batch.Next)

		batch, err = r.Poll(info.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, []uint64{4}, sequences(batch))
	})

	t.Run("cursor beyond issued sequences", func(t *testing.T) {
		_, err := r.Poll(info.ID, 99)
		require.ErrorIs(t, err, news.ErrInvalidArgument)
	})
}

func TestQueueOverflow(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry(session.WithQueueBound(3))
	info, err := r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)
	for i := uint64(0); i < 7; i++ {
		r.Dispatch(record(i, "c"))
	}
	batch, err := r.Poll(info.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{4, 5, 6, 7}, sequences(batch))
	assert.Equal(t, session.Gap{From: 1, To: 4}, batch.Messages[0].Payload)
	assert.Equal(t, uint64(7), batch.Next)

	seq, err := r.Enqueue(info.ID, session.Text{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), seq)
	batch, err = r.Poll(info.ID, batch.Next)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 1)
	assert.Equal(t, session.Text{Text: "hello"}, batch.Messages[0].Payload)

	t.Run("gap after acknowledgement covers only dropped messages", func(t *testing.T) {
		for i := uint64(7); i < 12; i++ {
			r.Dispatch(record(i, "c"))
		}
		batch, err := r.Poll(info.ID, 2)
		require.NoError(t, err)
		require.Equal(t, []uint64{10, 11, 12, 13}, sequences(batch))
		assert.Equal(t, session.Gap{From: 8, To: 10}, batch.Messages[0].Payload)
		assert.Equal(t, uint64(13), batch.Next)
	})
}

func TestFilters(t *testing.T) {
	cases := []struct {
		assertion string
		filter    session.Filter
		record    news.Record
		match     bool
	}{
		{"empty filter matches all", session.Filter{}, record(0, "sports"), true},
		{"category match", session.Filter{Categories: []string{"sports"}}, record(0, "sports"), true},
		{"category miss", session.Filter{Categories: []string{"sports"}}, record(0, "politics"), false},
		{"tag match", session.Filter{Tags: []string{"breaking"}}, record(0, "politics", "breaking"), true},
		{"tag miss", session.Filter{Tags: []string{"breaking"}}, record(0, "politics", "local"), false},
		{
			"either matches",
			session.Filter{Categories: []string{"sports"}, Tags: []string{"breaking"}},
			record(0, "politics", "breaking"),
			true,
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			assert.Equal(t, c.match, c.filter.Match(c.record))
		})
	}

	t.Run("dispatch respects filters", func(t *testing.T) {
		ctx := context.Background()
		r := session.NewRegistry()
		sports, err := r.Open(ctx, "alice", session.Filter{Categories: []string{"sports"}})
		require.NoError(t, err)
		all, err := r.Open(ctx, "bob", session.Filter{})
		require.NoError(t, err)
		r.Dispatch(record(0, "sports"))
		r.Dispatch(record(1, "politics"))

		batch, err := r.Poll(sports.ID, 0)
		require.NoError(t, err)
		assert.Len(t, batch.Messages, 1)
		batch, err = r.Poll(all.ID, 0)
		require.NoError(t, err)
		assert.Len(t, batch.Messages, 2)
	})
}

func TestDispatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := session.NewRegistry(session.WithIdleTimeout(0))
	info, err := r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)
	r.Start(ctx)
	for i := uint64(0); i < 5; i++ {
		r.OnRecordAppended(record(i, "c"))
	}
	require.Eventually(t, func() bool {
		got, err := r.Get(info.ID)
		return err == nil && got.Pending == 5
	}, 5*time.Second, 5*time.Millisecond)

	batch, err := r.Poll(info.ID, 0)
	require.NoError(t, err)
	for i, m := range batch.Messages {
		assert.Equal(t, uint64(i), m.Payload.(session.RecordAdded).Record.Index)
	}
}

func TestOnRecordAppendedNeverBlocks(t *testing.T) {
	r := session.NewRegistry(session.WithBacklog(2))
	done := make(chan struct{})
	go func() {
		for i := uint64(0); i < 100; i++ {
			r.OnRecordAppended(record(i, "c"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("OnRecordAppended blocked")
	}
}

func TestReap(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	r := session.NewRegistry(
		session.WithIdleTimeout(time.Minute),
		session.WithClock(func() time.Time { return now }),
	)
	idle, err := r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)
	active, err := r.Open(ctx, "bob", session.Filter{})
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, err = r.Poll(active.ID, 0)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.Reap(ctx))
	_, err = r.Get(idle.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = r.Get(active.ID)
	require.NoError(t, err)

	_, err = r.Open(ctx, "alice", session.Filter{})
	require.NoError(t, err)
}

func TestMessageJSON(t *testing.T) {
	cases := []struct {
		assertion string
		message   session.Message
		expected  string
	}{
		{
			"text",
			session.Message{Sequence: 1, Payload: session.Text{Text: "hi"}},
			`{"sequence":1,"type":"text","text":"hi"}`,
		},
		{
			"gap",
			session.Message{Sequence: 4, Payload: session.Gap{From: 2, To: 4}},
			`{"sequence":4,"type":"gap","gap":{"from":2,"to":4}}`,
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			data, err := json.Marshal(c.message)
			require.NoError(t, err)
			assert.JSONEq(t, c.expected, string(data))
			var decoded session.Message
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, c.message, decoded)
		})
	}

	t.Run("record", func(t *testing.T) {
		message := session.Message{Sequence: 2, Payload: session.RecordAdded{Record: record(7, "c", "x")}}
		data, err := json.Marshal(message)
		require.NoError(t, err)
		var decoded session.Message
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, message, decoded)
	})

	t.Run("unknown type", func(t *testing.T) {
		var decoded session.Message
		require.Error(t, json.Unmarshal([]byte(`{"sequence":1,"type":"bogus"}`), &decoded))
	})
}
