package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	failFirst bool
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFirst {
		r.failFirst = false
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(r.queue) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

// ============================================
// Producer Tests
// ============================================

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	err := p.Publish(context.Background(), "order-1", map[string]string{"event_type": "OrderPlaced"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("order-1"), w.msgs[0].Key)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "OrderPlaced", decoded["event_type"])
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("no leader")}}
	assert.Error(t, p.Publish(context.Background(), "k", "v"))
}

func TestProducer_UnencodableEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	assert.Error(t, p.Publish(context.Background(), "k", make(chan int)))
	assert.Empty(t, w.msgs)
}

// ============================================
// Consumer Tests
// ============================================

func TestConsumer_HandlesAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		failFirst: true,
		cancel:    cancel,
		queue: []kafka.Message{
			{Key: []byte("a"), Value: []byte("1"), Offset: 10},
			{Key: []byte("b"), Value: []byte("2"), Offset: 11},
		},
	}
	c := newConsumer(r, nil)

	var seen []string
	err := c.Consume(ctx, func(_ context.Context, key, value []byte) error {
		seen = append(seen, string(key)+"="+string(value))
		if string(key) == "a" {
			return errors.New("bad payload")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a=1", "b=2"}, seen)
	assert.Equal(t, []int64{10, 11}, r.committed)
}
